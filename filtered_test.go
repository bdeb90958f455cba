// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package socket_test

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/dpeckett/socket"
	"github.com/stretchr/testify/require"
)

func TestFilteredNetwork(t *testing.T) {
	// The whole loopback range, minus one address.
	allowedDestinations := []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
	}

	deniedDestinations := []netip.Prefix{
		netip.MustParsePrefix("127.0.0.2/32"),
	}

	upstream := socket.Host(nil)

	conf := &socket.FilteredNetworkConfig{
		AllowedDestinations: allowedDestinations,
		DeniedDestinations:  deniedDestinations,
		Upstream:            upstream,
	}

	n := socket.Filtered(conf)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	lis, err := n.Listen("127.0.0.1:0", socket.DefaultBacklog)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, lis.Close())
	})

	ep, err := lis.LocalEndpoint()
	require.NoError(t, err)
	port := ep.Port().String()

	// Should be allowed to connect to the allowed range
	s, err := n.Dial(ctx, net.JoinHostPort("127.0.0.1", port))
	require.NoError(t, err)
	_ = s.Close()

	// Should be forbidden to connect to the denied address
	_, err = n.Dial(ctx, net.JoinHostPort("127.0.0.2", port))
	require.ErrorContains(t, err, "not allowed")

	// And a private address is totally outside the allowed list
	_, err = n.Dial(ctx, net.JoinHostPort("10.0.0.1", port))
	require.ErrorContains(t, err, "not allowed")

	// Nor may it listen outside the allowed list
	_, err = n.Listen("10.0.0.1:0", socket.DefaultBacklog)
	require.ErrorContains(t, err, "not allowed")
}

func TestFilteredNetworkWildcard(t *testing.T) {
	n := socket.Filtered(&socket.FilteredNetworkConfig{
		AllowedDestinations: []netip.Prefix{netip.MustParsePrefix("0.0.0.0/0")},
		DeniedDestinations:  []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
		Upstream:            socket.Host(nil),
	})

	lis, err := n.Listen(":0", 1)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, lis.Close())
	})

	addr, err := lis.Address()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", addr.String())

	// The wildcard is checked against the filter like any other address.
	loopbackOnly := socket.Filtered(&socket.FilteredNetworkConfig{
		AllowedDestinations: []netip.Prefix{netip.MustParsePrefix("127.0.0.0/8")},
		Upstream:            socket.Host(nil),
	})

	_, err = loopbackOnly.Listen(":0", 1)
	require.ErrorContains(t, err, "not allowed")
}
