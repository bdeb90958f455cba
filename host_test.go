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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpeckett/socket"
)

func TestHostNetwork(t *testing.T) {
	n := socket.Host(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	t.Run("Listen wildcard", func(t *testing.T) {
		lis, err := n.Listen(":0", 1)
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, lis.Close())
		})

		addr, err := lis.Address()
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", addr.String())
		assert.Equal(t, 1, lis.Backlog())
	})

	t.Run("Dial", func(t *testing.T) {
		lis, err := n.Listen("127.0.0.1:0", socket.DefaultBacklog)
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, lis.Close())
		})

		ep, err := lis.LocalEndpoint()
		require.NoError(t, err)

		s, err := n.Dial(ctx, ep.String())
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, s.Close())
		})

		peer, err := s.Peer()
		require.NoError(t, err)
		assert.True(t, peer.Equal(ep))
	})

	t.Run("Dial refused", func(t *testing.T) {
		lis, err := n.Listen("127.0.0.1:0", socket.DefaultBacklog)
		require.NoError(t, err)

		ep, err := lis.LocalEndpoint()
		require.NoError(t, err)
		require.NoError(t, lis.Close())

		_, err = n.Dial(ctx, ep.String())
		var syscallErr *socket.SyscallError
		require.ErrorAs(t, err, &syscallErr)
	})

	t.Run("Malformed address", func(t *testing.T) {
		_, err := n.Dial(ctx, "127.0.0.1")
		require.Error(t, err)

		_, err = n.Listen(net.JoinHostPort("127.0.0.1", "no-such-service"), 1)
		require.Error(t, err)
	})
}
