// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package socket

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"
)

var _ Network = (*FilteredNetwork)(nil)

// FilteredNetworkConfig is the configuration for a FilteredNetwork.
type FilteredNetworkConfig struct {
	// Allowed destination prefixes.
	AllowedDestinations []netip.Prefix
	// Denied destination prefixes.
	DeniedDestinations []netip.Prefix
	// The network to forward connections to.
	Upstream Network
}

// FilteredNetwork is a network that filters connections based on allowed and denied destination prefixes.
// It forwards connections to the upstream network if the destination is allowed.
// If the destination is denied, it returns an error.
type FilteredNetwork struct {
	allowedDestinations prefixSet
	deniedDestinations  prefixSet
	upstream            Network
}

// Filtered creates a new filtered network with the given configuration.
func Filtered(conf *FilteredNetworkConfig) *FilteredNetwork {
	return &FilteredNetwork{
		allowedDestinations: newPrefixSet(conf.AllowedDestinations),
		deniedDestinations:  newPrefixSet(conf.DeniedDestinations),
		upstream:            conf.Upstream,
	}
}

func (n *FilteredNetwork) Dial(ctx context.Context, address string) (*Stream, error) {
	addr, port, err := n.resolveHostPort(ctx, address)
	if err != nil {
		return nil, err
	}

	// Check if the destination is allowed.
	if !n.allowedDestination(addr) {
		return nil, fmt.Errorf("destination %s is not allowed", addr)
	}

	return n.upstream.Dial(ctx, net.JoinHostPort(addr.String(), port))
}

func (n *FilteredNetwork) LookupHost(ctx context.Context, host string) ([]Address, error) {
	return n.upstream.LookupHost(ctx, host)
}

func (n *FilteredNetwork) Listen(address string, backlog int) (*Listener, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	addr, port, err := n.resolveHostPort(ctx, address)
	if err != nil {
		return nil, err
	}

	if !n.allowedDestination(addr) {
		return nil, fmt.Errorf("not allowed to listen on %s", addr)
	}

	return n.upstream.Listen(net.JoinHostPort(addr.String(), port), backlog)
}

func (n *FilteredNetwork) resolveHostPort(ctx context.Context, address string) (Address, string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return Address{}, "", err
	}

	if host == "" {
		return wildcardAddress(), port, nil
	}

	// Is the host an IP address?
	addr, err := ParseAddress(host)
	if err != nil {
		// If not, resolve it to an IP address.
		addrs, err := n.upstream.LookupHost(ctx, host)
		if err != nil {
			return Address{}, "", err
		}

		// Try and find an allowed address.
		for _, addr := range addrs {
			if n.allowedDestination(addr) {
				return addr, port, nil
			}
		}

		return Address{}, "", fmt.Errorf("no allowed addresses found for host %s", host)
	}

	return addr, port, nil
}

func (n *FilteredNetwork) allowedDestination(addr Address) bool {
	ip := addr.AsNetIP().WithZone("").Unmap()
	return n.allowedDestinations.contains(ip) && !n.deniedDestinations.contains(ip)
}

// prefixSet is a set of masked prefixes matched by linear scan.
type prefixSet []netip.Prefix

func newPrefixSet(prefixes []netip.Prefix) prefixSet {
	set := make(prefixSet, 0, len(prefixes))
	for _, prefix := range prefixes {
		set = append(set, prefix.Masked())
	}
	return set
}

func (s prefixSet) contains(ip netip.Addr) bool {
	for _, prefix := range s {
		if prefix.Contains(ip) {
			return true
		}
	}
	return false
}
