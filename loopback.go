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
)

var _ Network = (*LoopbackNetwork)(nil)

type LoopbackNetwork struct{}

// Loopback returns a network that only connects to localhost.
func Loopback() *LoopbackNetwork {
	return &LoopbackNetwork{}
}

func (n *LoopbackNetwork) Dial(ctx context.Context, address string) (*Stream, error) {
	ep, err := loopbackEndpoint(ctx, address)
	if err != nil {
		return nil, err
	}

	return Dial(ep, nil)
}

func (n *LoopbackNetwork) LookupHost(ctx context.Context, host string) ([]Address, error) {
	return []Address{Localhost()}, nil
}

func (n *LoopbackNetwork) Listen(address string, backlog int) (*Listener, error) {
	ep, err := loopbackEndpoint(context.Background(), address)
	if err != nil {
		return nil, err
	}

	return ListenOn(ep, &ListenConfig{Backlog: backlog})
}

func loopbackEndpoint(ctx context.Context, address string) (Endpoint, error) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return Endpoint{}, err
	}

	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("could not resolve port %s: %w", portStr, err)
	}

	return NewEndpoint(Localhost(), Port(port)), nil
}
