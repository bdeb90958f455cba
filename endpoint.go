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
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Endpoint is an (address, port) pair identifying one side of a connection.
type Endpoint struct {
	addr Address
	port Port
}

// NewEndpoint returns the endpoint for addr and port.
func NewEndpoint(addr Address, port Port) Endpoint {
	return Endpoint{addr: addr, port: port}
}

// ParseEndpoint parses a "host:port" string where host is an IP literal.
// IPv6 literals must be bracketed.
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, &AddressError{Input: s, Reason: "malformed endpoint", Err: err}
	}

	addr, err := ParseAddress(host)
	if err != nil {
		return Endpoint{}, err
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, &AddressError{Input: s, Reason: "malformed port", Err: err}
	}

	return NewEndpoint(addr, Port(port)), nil
}

// ResolveEndpoint resolves a "host:port" string, where host may be a name and
// port may be a service name.
func ResolveEndpoint(ctx context.Context, s string) (Endpoint, error) {
	return resolveEndpoint(ctx, net.DefaultResolver, s)
}

func resolveEndpoint(ctx context.Context, resolver *net.Resolver, s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, &AddressError{Input: s, Reason: "malformed endpoint", Err: err}
	}

	port, err := resolver.LookupPort(ctx, "tcp", portStr)
	if err != nil {
		return Endpoint{}, &AddressError{Input: s, Reason: "could not resolve port", Err: err}
	}

	addr, err := resolveAddress(ctx, resolver, host)
	if err != nil {
		return Endpoint{}, err
	}

	return NewEndpoint(addr, Port(port)), nil
}

// EndpointFromWireBytes decodes a sockaddr_in or sockaddr_in6 structure.
func EndpointFromWireBytes(b []byte) (Endpoint, error) {
	addr, err := AddressFromWireBytes(b)
	if err != nil {
		return Endpoint{}, err
	}
	return NewEndpoint(addr, PortFromNetworkOrder(binary.NativeEndian.Uint16(b[2:4]))), nil
}

// Address returns the endpoint's address.
func (e Endpoint) Address() Address {
	return e.addr
}

// Port returns the endpoint's port.
func (e Endpoint) Port() Port {
	return e.port
}

// Family returns the address family to create sockets for this endpoint with.
func (e Endpoint) Family() int {
	return e.addr.Family()
}

// WireLen returns the size of the sockaddr structure for this endpoint.
func (e Endpoint) WireLen() int {
	if e.addr.Is4() {
		return unix.SizeofSockaddrInet4
	}
	return unix.SizeofSockaddrInet6
}

// WireBytes returns the sockaddr structure for this endpoint.
func (e Endpoint) WireBytes() []byte {
	return e.addr.WireBytes(e.port)
}

// Equal reports whether e and o have equal addresses and ports.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.port == o.port && e.addr.Equal(o.addr)
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.addr.String(), e.port.String())
}

func (e Endpoint) sockaddr() unix.Sockaddr {
	return e.addr.sockaddr(e.port)
}

func endpointFromSockaddr(sa unix.Sockaddr) (Endpoint, error) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return NewEndpoint(Address{p: ipv4{addr: sa.Addr}}, Port(sa.Port)), nil
	case *unix.SockaddrInet6:
		return NewEndpoint(Address{p: ipv6{addr: sa.Addr, scopeID: sa.ZoneId}}, Port(sa.Port)), nil
	default:
		return Endpoint{}, &AddressError{Reason: fmt.Sprintf("unsupported sockaddr %T", sa)}
	}
}
