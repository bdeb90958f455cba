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
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"
)

// Address is an IPv4 or IPv6 address. The family is fixed when the Address is
// built.
//
// The zero Address is 127.0.0.1 and Equal to Localhost().
type Address struct {
	p payload
}

// payload is implemented by exactly two types, ipv4 and ipv6. Every switch on
// a payload handles both and panics on anything else.
type payload interface {
	isPayload()
}

type ipv4 struct {
	addr [4]byte
}

type ipv6 struct {
	addr     [16]byte
	flowInfo uint32
	scopeID  uint32
}

func (ipv4) isPayload() {}
func (ipv6) isPayload() {}

var localhostV4 = ipv4{addr: [4]byte{127, 0, 0, 1}}

// Localhost returns the IPv4 loopback address.
func Localhost() Address {
	return Address{p: localhostV4}
}

// LocalhostV6 returns the IPv6 loopback address.
func LocalhostV6() Address {
	return Address{p: ipv6{addr: netip.IPv6Loopback().As16()}}
}

// ParseIPv4 parses a dotted-quad IPv4 literal. No name resolution is done.
func ParseIPv4(s string) (Address, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil || !ip.Is4() {
		return Address{}, &AddressError{Input: s, Reason: "malformed IPv4 literal", Err: err}
	}
	return Address{p: ipv4{addr: ip.As4()}}, nil
}

// ParseIPv6 parses a colon-hex IPv6 literal with the given flow label and
// scope id. A zone suffix ("fe80::1%eth0") sets the scope id when scopeID is
// zero. No name resolution is done.
//
// The flow label is carried in WireBytes only; bind and connect do not pass
// it to the kernel.
func ParseIPv6(s string, flowInfo, scopeID uint32) (Address, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil || !ip.Is6() {
		return Address{}, &AddressError{Input: s, Reason: "malformed IPv6 literal", Err: err}
	}

	if zone := ip.Zone(); zone != "" && scopeID == 0 {
		if scopeID, err = zoneToScopeID(zone); err != nil {
			return Address{}, &AddressError{Input: s, Reason: "unknown zone " + strconv.Quote(zone), Err: err}
		}
	}

	return Address{p: ipv6{addr: ip.As16(), flowInfo: flowInfo, scopeID: scopeID}}, nil
}

// ParseAddress parses an IPv4 or IPv6 literal. No name resolution is done.
func ParseAddress(s string) (Address, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return Address{}, &AddressError{Input: s, Reason: "malformed IP literal", Err: err}
	}
	if ip.Is4() {
		return Address{p: ipv4{addr: ip.As4()}}, nil
	}
	return ParseIPv6(s, 0, 0)
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromNetIP converts a netip.Addr. IPv4-mapped IPv6 addresses stay
// IPv6.
func AddressFromNetIP(ip netip.Addr) (Address, error) {
	switch {
	case ip.Is4():
		return Address{p: ipv4{addr: ip.As4()}}, nil
	case ip.Is6():
		var scopeID uint32
		if zone := ip.Zone(); zone != "" {
			var err error
			if scopeID, err = zoneToScopeID(zone); err != nil {
				return Address{}, &AddressError{Input: ip.String(), Reason: "unknown zone " + strconv.Quote(zone), Err: err}
			}
		}
		return Address{p: ipv6{addr: ip.As16(), scopeID: scopeID}}, nil
	default:
		return Address{}, &AddressError{Reason: "invalid IP address"}
	}
}

// ResolveAddress resolves host with the system resolver and returns the first
// result, whichever family it is. Literals are returned without a lookup.
func ResolveAddress(ctx context.Context, host string) (Address, error) {
	return resolveAddress(ctx, net.DefaultResolver, host)
}

func resolveAddress(ctx context.Context, resolver *net.Resolver, host string) (Address, error) {
	addrs, err := lookupAddresses(ctx, resolver, host)
	if err != nil {
		return Address{}, err
	}
	return addrs[0], nil
}

func lookupAddresses(ctx context.Context, resolver *net.Resolver, host string) ([]Address, error) {
	ips, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		reason := err.Error()
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			reason = dnsErr.Err
		}
		return nil, &AddressError{Input: host, Reason: reason, Err: err}
	}
	if len(ips) == 0 {
		return nil, &AddressError{Input: host, Reason: "no addresses found"}
	}

	addrs := make([]Address, 0, len(ips))
	for _, ip := range ips {
		addr, err := AddressFromNetIP(ip.Unmap())
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// AddressFromWireBytes extracts the address from a sockaddr_in or
// sockaddr_in6 structure. The port is ignored.
func AddressFromWireBytes(b []byte) (Address, error) {
	family, err := wireFamily(b)
	if err != nil {
		return Address{}, err
	}

	switch family {
	case unix.AF_INET:
		if len(b) < unix.SizeofSockaddrInet4 {
			return Address{}, &AddressError{Reason: fmt.Sprintf("short sockaddr_in: %d bytes", len(b))}
		}
		var p ipv4
		copy(p.addr[:], b[4:8])
		return Address{p: p}, nil
	case unix.AF_INET6:
		if len(b) < unix.SizeofSockaddrInet6 {
			return Address{}, &AddressError{Reason: fmt.Sprintf("short sockaddr_in6: %d bytes", len(b))}
		}
		var p ipv6
		p.flowInfo = binary.BigEndian.Uint32(b[4:8])
		copy(p.addr[:], b[8:24])
		p.scopeID = binary.NativeEndian.Uint32(b[24:28])
		return Address{p: p}, nil
	default:
		return Address{}, &AddressError{Reason: fmt.Sprintf("unknown address family %d", family)}
	}
}

func (a Address) payload() payload {
	if a.p == nil {
		return localhostV4
	}
	return a.p
}

// Is4 reports whether a is an IPv4 address.
func (a Address) Is4() bool {
	_, ok := a.payload().(ipv4)
	return ok
}

// Is6 reports whether a is an IPv6 address.
func (a Address) Is6() bool {
	_, ok := a.payload().(ipv6)
	return ok
}

// Family returns AF_INET or AF_INET6.
func (a Address) Family() int {
	switch a.payload().(type) {
	case ipv4:
		return unix.AF_INET
	case ipv6:
		return unix.AF_INET6
	default:
		panic("unreachable")
	}
}

// FlowInfo returns the IPv6 flow information, zero for IPv4.
func (a Address) FlowInfo() uint32 {
	if p, ok := a.payload().(ipv6); ok {
		return p.flowInfo
	}
	return 0
}

// ScopeID returns the IPv6 scope id, zero for IPv4.
func (a Address) ScopeID() uint32 {
	if p, ok := a.payload().(ipv6); ok {
		return p.scopeID
	}
	return 0
}

// Equal reports whether a and b hold the same family and payload.
func (a Address) Equal(b Address) bool {
	return a.payload() == b.payload()
}

// String renders a in canonical dotted-quad or colon-hex form.
func (a Address) String() string {
	switch p := a.payload().(type) {
	case ipv4:
		return netip.AddrFrom4(p.addr).String()
	case ipv6:
		return netip.AddrFrom16(p.addr).String()
	default:
		panic("unreachable")
	}
}

// AsNetIP converts a to a netip.Addr. A non-zero scope id becomes the zone.
func (a Address) AsNetIP() netip.Addr {
	switch p := a.payload().(type) {
	case ipv4:
		return netip.AddrFrom4(p.addr)
	case ipv6:
		ip := netip.AddrFrom16(p.addr)
		if p.scopeID != 0 {
			ip = ip.WithZone(scopeIDToZone(p.scopeID))
		}
		return ip
	default:
		panic("unreachable")
	}
}

// WireBytes serializes a and port into a sockaddr_in or sockaddr_in6
// structure, with the port in network byte order.
func (a Address) WireBytes(port Port) []byte {
	switch p := a.payload().(type) {
	case ipv4:
		b := make([]byte, unix.SizeofSockaddrInet4)
		binary.NativeEndian.PutUint16(b[0:2], unix.AF_INET)
		binary.BigEndian.PutUint16(b[2:4], uint16(port))
		copy(b[4:8], p.addr[:])
		return b
	case ipv6:
		b := make([]byte, unix.SizeofSockaddrInet6)
		binary.NativeEndian.PutUint16(b[0:2], unix.AF_INET6)
		binary.BigEndian.PutUint16(b[2:4], uint16(port))
		binary.BigEndian.PutUint32(b[4:8], p.flowInfo)
		copy(b[8:24], p.addr[:])
		binary.NativeEndian.PutUint32(b[24:28], p.scopeID)
		return b
	default:
		panic("unreachable")
	}
}

// sockaddr drops the flow label, which unix.SockaddrInet6 has no field for.
func (a Address) sockaddr(port Port) unix.Sockaddr {
	switch p := a.payload().(type) {
	case ipv4:
		return &unix.SockaddrInet4{Port: int(port), Addr: p.addr}
	case ipv6:
		return &unix.SockaddrInet6{Port: int(port), ZoneId: p.scopeID, Addr: p.addr}
	default:
		panic("unreachable")
	}
}

func wireFamily(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, &AddressError{Reason: fmt.Sprintf("short sockaddr: %d bytes", len(b))}
	}
	return int(binary.NativeEndian.Uint16(b[0:2])), nil
}

func zoneToScopeID(zone string) (uint32, error) {
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n), nil
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, err
	}
	return uint32(ifi.Index), nil
}

func scopeIDToZone(scopeID uint32) string {
	if ifi, err := net.InterfaceByIndex(int(scopeID)); err == nil {
		return ifi.Name
	}
	return strconv.FormatUint(uint64(scopeID), 10)
}
