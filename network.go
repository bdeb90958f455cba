package socket

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"go.uber.org/multierr"
)

// Network is a simple network abstraction over stream sockets.
type Network interface {
	// Dial connects to the "host:port" address. Host names are resolved with
	// LookupHost and each address is tried in turn. The context bounds name
	// resolution only; the connect itself is a single blocking syscall.
	Dial(ctx context.Context, address string) (*Stream, error)
	// LookupHost looks up the given host and returns its addresses.
	LookupHost(ctx context.Context, host string) ([]Address, error)
	// Listen binds to the "host:port" address and starts listening with the
	// given backlog. If the host is empty, Listen binds the IPv4 wildcard
	// address.
	Listen(address string, backlog int) (*Listener, error)
}

// wildcardAddress is the IPv4 any address an empty host binds to.
func wildcardAddress() Address {
	return Address{p: ipv4{}}
}

// lookupFunc resolves a host name to addresses.
type lookupFunc func(ctx context.Context, host string) ([]Address, error)

// resolveEndpoints splits address and returns an endpoint for every address
// its host resolves to.
func resolveEndpoints(ctx context.Context, address string, lookup lookupFunc) ([]Endpoint, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("could not parse address %s: %w", address, err)
	}

	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", portStr)
	if err != nil {
		return nil, fmt.Errorf("could not resolve port %s: %w", portStr, err)
	}

	if host == "" {
		return []Endpoint{NewEndpoint(wildcardAddress(), Port(port))}, nil
	}

	var addrs []Address
	if ip, err := netip.ParseAddr(host); err == nil {
		addr, err := AddressFromNetIP(ip)
		if err != nil {
			return nil, err
		}
		addrs = []Address{addr}
	} else {
		addrs, err = lookup(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("could not resolve hostname %s: %w", host, err)
		}
	}

	endpoints := make([]Endpoint, len(addrs))
	for i, addr := range addrs {
		endpoints[i] = NewEndpoint(addr, Port(port))
	}
	return endpoints, nil
}

// dialFirst connects to each endpoint in turn and returns the first stream
// that connects.
func dialFirst(endpoints []Endpoint) (*Stream, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no addresses to connect to")
	}

	var errs error
	for _, ep := range endpoints {
		s, err := Dial(ep, nil)
		if err == nil {
			return s, nil
		}
		errs = multierr.Append(errs, err)
	}
	return nil, fmt.Errorf("could not connect to any address: %w", errs)
}
