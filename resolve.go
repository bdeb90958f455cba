package socket

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// ResolveConfig holds the resolver configuration.
type ResolveConfig struct {
	// Nameservers is a list of nameservers to use.
	// If empty, the system default resolver is used.
	Nameservers []string
	// SearchDomains is a list of search domains to use.
	SearchDomains []string
	// Options is a list of resolver options to use.
	// Supported options:
	// - ndots:<n> sets the number of dots that must appear in a name before an initial absolute query is made.
	//   The default is 1.
	Options []string
}

func (r *ResolveConfig) resolver() *net.Resolver {
	if r == nil || len(r.Nameservers) == 0 {
		return net.DefaultResolver
	}

	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			ns := r.Nameservers[rand.Intn(len(r.Nameservers))]

			// If the nameserver does not have a port, add the default DNS port.
			if _, _, err := net.SplitHostPort(ns); err != nil {
				ns = net.JoinHostPort(ns, "53")
			}

			var d net.Dialer
			return d.DialContext(ctx, network, ns)
		},
	}
}

func (r *ResolveConfig) ndots() int {
	ndots := 1
	if r == nil {
		return ndots
	}
	for _, opt := range r.Options {
		if len(opt) > 6 && opt[:6] == "ndots:" {
			if n, err := fmt.Sscanf(opt[6:], "%d", &ndots); err != nil || n != 1 {
				ndots = 1
			}
		}
	}
	return ndots
}

// LookupHost looks up the given host using the resolver configuration.
// A nil config uses the system resolver.
func (r *ResolveConfig) LookupHost(ctx context.Context, host string) ([]Address, error) {
	resolver := r.resolver()

	if ip, err := netip.ParseAddr(host); err == nil {
		addr, err := AddressFromNetIP(ip)
		if err != nil {
			return nil, err
		}
		return []Address{addr}, nil
	}

	// Try search domains first.
	if r != nil && strings.Count(host, ".") < r.ndots() && !dns.IsFqdn(host) {
		for _, domain := range r.SearchDomains {
			searchName := host + "." + domain
			addrs, err := lookupAddresses(ctx, resolver, searchName)
			if err == nil && len(addrs) > 0 {
				return addrs, nil
			}
		}
	}

	return lookupAddresses(ctx, resolver, host)
}

// Resolve returns the first address host resolves to.
func (r *ResolveConfig) Resolve(ctx context.Context, host string) (Address, error) {
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return Address{}, err
	}
	return addrs[0], nil
}
