package socket

import (
	"context"
)

var _ Network = (*HostNetwork)(nil)

type HostNetwork struct {
	resolveConf *ResolveConfig
}

// Host returns a network implementation that uses the host's network stack.
// Names are resolved with resolveConf, or the system resolver if it is nil.
func Host(resolveConf *ResolveConfig) *HostNetwork {
	return &HostNetwork{resolveConf: resolveConf}
}

func (n *HostNetwork) Dial(ctx context.Context, address string) (*Stream, error) {
	endpoints, err := resolveEndpoints(ctx, address, n.LookupHost)
	if err != nil {
		return nil, err
	}

	return dialFirst(endpoints)
}

func (n *HostNetwork) LookupHost(ctx context.Context, host string) ([]Address, error) {
	return n.resolveConf.LookupHost(ctx, host)
}

func (n *HostNetwork) Listen(address string, backlog int) (*Listener, error) {
	endpoints, err := resolveEndpoints(context.Background(), address, n.LookupHost)
	if err != nil {
		return nil, err
	}

	return ListenOn(endpoints[0], &ListenConfig{Backlog: backlog})
}
