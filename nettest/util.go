package nettest

import (
	"context"
	"errors"

	"github.com/dpeckett/socket"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Pair returns both ends of a fresh connection over the IPv4 loopback
// address.
func Pair() (server, client *socket.Stream, err error) {
	lis, err := socket.ListenOn(socket.NewEndpoint(socket.Localhost(), 0), &socket.ListenConfig{Backlog: 1})
	if err != nil {
		return nil, nil, err
	}

	ep, err := lis.LocalEndpoint()
	if err != nil {
		return nil, nil, multierr.Append(err, lis.Close())
	}

	// The kernel completes the handshake against the backlog, so the connect
	// returns before Accept is called.
	client, err = socket.Dial(ep, nil)
	if err != nil {
		return nil, nil, multierr.Append(err, lis.Close())
	}

	server, err = lis.Accept()
	if err != nil {
		return nil, nil, multierr.Combine(err, client.Close(), lis.Close())
	}

	if err := lis.Close(); err != nil {
		return nil, nil, multierr.Combine(err, server.Close(), client.Close())
	}

	return server, client, nil
}

// Splice relays bytes between two streams in both directions until both
// peers have shut down their write sides, or the context is canceled.
func Splice(ctx context.Context, a, b *socket.Stream) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return CopyStream(ctx, a, b)
	})

	g.Go(func() error {
		return CopyStream(ctx, b, a)
	})

	return g.Wait()
}

// CopyStream copies bytes from src to dst until src reaches the end of the
// stream, then shuts down the write side of dst. The context is checked
// between receives; a receive that is already blocked is not interrupted.
func CopyStream(ctx context.Context, dst, src *socket.Stream) error {
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := src.Receive(buf, 0)
		if err != nil {
			if errors.Is(err, socket.ErrEndOfStream) {
				return dst.CloseUpstream()
			}
			return err
		}

		if _, err := socket.SendAll(dst, buf[:n]); err != nil {
			return err
		}
	}
}
