package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dpeckett/socket"
	"golang.org/x/sys/unix"
)

func TestGlobalFlags(t *testing.T) {
	t.Run("Unsupported log format", func(t *testing.T) {
		app := newApp()
		app.SetArgs([]string{"--log-format", "xml", "connect", "127.0.0.1:1"})

		err := app.Execute()
		require.ErrorContains(t, err, "unsupported log-format")
	})

	t.Run("Unknown log level", func(t *testing.T) {
		app := newApp()
		app.SetArgs([]string{"--log-level", "loud", "connect", "127.0.0.1:1"})

		require.Error(t, app.Execute())
	})

	t.Run("Missing address", func(t *testing.T) {
		app := newApp()
		app.SetArgs([]string{"connect"})

		require.Error(t, app.Execute())
	})
}

func TestConnect(t *testing.T) {
	lis, err := socket.ListenPort(0, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, lis.Close())
	})

	ep, err := lis.LocalEndpoint()
	require.NoError(t, err)

	var received []string
	var g errgroup.Group
	g.Go(func() error {
		s, err := lis.Accept()
		if err != nil {
			return err
		}
		defer s.Close()

		for i := 0; i < 2; i++ {
			line, err := socket.ReadLine(s, "")
			if err != nil {
				return err
			}
			received = append(received, line)
		}
		return socket.SendLine(s, "bye", "")
	})

	var out bytes.Buffer
	app := newApp()
	app.SetIn(strings.NewReader("hello\nworld\n"))
	app.SetOut(&out)
	app.SetArgs([]string{"connect", ep.String()})

	require.NoError(t, app.Execute())
	require.NoError(t, g.Wait())

	assert.Equal(t, []string{"hello", "world"}, received)
	assert.Equal(t, "bye\r\n", out.String())
}

func TestListen(t *testing.T) {
	ep := freeEndpoint(t)

	var out bytes.Buffer
	app := newApp()
	app.SetOut(&out)
	app.SetArgs([]string{"listen", ep.String(), "--echo", "--count", "1", "--backlog", "1"})

	var g errgroup.Group
	g.Go(app.Execute)

	client := dialWhenListening(t, ep)

	require.NoError(t, socket.SendLine(client, "hello", ""))
	echoed, err := socket.ReadLine(client, "")
	require.NoError(t, err)
	assert.Equal(t, "hello", echoed)

	require.NoError(t, socket.SendLine(client, "world", ""))
	echoed, err = socket.ReadLine(client, "")
	require.NoError(t, err)
	assert.Equal(t, "world", echoed)

	// The server exits once the only client it serves shuts its write half.
	require.NoError(t, client.CloseUpstream())
	require.NoError(t, g.Wait())

	_, err = client.Receive(make([]byte, 1), 0)
	require.ErrorIs(t, err, socket.ErrEndOfStream)
	require.NoError(t, client.Close())

	assert.Equal(t, "hello\nworld\n", out.String())
}

// freeEndpoint returns a loopback endpoint with a port nothing listens on.
func freeEndpoint(t *testing.T) socket.Endpoint {
	t.Helper()

	lis, err := socket.ListenPort(0, nil)
	require.NoError(t, err)

	ep, err := lis.LocalEndpoint()
	require.NoError(t, err)
	require.NoError(t, lis.Close())

	return ep
}

func dialWhenListening(t *testing.T, ep socket.Endpoint) *socket.Stream {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for {
		s, err := socket.Dial(ep, nil)
		if err == nil {
			return s
		}
		if !errors.Is(err, unix.ECONNREFUSED) || time.Now().After(deadline) {
			require.NoError(t, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
