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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpeckett/socket"
)

func TestLines(t *testing.T) {
	t.Run("Default terminator", func(t *testing.T) {
		server, client := pair(t)

		require.NoError(t, socket.SendLine(client, "first", ""))
		require.NoError(t, socket.SendLine(client, "second", ""))

		line, err := socket.ReadLine(server, "")
		require.NoError(t, err)
		assert.Equal(t, "first", line)

		line, err = socket.ReadLine(server, socket.DefaultEOL)
		require.NoError(t, err)
		assert.Equal(t, "second", line)
	})

	t.Run("Custom terminator", func(t *testing.T) {
		server, client := pair(t)

		_, err := client.Write([]byte("a\r\nb\n"))
		require.NoError(t, err)

		line, err := socket.ReadLine(server, "\n")
		require.NoError(t, err)
		assert.Equal(t, "a\r", line)

		line, err = socket.ReadLine(server, "\n")
		require.NoError(t, err)
		assert.Equal(t, "b", line)
	})

	t.Run("Partial line", func(t *testing.T) {
		server, client := pair(t)

		_, err := client.Write([]byte("no terminator"))
		require.NoError(t, err)
		require.NoError(t, client.CloseUpstream())

		line, err := socket.ReadLine(server, "")
		require.ErrorIs(t, err, socket.ErrEndOfStream)
		assert.Equal(t, "no terminator", line)
	})
}

func TestSendAll(t *testing.T) {
	s := &trickleSender{chunk: 2}
	n, err := socket.SendAll(s, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, len("hello world"), n)
	assert.Equal(t, "hello world", string(s.sent))
	assert.Equal(t, 6, s.calls)

	stuck := &trickleSender{chunk: 0}
	n, err = socket.SendAll(stuck, []byte("hello"))
	assert.Equal(t, io.ErrShortWrite, err)
	assert.Zero(t, n)
}

// trickleSender accepts at most chunk bytes per call.
type trickleSender struct {
	chunk int
	calls int
	sent  []byte
}

func (s *trickleSender) Send(p []byte, _ int) (int, error) {
	s.calls++
	n := min(s.chunk, len(p))
	s.sent = append(s.sent, p[:n]...)
	return n, nil
}
