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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/dpeckett/socket"
)

func TestHandle(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		h := socket.NewHandle(-1)
		assert.False(t, h.Owns())
		assert.Equal(t, socket.NoFd, h.Fd())
		assert.Equal(t, socket.NoFd, h.Release())
		require.NoError(t, h.Close())

		var zero socket.Handle
		assert.False(t, zero.Owns())
		require.NoError(t, zero.Close())
	})

	t.Run("Close", func(t *testing.T) {
		fd := newSocketFd(t)

		h := socket.NewHandle(fd)
		assert.True(t, h.Owns())
		assert.Equal(t, fd, h.Fd())

		require.NoError(t, h.Close())
		assert.False(t, h.Owns())
		assert.False(t, fdIsOpen(fd))

		// A second close has nothing left to close.
		require.NoError(t, h.Close())
	})

	t.Run("Release", func(t *testing.T) {
		fd := newSocketFd(t)

		h := socket.NewHandle(fd)
		assert.Equal(t, fd, h.Release())
		assert.False(t, h.Owns())

		require.NoError(t, h.Close())
		assert.True(t, fdIsOpen(fd))
		require.NoError(t, unix.Close(fd))
	})

	t.Run("Reset", func(t *testing.T) {
		first := newSocketFd(t)
		second := newSocketFd(t)

		h := socket.NewHandle(first)
		require.NoError(t, h.Reset(second))
		assert.Equal(t, second, h.Fd())
		assert.False(t, fdIsOpen(first))

		require.NoError(t, h.Reset(second))
		assert.True(t, fdIsOpen(second))

		require.NoError(t, h.Reset(-1))
		assert.False(t, h.Owns())
		assert.False(t, fdIsOpen(second))
	})

	t.Run("OpenHandle", func(t *testing.T) {
		h, err := socket.OpenHandle(func() (int, error) {
			return unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		})
		require.NoError(t, err)
		assert.True(t, h.Owns())
		require.NoError(t, h.Close())

		_, err = socket.OpenHandle(func() (int, error) {
			return -1, unix.EMFILE
		})
		var resErr *socket.ResourceError
		require.ErrorAs(t, err, &resErr)
		assert.Equal(t, "open", resErr.Op)
		assert.ErrorIs(t, err, unix.EMFILE)

		_, err = socket.OpenHandle(func() (int, error) {
			return -1, nil
		})
		require.ErrorAs(t, err, &resErr)
		assert.Equal(t, unix.EBADF, resErr.Errno)
		assert.NotContains(t, err.Error(), "errno 0")
	})
}

func newSocketFd(t *testing.T) int {
	t.Helper()

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	return fd
}

func fdIsOpen(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}
