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
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// NoFd is the descriptor value of a Handle that owns nothing.
const NoFd = -1

// Handle exclusively owns a single file descriptor. The descriptor is closed
// by Close, by Reset with a different descriptor, or on a best-effort basis
// when the Handle is garbage collected. Release hands the descriptor to the
// caller without closing it.
//
// The zero Handle owns nothing. Handles are used through pointers and must
// not be copied.
type Handle struct {
	fd    int
	owned bool
}

// NewHandle takes ownership of fd. A negative fd yields an empty Handle.
func NewHandle(fd int) *Handle {
	h := &Handle{}
	h.adopt(fd)
	return h
}

// OpenHandle runs create and takes ownership of the descriptor it returns. A
// negative descriptor without an error is reported as EBADF.
func OpenHandle(create func() (int, error)) (*Handle, error) {
	fd, err := create()
	if err != nil {
		return nil, resourceError("open", err)
	}
	if fd < 0 {
		return nil, &ResourceError{Op: "open", Errno: unix.EBADF}
	}
	return NewHandle(fd), nil
}

// Fd returns the owned descriptor, or NoFd. Ownership is not transferred.
func (h *Handle) Fd() int {
	if h == nil || !h.owned {
		return NoFd
	}
	return h.fd
}

// Owns reports whether the handle currently owns a descriptor.
func (h *Handle) Owns() bool {
	return h.Fd() != NoFd
}

// Release detaches the descriptor from the handle without closing it.
func (h *Handle) Release() int {
	fd := h.Fd()
	if fd == NoFd {
		return NoFd
	}
	h.fd, h.owned = NoFd, false
	runtime.SetFinalizer(h, nil)
	return fd
}

// Reset closes the currently owned descriptor and adopts fd. Resetting to the
// descriptor already owned is a no-op.
func (h *Handle) Reset(fd int) error {
	if fd == h.Fd() {
		return nil
	}
	if err := h.Close(); err != nil {
		return err
	}
	h.adopt(fd)
	return nil
}

// Close closes the owned descriptor, if any. Closing an empty handle is a
// no-op. The handle is empty afterwards even if close(2) failed.
func (h *Handle) Close() error {
	fd := h.Fd()
	if fd == NoFd {
		return nil
	}
	h.fd, h.owned = NoFd, false
	runtime.SetFinalizer(h, nil)

	if err := sys.Close(fd); err != nil {
		return resourceError("close", err)
	}
	return nil
}

func (h *Handle) adopt(fd int) {
	if fd < 0 {
		h.fd, h.owned = NoFd, false
		return
	}
	h.fd, h.owned = fd, true
	runtime.SetFinalizer(h, (*Handle).finalize)
}

func (h *Handle) finalize() {
	fd := h.fd
	if err := h.Close(); err != nil {
		logger.WithFields(logrus.Fields{"fd": fd}).WithError(err).Warn("Failed to close leaked descriptor")
	}
}
