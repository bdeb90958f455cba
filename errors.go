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
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

var (
	// ErrNotReady is the reason of a StateError raised because the socket has
	// not yet reached the state the operation requires.
	ErrNotReady = errors.New("not ready")
	// ErrTooLate is the reason of a StateError raised because the socket has
	// already moved past the state the operation requires.
	ErrTooLate = errors.New("already past this point")
)

// ErrEndOfStream is returned by Receive when the peer has shut down its write
// side. It matches io.EOF with errors.Is.
var ErrEndOfStream error = endOfStream{}

type endOfStream struct{}

func (endOfStream) Error() string { return "end of stream" }

func (endOfStream) Is(target error) bool { return target == io.EOF }

// ResourceError reports that a file descriptor could not be created or
// closed cleanly.
type ResourceError struct {
	Op    string
	Errno unix.Errno
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %s", e.Op, e.Errno.Error())
}

func (e *ResourceError) Unwrap() error { return e.Errno }

// AddressError reports a malformed address literal, a failed hostname
// resolution or an unknown address family in wire bytes.
type AddressError struct {
	Input  string
	Reason string
	Err    error
}

func (e *AddressError) Error() string {
	if e.Input == "" {
		return "address: " + e.Reason
	}
	return fmt.Sprintf("address %q: %s", e.Input, e.Reason)
}

func (e *AddressError) Unwrap() error { return e.Err }

// SyscallError reports a failed socket syscall along with the errno the
// kernel returned.
type SyscallError struct {
	Op    string
	Errno unix.Errno
}

func (e *SyscallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Errno.Error())
}

func (e *SyscallError) Unwrap() error { return e.Errno }

// StateError reports an operation invoked while the state machine was in a
// state that does not permit it. Reason is ErrNotReady or ErrTooLate.
type StateError struct {
	Op     string
	State  fmt.Stringer
	Reason error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %s: %v", e.Op, e.State, e.Reason)
}

func (e *StateError) Unwrap() error { return e.Reason }

// syscallError wraps err from the named syscall into a SyscallError. Errors
// that are not errnos are wrapped unchanged.
func syscallError(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return &SyscallError{Op: op, Errno: errno}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func resourceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return &ResourceError{Op: op, Errno: errno}
	}
	return fmt.Errorf("resource %s: %w", op, err)
}
