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
	"golang.org/x/sys/unix"
)

// syscalls is the set of OS calls the state machines issue. Each method is a
// single attempt; EINTR and EAGAIN are reported to the caller unchanged.
type syscalls interface {
	Socket(domain, typ, proto int) (int, error)
	Bind(fd int, sa unix.Sockaddr) error
	Listen(fd, backlog int) error
	Accept(fd int) (int, unix.Sockaddr, error)
	Connect(fd int, sa unix.Sockaddr) error
	Send(fd int, p []byte, flags int) (int, error)
	Recv(fd int, p []byte, flags int) (int, error)
	Shutdown(fd, how int) error
	Close(fd int) error
	GetFlags(fd int) (int, error)
	SetFlags(fd, flags int) error
	Getsockname(fd int) (unix.Sockaddr, error)
}

// sys is swapped out by tests that need to observe syscall effects.
var sys syscalls = unixSyscalls{}

type unixSyscalls struct{}

func (unixSyscalls) Socket(domain, typ, proto int) (int, error) {
	fd, err := unix.Socket(domain, typ, proto)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

func (unixSyscalls) Bind(fd int, sa unix.Sockaddr) error {
	return unix.Bind(fd, sa)
}

func (unixSyscalls) Listen(fd, backlog int) error {
	return unix.Listen(fd, backlog)
}

func (unixSyscalls) Accept(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		return -1, nil, err
	}
	unix.CloseOnExec(nfd)
	return nfd, sa, nil
}

func (unixSyscalls) Connect(fd int, sa unix.Sockaddr) error {
	return unix.Connect(fd, sa)
}

func (unixSyscalls) Send(fd int, p []byte, flags int) (int, error) {
	return unix.SendmsgN(fd, p, nil, nil, flags)
}

func (unixSyscalls) Recv(fd int, p []byte, flags int) (int, error) {
	n, _, err := unix.Recvfrom(fd, p, flags)
	return n, err
}

func (unixSyscalls) Shutdown(fd, how int) error {
	return unix.Shutdown(fd, how)
}

func (unixSyscalls) Close(fd int) error {
	return unix.Close(fd)
}

func (unixSyscalls) GetFlags(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
}

func (unixSyscalls) SetFlags(fd, flags int) error {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags)
	return err
}

func (unixSyscalls) Getsockname(fd int) (unix.Sockaddr, error) {
	return unix.Getsockname(fd)
}

// setNonBlocking applies the non-blocking bit to fd with a read-modify-write
// of the file status flags.
func setNonBlocking(fd int, nonBlocking bool) error {
	flags, err := sys.GetFlags(fd)
	if err != nil {
		return syscallError("fcntl(F_GETFL)", err)
	}

	if nonBlocking {
		flags |= unix.O_NONBLOCK
	} else {
		flags &^= unix.O_NONBLOCK
	}

	if err := sys.SetFlags(fd, flags); err != nil {
		return syscallError("fcntl(F_SETFL)", err)
	}
	return nil
}
