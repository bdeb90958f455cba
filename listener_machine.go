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

// ListenerState is the lifecycle state of a Listener.
type ListenerState uint8

const (
	ListenerInit ListenerState = iota
	ListenerBound
	ListenerListening
	ListenerAccepting
	ListenerClosed
)

func (s ListenerState) String() string {
	switch s {
	case ListenerInit:
		return "init"
	case ListenerBound:
		return "bound"
	case ListenerListening:
		return "listening"
	case ListenerAccepting:
		return "accepting"
	case ListenerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type listenerOp uint8

const (
	listenerBind listenerOp = iota
	listenerListen
	listenerAccept
	listenerClose
	listenerReset
)

func (op listenerOp) String() string {
	switch op {
	case listenerBind:
		return "bind"
	case listenerListen:
		return "listen"
	case listenerAccept:
		return "accept"
	case listenerClose:
		return "close"
	case listenerReset:
		return "reset"
	default:
		return "unknown"
	}
}

// next returns the state op leads to from s. Illegal transitions return a
// StateError and leave s as is.
func (s ListenerState) next(op listenerOp) (ListenerState, error) {
	switch op {
	case listenerBind:
		if s == ListenerInit {
			return ListenerBound, nil
		}
		return s, &StateError{Op: op.String(), State: s, Reason: ErrTooLate}
	case listenerListen:
		switch s {
		case ListenerBound:
			return ListenerListening, nil
		case ListenerInit:
			return s, &StateError{Op: op.String(), State: s, Reason: ErrNotReady}
		default:
			return s, &StateError{Op: op.String(), State: s, Reason: ErrTooLate}
		}
	case listenerAccept:
		switch s {
		case ListenerListening, ListenerAccepting:
			return ListenerAccepting, nil
		case ListenerInit, ListenerBound:
			return s, &StateError{Op: op.String(), State: s, Reason: ErrNotReady}
		default:
			return s, &StateError{Op: op.String(), State: s, Reason: ErrTooLate}
		}
	case listenerClose:
		switch s {
		case ListenerInit:
			return s, &StateError{Op: op.String(), State: s, Reason: ErrNotReady}
		case ListenerClosed:
			return s, &StateError{Op: op.String(), State: s, Reason: ErrTooLate}
		default:
			return ListenerClosed, nil
		}
	case listenerReset:
		return ListenerInit, nil
	default:
		panic("unreachable")
	}
}

type listenerMachine struct {
	state       ListenerState
	handle      *Handle
	endpoint    Endpoint
	backlog     int
	nonBlocking bool
}

func newListenerMachine() *listenerMachine {
	return &listenerMachine{handle: &Handle{}}
}

func (m *listenerMachine) commit(op listenerOp, to ListenerState) {
	from := m.state
	m.state = to
	logTransition("listener", m.handle.Fd(), op.String(), from, to)
}

func (m *listenerMachine) bind(ep Endpoint) error {
	next, err := m.state.next(listenerBind)
	if err != nil {
		return err
	}

	h, err := openSocket(ep.Family())
	if err != nil {
		return err
	}

	if m.nonBlocking {
		if err := setNonBlocking(h.Fd(), true); err != nil {
			_ = h.Close()
			return err
		}
	}

	if err := sys.Bind(h.Fd(), ep.sockaddr()); err != nil {
		_ = h.Close()
		return syscallError("bind", err)
	}

	m.handle = h
	m.endpoint = ep
	m.commit(listenerBind, next)
	return nil
}

func (m *listenerMachine) listen(backlog int) error {
	next, err := m.state.next(listenerListen)
	if err != nil {
		return err
	}

	if err := sys.Listen(m.handle.Fd(), backlog); err != nil {
		return syscallError("listen", err)
	}

	m.backlog = backlog
	m.commit(listenerListen, next)
	return nil
}

// accept returns the handle and peer endpoint of the next pending connection.
func (m *listenerMachine) accept() (*Handle, Endpoint, error) {
	next, err := m.state.next(listenerAccept)
	if err != nil {
		return nil, Endpoint{}, err
	}

	fd, sa, err := sys.Accept(m.handle.Fd())
	if err != nil {
		return nil, Endpoint{}, syscallError("accept", err)
	}
	h := NewHandle(fd)

	peer, err := endpointFromSockaddr(sa)
	if err != nil {
		_ = h.Close()
		return nil, Endpoint{}, err
	}

	m.commit(listenerAccept, next)
	return h, peer, nil
}

func (m *listenerMachine) close() error {
	next, err := m.state.next(listenerClose)
	if err != nil {
		return err
	}

	err = m.handle.Close()
	m.commit(listenerClose, next)
	return err
}

func (m *listenerMachine) reset() error {
	next, _ := m.state.next(listenerReset)

	err := m.handle.Close()
	m.handle = &Handle{}
	m.endpoint = Endpoint{}
	m.backlog = 0
	m.nonBlocking = false
	m.commit(listenerReset, next)
	return err
}

func (m *listenerMachine) setNonBlocking(nonBlocking bool) error {
	if nonBlocking == m.nonBlocking {
		return nil
	}

	if m.handle.Owns() {
		if err := setNonBlocking(m.handle.Fd(), nonBlocking); err != nil {
			return err
		}
	}

	m.nonBlocking = nonBlocking
	return nil
}

func (m *listenerMachine) isBound() bool {
	return m.state == ListenerBound || m.isListening()
}

func (m *listenerMachine) isListening() bool {
	return m.state == ListenerListening || m.state == ListenerAccepting
}

// boundEndpoint returns the endpoint passed to bind.
func (m *listenerMachine) boundEndpoint(op string) (Endpoint, error) {
	switch m.state {
	case ListenerInit:
		return Endpoint{}, &StateError{Op: op, State: m.state, Reason: ErrNotReady}
	case ListenerClosed:
		return Endpoint{}, &StateError{Op: op, State: m.state, Reason: ErrTooLate}
	default:
		return m.endpoint, nil
	}
}

// localEndpoint returns the endpoint the kernel actually bound, which differs
// from the bound endpoint when port 0 was requested.
func (m *listenerMachine) localEndpoint() (Endpoint, error) {
	if _, err := m.boundEndpoint("get local endpoint"); err != nil {
		return Endpoint{}, err
	}

	sa, err := sys.Getsockname(m.handle.Fd())
	if err != nil {
		return Endpoint{}, syscallError("getsockname", err)
	}
	return endpointFromSockaddr(sa)
}

func openSocket(family int) (*Handle, error) {
	fd, err := sys.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, syscallError("socket", err)
	}
	return NewHandle(fd), nil
}
