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
	"sync"

	"golang.org/x/sys/unix"
)

// StreamState is the lifecycle state of a Stream.
type StreamState uint8

const (
	StreamInit StreamState = iota
	StreamConnected
	StreamUpstreamClosed
	StreamDownstreamClosed
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamInit:
		return "init"
	case StreamConnected:
		return "connected"
	case StreamUpstreamClosed:
		return "upstream-closed"
	case StreamDownstreamClosed:
		return "downstream-closed"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type streamOp uint8

const (
	streamConnect streamOp = iota
	streamSend
	streamReceive
	streamCloseUpstream
	streamCloseDownstream
	streamClose
	streamReconnect
	streamReset
)

func (op streamOp) String() string {
	switch op {
	case streamConnect:
		return "connect"
	case streamSend:
		return "send"
	case streamReceive:
		return "receive"
	case streamCloseUpstream:
		return "close upstream"
	case streamCloseDownstream:
		return "close downstream"
	case streamClose:
		return "close"
	case streamReconnect:
		return "reconnect"
	case streamReset:
		return "reset"
	default:
		return "unknown"
	}
}

// next returns the state op leads to from s. Illegal transitions return a
// StateError and leave s as is.
func (s StreamState) next(op streamOp) (StreamState, error) {
	notReady := &StateError{Op: op.String(), State: s, Reason: ErrNotReady}
	tooLate := &StateError{Op: op.String(), State: s, Reason: ErrTooLate}

	switch op {
	case streamConnect:
		if s == StreamInit {
			return StreamConnected, nil
		}
		return s, tooLate
	case streamSend:
		switch s {
		case StreamConnected, StreamDownstreamClosed:
			return s, nil
		case StreamInit:
			return s, notReady
		default:
			return s, tooLate
		}
	case streamReceive:
		switch s {
		case StreamConnected, StreamUpstreamClosed:
			return s, nil
		case StreamInit:
			return s, notReady
		default:
			return s, tooLate
		}
	case streamCloseUpstream:
		switch s {
		case StreamConnected:
			return StreamUpstreamClosed, nil
		case StreamDownstreamClosed:
			return StreamClosed, nil
		case StreamInit:
			return s, notReady
		default:
			return s, tooLate
		}
	case streamCloseDownstream:
		switch s {
		case StreamConnected:
			return StreamDownstreamClosed, nil
		case StreamUpstreamClosed:
			return StreamClosed, nil
		case StreamInit:
			return s, notReady
		default:
			return s, tooLate
		}
	case streamClose:
		switch s {
		case StreamInit:
			return s, notReady
		case StreamClosed:
			return s, tooLate
		default:
			return StreamClosed, nil
		}
	case streamReconnect:
		if s == StreamInit {
			return s, notReady
		}
		return StreamConnected, nil
	case streamReset:
		return StreamInit, nil
	default:
		panic("unreachable")
	}
}

// streamMachine guards its state with mu so that one goroutine may send while
// another receives or shuts down the write half. The lock is not held across
// send and receive syscalls.
type streamMachine struct {
	mu          sync.Mutex
	state       StreamState
	handle      *Handle
	peer        Endpoint
	nonBlocking bool
}

func newStreamMachine() *streamMachine {
	return &streamMachine{handle: &Handle{}}
}

// newConnectedStreamMachine adopts a handle produced by accept.
func newConnectedStreamMachine(h *Handle, peer Endpoint) *streamMachine {
	m := &streamMachine{state: StreamConnected, handle: h, peer: peer}
	logTransition("stream", h.Fd(), "accept", StreamInit, StreamConnected)
	return m
}

func (m *streamMachine) commit(op streamOp, to StreamState) {
	from := m.state
	m.state = to
	logTransition("stream", m.handle.Fd(), op.String(), from, to)
}

// permit checks op against the current state and returns the descriptor to
// issue it on.
func (m *streamMachine) permit(op streamOp) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.state.next(op); err != nil {
		return NoFd, err
	}
	return m.handle.Fd(), nil
}

func (m *streamMachine) dial(ep Endpoint) (*Handle, error) {
	h, err := openSocket(ep.Family())
	if err != nil {
		return nil, err
	}

	if m.nonBlocking {
		if err := setNonBlocking(h.Fd(), true); err != nil {
			_ = h.Close()
			return nil, err
		}
	}

	if err := sys.Connect(h.Fd(), ep.sockaddr()); err != nil {
		_ = h.Close()
		return nil, syscallError("connect", err)
	}

	return h, nil
}

func (m *streamMachine) connect(ep Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.state.next(streamConnect)
	if err != nil {
		return err
	}

	h, err := m.dial(ep)
	if err != nil {
		return err
	}

	m.handle = h
	m.peer = ep
	m.commit(streamConnect, next)
	return nil
}

func (m *streamMachine) send(p []byte, flags int) (int, error) {
	fd, err := m.permit(streamSend)
	if err != nil {
		return 0, err
	}

	n, err := sys.Send(fd, p, flags)
	if err != nil {
		return 0, syscallError("send", err)
	}
	return n, nil
}

func (m *streamMachine) receive(p []byte, flags int) (int, error) {
	fd, err := m.permit(streamReceive)
	if err != nil {
		return 0, err
	}

	n, err := sys.Recv(fd, p, flags)
	if err != nil {
		return 0, syscallError("recv", err)
	}
	if n == 0 && len(p) != 0 {
		return 0, ErrEndOfStream
	}
	return n, nil
}

func (m *streamMachine) closeUpstream() error {
	return m.shutdown(streamCloseUpstream, unix.SHUT_WR)
}

func (m *streamMachine) closeDownstream() error {
	return m.shutdown(streamCloseDownstream, unix.SHUT_RD)
}

// shutdown closes one half of the connection. When the other half is already
// shut the descriptor is closed instead.
func (m *streamMachine) shutdown(op streamOp, how int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.state.next(op)
	if err != nil {
		return err
	}

	if next == StreamClosed {
		err := m.handle.Close()
		m.commit(op, next)
		return err
	}

	if err := sys.Shutdown(m.handle.Fd(), how); err != nil {
		return syscallError("shutdown", err)
	}
	m.commit(op, next)
	return nil
}

func (m *streamMachine) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.state.next(streamClose)
	if err != nil {
		return err
	}

	err = m.handle.Close()
	m.commit(streamClose, next)
	return err
}

// reconnect replaces the descriptor with a new connection to the stored peer.
// If the new connection fails the stream is left closed.
func (m *streamMachine) reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.state.next(streamReconnect)
	if err != nil {
		return err
	}

	if err := m.handle.Close(); err != nil {
		m.commit(streamReconnect, StreamClosed)
		return err
	}

	h, err := m.dial(m.peer)
	if err != nil {
		m.commit(streamReconnect, StreamClosed)
		return err
	}

	m.handle = h
	m.commit(streamReconnect, next)
	return nil
}

func (m *streamMachine) reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, _ := m.state.next(streamReset)

	err := m.handle.Close()
	m.handle = &Handle{}
	m.peer = Endpoint{}
	m.nonBlocking = false
	m.commit(streamReset, next)
	return err
}

func (m *streamMachine) setNonBlocking(nonBlocking bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

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

func (m *streamMachine) isNonBlocking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonBlocking
}

func (m *streamMachine) current() StreamState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *streamMachine) fd() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle.Fd()
}

func (m *streamMachine) peerEndpoint(op string) (Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StreamConnected, StreamUpstreamClosed, StreamDownstreamClosed:
		return m.peer, nil
	case StreamInit:
		return Endpoint{}, &StateError{Op: op, State: m.state, Reason: ErrNotReady}
	default:
		return Endpoint{}, &StateError{Op: op, State: m.state, Reason: ErrTooLate}
	}
}

func isConnectedState(s StreamState) bool {
	switch s {
	case StreamConnected, StreamUpstreamClosed, StreamDownstreamClosed:
		return true
	default:
		return false
	}
}
