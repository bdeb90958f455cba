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
	"io"
)

// DialConfig configures Dial.
type DialConfig struct {
	// NonBlocking puts the socket into non-blocking mode before connecting.
	// The connect then fails with EINPROGRESS unless it completes at once.
	NonBlocking bool
}

// Stream is a connected stream socket whose read and write halves can be
// shut down independently. A Stream owns its descriptor exclusively; use Move
// to hand it to another owner.
//
// One goroutine may send while another receives, and CloseUpstream may be
// called while a Receive is blocked. CloseDownstream, Close, Reconnect, Reset
// and Move close or replace the descriptor and must not race with Send or
// Receive.
type Stream struct {
	m *streamMachine
}

var _ io.ReadWriteCloser = (*Stream)(nil)

// NewStream returns an unconnected stream.
func NewStream() *Stream {
	return &Stream{m: newStreamMachine()}
}

// Dial connects a new stream to ep.
func Dial(ep Endpoint, conf *DialConfig) (*Stream, error) {
	if conf == nil {
		conf = &DialConfig{}
	}

	s := NewStream()
	if err := s.SetNonBlocking(conf.NonBlocking); err != nil {
		return nil, err
	}
	if err := s.Connect(ep); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect creates the socket and connects it to ep.
func (s *Stream) Connect(ep Endpoint) error {
	return s.m.connect(ep)
}

// Send issues a single send(2) and returns the number of bytes written,
// which may be less than len(p).
func (s *Stream) Send(p []byte, flags int) (int, error) {
	return s.m.send(p, flags)
}

// Receive issues a single recv(2). It returns ErrEndOfStream when the peer
// has shut down its write side and p is not empty.
func (s *Stream) Receive(p []byte, flags int) (int, error) {
	return s.m.receive(p, flags)
}

// Read implements io.Reader on top of Receive.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.Receive(p, 0)
	if errors.Is(err, ErrEndOfStream) {
		return 0, io.EOF
	}
	return n, err
}

// Write implements io.Writer, sending until all of p is written.
func (s *Stream) Write(p []byte) (int, error) {
	return SendAll(s, p)
}

// CloseUpstream shuts down the write half. If the read half is already shut
// the socket is closed.
func (s *Stream) CloseUpstream() error {
	return s.m.closeUpstream()
}

// CloseDownstream shuts down the read half. If the write half is already shut
// the socket is closed.
func (s *Stream) CloseDownstream() error {
	return s.m.closeDownstream()
}

// Close closes the socket. Closing twice is an error.
func (s *Stream) Close() error {
	return s.m.close()
}

// Reconnect closes any current socket and connects again to the stored peer.
func (s *Stream) Reconnect() error {
	return s.m.reconnect()
}

// Reset closes any owned socket and returns the stream to its initial state,
// forgetting the peer.
func (s *Stream) Reset() error {
	return s.m.reset()
}

// SetNonBlocking switches non-blocking mode. Before Connect the setting is
// stored and applied when the socket is created.
func (s *Stream) SetNonBlocking(nonBlocking bool) error {
	return s.m.setNonBlocking(nonBlocking)
}

// NonBlocking reports whether non-blocking mode is set.
func (s *Stream) NonBlocking() bool {
	return s.m.isNonBlocking()
}

// Peer returns the endpoint of the remote side.
func (s *Stream) Peer() (Endpoint, error) {
	return s.m.peerEndpoint("get peer")
}

// PeerAddress returns the address of the remote side.
func (s *Stream) PeerAddress() (Address, error) {
	ep, err := s.m.peerEndpoint("get peer address")
	return ep.Address(), err
}

// PeerPort returns the port of the remote side.
func (s *Stream) PeerPort() (Port, error) {
	ep, err := s.m.peerEndpoint("get peer port")
	return ep.Port(), err
}

// State returns the current lifecycle state.
func (s *Stream) State() StreamState {
	return s.m.current()
}

// IsConnected reports whether a connection is established and at least one
// half is still open.
func (s *Stream) IsConnected() bool {
	return isConnectedState(s.m.current())
}

// UpstreamClosed reports whether the write half is shut.
func (s *Stream) UpstreamClosed() bool {
	state := s.m.current()
	return state == StreamUpstreamClosed || state == StreamClosed
}

// DownstreamClosed reports whether the read half is shut.
func (s *Stream) DownstreamClosed() bool {
	state := s.m.current()
	return state == StreamDownstreamClosed || state == StreamClosed
}

// IsClosed reports whether the socket has been closed.
func (s *Stream) IsClosed() bool { return s.m.current() == StreamClosed }

// Fd returns the owned descriptor, or NoFd.
func (s *Stream) Fd() int {
	return s.m.fd()
}

// Move transfers the socket and its state to a new Stream. s is left in the
// initial state, owning nothing.
func (s *Stream) Move() *Stream {
	moved := &Stream{m: s.m}
	s.m = newStreamMachine()
	return moved
}
