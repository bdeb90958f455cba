// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package socket

// DefaultBacklog is the listen backlog used when none is configured.
const DefaultBacklog = 5

// ListenConfig configures ListenOn.
type ListenConfig struct {
	// Backlog is the maximum length of the pending connection queue.
	// If zero, DefaultBacklog is used.
	Backlog int
	// NonBlocking puts the listening socket into non-blocking mode, in which
	// Accept fails with EAGAIN rather than waiting for a connection.
	NonBlocking bool
}

// Listener is a listening stream socket. A Listener owns its descriptor
// exclusively; use Move to hand it to another owner. Listeners are not safe
// for concurrent use.
type Listener struct {
	m *listenerMachine
}

// NewListener returns an unbound listener.
func NewListener() *Listener {
	return &Listener{m: newListenerMachine()}
}

// ListenOn binds a new listener to ep and starts listening.
func ListenOn(ep Endpoint, conf *ListenConfig) (*Listener, error) {
	if conf == nil {
		conf = &ListenConfig{}
	}

	backlog := conf.Backlog
	if backlog == 0 {
		backlog = DefaultBacklog
	}

	l := NewListener()
	if err := l.SetNonBlocking(conf.NonBlocking); err != nil {
		return nil, err
	}
	if err := l.Bind(ep); err != nil {
		return nil, err
	}
	if err := l.Listen(backlog); err != nil {
		_ = l.Close()
		return nil, err
	}

	return l, nil
}

// ListenPort listens on the given port of the IPv4 loopback address.
func ListenPort(port Port, conf *ListenConfig) (*Listener, error) {
	return ListenOn(NewEndpoint(Localhost(), port), conf)
}

// Bind creates the socket and binds it to ep.
func (l *Listener) Bind(ep Endpoint) error {
	return l.m.bind(ep)
}

// Listen marks the bound socket as accepting connections.
func (l *Listener) Listen(backlog int) error {
	return l.m.listen(backlog)
}

// Accept waits for the next connection and returns it as a connected Stream.
// Accept may be called repeatedly.
func (l *Listener) Accept() (*Stream, error) {
	h, peer, err := l.m.accept()
	if err != nil {
		return nil, err
	}
	return &Stream{m: newConnectedStreamMachine(h, peer)}, nil
}

// Close closes the listening socket. Closing twice is an error.
func (l *Listener) Close() error {
	return l.m.close()
}

// Reset closes any owned socket and returns the listener to its initial
// state, after which it can be bound again.
func (l *Listener) Reset() error {
	return l.m.reset()
}

// SetNonBlocking switches non-blocking mode. Before Bind the setting is
// stored and applied when the socket is created.
func (l *Listener) SetNonBlocking(nonBlocking bool) error {
	return l.m.setNonBlocking(nonBlocking)
}

// NonBlocking reports whether non-blocking mode is set.
func (l *Listener) NonBlocking() bool {
	return l.m.nonBlocking
}

// Endpoint returns the endpoint passed to Bind.
func (l *Listener) Endpoint() (Endpoint, error) {
	return l.m.boundEndpoint("get endpoint")
}

// LocalEndpoint returns the endpoint the socket is actually bound to, with
// the kernel-assigned port when Bind was given port 0.
func (l *Listener) LocalEndpoint() (Endpoint, error) {
	return l.m.localEndpoint()
}

// Address returns the address passed to Bind.
func (l *Listener) Address() (Address, error) {
	ep, err := l.m.boundEndpoint("get address")
	return ep.Address(), err
}

// Port returns the port passed to Bind.
func (l *Listener) Port() (Port, error) {
	ep, err := l.m.boundEndpoint("get port")
	return ep.Port(), err
}

// Backlog returns the backlog passed to Listen, or zero.
func (l *Listener) Backlog() int {
	return l.m.backlog
}

// State returns the current lifecycle state.
func (l *Listener) State() ListenerState {
	return l.m.state
}

// IsBound reports whether the socket is bound and not yet closed.
func (l *Listener) IsBound() bool { return l.m.isBound() }

// IsListening reports whether Listen has succeeded and the socket is open.
func (l *Listener) IsListening() bool { return l.m.isListening() }

// IsAccepting reports whether at least one connection has been accepted.
func (l *Listener) IsAccepting() bool { return l.m.state == ListenerAccepting }

// IsClosed reports whether the socket has been closed.
func (l *Listener) IsClosed() bool { return l.m.state == ListenerClosed }

// Fd returns the owned descriptor, or NoFd.
func (l *Listener) Fd() int {
	return l.m.handle.Fd()
}

// Move transfers the socket and its state to a new Listener. l is left in
// the initial state, owning nothing.
func (l *Listener) Move() *Listener {
	moved := &Listener{m: l.m}
	l.m = newListenerMachine()
	return moved
}
