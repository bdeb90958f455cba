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
	"io"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultEOL terminates lines written by SendLine and read by ReadLine when
// no other terminator is given.
const DefaultEOL = "\r\n"

// Sender is implemented by Stream.
type Sender interface {
	Send(p []byte, flags int) (int, error)
}

// Receiver is implemented by Stream.
type Receiver interface {
	Receive(p []byte, flags int) (int, error)
}

// SendAll sends p in as many Send calls as it takes.
func SendAll(s Sender, p []byte) (int, error) {
	var sent int
	for sent < len(p) {
		n, err := s.Send(p[sent:], 0)
		sent += n
		if err != nil {
			return sent, err
		}
		if n == 0 {
			return sent, io.ErrShortWrite
		}
	}
	return sent, nil
}

// SendLine sends line followed by eol. An empty eol means DefaultEOL.
func SendLine(s Sender, line, eol string) error {
	if eol == "" {
		eol = DefaultEOL
	}
	_, err := SendAll(s, []byte(line+eol))
	return err
}

// ReadLine receives one byte at a time until eol is seen and returns the line
// without it, so nothing past the terminator is consumed. An empty eol means
// DefaultEOL. If the stream ends first, the partial line is returned with the
// error.
func ReadLine(r Receiver, eol string) (string, error) {
	if eol == "" {
		eol = DefaultEOL
	}

	var line strings.Builder
	var b [1]byte
	for {
		if _, err := r.Receive(b[:], unix.MSG_WAITALL); err != nil {
			return line.String(), err
		}
		line.WriteByte(b[0])

		if s := line.String(); strings.HasSuffix(s, eol) {
			return strings.TrimSuffix(s, eol), nil
		}
	}
}

// ReceiveNow receives whatever is already queued without waiting. It fails
// with EAGAIN when nothing is.
func ReceiveNow(r Receiver, p []byte) (int, error) {
	return r.Receive(p, unix.MSG_DONTWAIT)
}
