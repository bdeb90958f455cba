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
	"encoding/binary"
	"strconv"
)

// Port is a TCP port number in host byte order.
type Port uint16

// PortFromNetworkOrder converts a port read from a sockaddr structure into
// host byte order.
func PortFromNetworkOrder(n uint16) Port {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], n)
	return Port(binary.BigEndian.Uint16(b[:]))
}

// NetworkOrder returns the port in network byte order, as stored in a
// sockaddr structure.
func (p Port) NetworkOrder() uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(p))
	return binary.NativeEndian.Uint16(b[:])
}

func (p Port) String() string {
	return strconv.FormatUint(uint64(p), 10)
}
