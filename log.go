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
	"fmt"

	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger().WithField("component", "socket")

// SetLogger replaces the logger used for state transition and finalizer
// messages. Passing nil restores the default.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger().WithField("component", "socket")
	}
	logger = l
}

func logTransition(kind string, fd int, op string, from, to fmt.Stringer) {
	logger.WithFields(logrus.Fields{
		"fd":   fd,
		"op":   op,
		"from": from.String(),
		"to":   to.String(),
	}).Debugf("%s transition", kind)
}
