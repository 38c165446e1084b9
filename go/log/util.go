// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package log

import "fmt"

// LazyEval defers the computation of a log argument until it is printed.
type LazyEval func() string

func (l LazyEval) String() string {
	return l()
}

// BadgerLogger forwards the internal messages of a badger database to a
// module logger. Badger is chatty on info level, so those messages are
// demoted to debug.
type BadgerLogger struct {
	*Logger
}

func (l BadgerLogger) Errorf(format string, args ...interface{}) {
	l.Error().Msg(trim(fmt.Sprintf(format, args...)))
}

func (l BadgerLogger) Warningf(format string, args ...interface{}) {
	l.Warn().Msg(trim(fmt.Sprintf(format, args...)))
}

func (l BadgerLogger) Infof(format string, args ...interface{}) {
	l.Debug().Msg(trim(fmt.Sprintf(format, args...)))
}

func (l BadgerLogger) Debugf(format string, args ...interface{}) {
	l.Trace().Msg(trim(fmt.Sprintf(format, args...)))
}

func trim(msg string) string {
	for len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}
	return msg
}
