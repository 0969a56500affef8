/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package reactor

import (
	"fmt"

	liberr "github.com/nabbar/rpcx/errors"
)

const pkgName = "rpcx/reactor"

const (
	ErrorLoopNotOwner liberr.CodeError = iota + liberr.MinPkgReactor
	ErrorLoopAlreadyRunning
	ErrorLoopClosed
	ErrorPollerCreate
	ErrorPollerWait
	ErrorSocketCreate
	ErrorSocketOption
	ErrorTimerFdCreate
	ErrorWakeupFdCreate
)

func init() {
	if liberr.ExistInMapMessage(ErrorLoopNotOwner) {
		panic(fmt.Errorf("error code collision %s", pkgName))
	}
	liberr.RegisterIdFctMessage(ErrorLoopNotOwner, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case liberr.UnknownError:
		return liberr.NullMessage
	case ErrorLoopNotOwner:
		return "channel, timer or task mutated from a goroutine other than the loop's owner"
	case ErrorLoopAlreadyRunning:
		return "loop is already running"
	case ErrorLoopClosed:
		return "loop has quit"
	case ErrorPollerCreate:
		return "cannot create poller"
	case ErrorPollerWait:
		return "poller wait returned a fatal error"
	case ErrorSocketCreate:
		return "cannot create socket"
	case ErrorSocketOption:
		return "cannot set socket option"
	case ErrorTimerFdCreate:
		return "cannot create timer fd"
	case ErrorWakeupFdCreate:
		return "cannot create wakeup fd"
	}

	return liberr.NullMessage
}
