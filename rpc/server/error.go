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

// Package server implements the RPC server half: accepts connections,
// performs the HTTP bootstrap handshake, decodes frames, dispatches each
// request to a registered service implementation and writes back the
// RESPONSE frame, per the dispatch sequence in §4.7.
package server

import (
	"fmt"

	liberr "github.com/nabbar/rpcx/errors"
)

const pkgName = "rpcx/rpc/server"

const (
	ErrorAlreadyStarted liberr.CodeError = iota + liberr.MinPkgRpcServer
	ErrorServiceCollision
	ErrorListenFailed
	ErrorFileSetBundle
)

func init() {
	if liberr.ExistInMapMessage(ErrorAlreadyStarted) {
		panic(fmt.Errorf("error code collision %s", pkgName))
	}
	liberr.RegisterIdFctMessage(ErrorAlreadyStarted, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case liberr.UnknownError:
		return liberr.NullMessage
	case ErrorAlreadyStarted:
		return "server already started, cannot register a service or change options"
	case ErrorServiceCollision:
		return "a service is already registered under this full name"
	case ErrorListenFailed:
		return "server could not start listening on its bound address"
	case ErrorFileSetBundle:
		return "could not bundle the requested service descriptor files"
	}
	return liberr.NullMessage
}
