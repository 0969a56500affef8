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

package tcpnet

import (
	"fmt"

	liberr "github.com/nabbar/rpcx/errors"
)

const pkgName = "rpcx/tcpnet"

const (
	ErrorSocketCreate liberr.CodeError = iota + liberr.MinPkgTcpNet
	ErrorSocketBind
	ErrorSocketListen
	ErrorSocketAccept
	ErrorSocketConnect
	ErrorSocketOption
	ErrorSocketRead
	ErrorSocketWrite
	ErrorAddrParse
	ErrorConnShutdown
)

func init() {
	if liberr.ExistInMapMessage(ErrorSocketCreate) {
		panic(fmt.Errorf("error code collision %s", pkgName))
	}
	liberr.RegisterIdFctMessage(ErrorSocketCreate, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case liberr.UnknownError:
		return liberr.NullMessage
	case ErrorSocketCreate:
		return "cannot create socket"
	case ErrorSocketBind:
		return "cannot bind socket"
	case ErrorSocketListen:
		return "cannot listen on socket"
	case ErrorSocketAccept:
		return "cannot accept connection"
	case ErrorSocketConnect:
		return "cannot connect socket"
	case ErrorSocketOption:
		return "cannot set socket option"
	case ErrorSocketRead:
		return "socket read failed"
	case ErrorSocketWrite:
		return "socket write failed"
	case ErrorAddrParse:
		return "cannot parse address"
	case ErrorConnShutdown:
		return "cannot shutdown connection"
	}

	return liberr.NullMessage
}
