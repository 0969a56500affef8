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

//go:build linux

// Package tcpnet layers a stateful, buffered TCP connection abstraction on
// top of the reactor package: a non-blocking socket wrapper, accept/connect
// helpers, and a connection object driving send/receive through a Channel.
package tcpnet

import (
	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/rpcx/errors"
)

// socket wraps one non-blocking, close-on-exec socket file descriptor. It
// closes fd on Close and delegates every operation straight to the OS; no
// internal locking since ownership is exclusive.
type socket struct {
	fd int
}

// newNonBlockingSocket creates a fresh non-blocking TCP socket.
func newNonBlockingSocket() (*socket, liberr.Error) {
	fd, e := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if e != nil {
		return nil, ErrorSocketCreate.ErrorParent(e)
	}
	return &socket{fd: fd}, nil
}

func (s *socket) Fd() int { return s.fd }

func (s *socket) Close() liberr.Error {
	if e := unix.Close(s.fd); e != nil {
		return ErrorSocketCreate.ErrorParent(e)
	}
	return nil
}

func (s *socket) Bind(addr unix.Sockaddr) liberr.Error {
	if e := unix.Bind(s.fd, addr); e != nil {
		return ErrorSocketBind.ErrorParent(e)
	}
	return nil
}

func (s *socket) Listen(backlog int) liberr.Error {
	if e := unix.Listen(s.fd, backlog); e != nil {
		return ErrorSocketListen.ErrorParent(e)
	}
	return nil
}

// Accept returns a new non-blocking, close-on-exec connected socket fd and
// its peer address, or an error. unix.EAGAIN is returned unwrapped so the
// caller can distinguish "no pending connection" from a real failure.
func (s *socket) Accept() (int, unix.Sockaddr, error) {
	nfd, sa, e := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if e != nil {
		if e == unix.EAGAIN {
			return -1, nil, e
		}
		return -1, nil, ErrorSocketAccept.ErrorParent(e)
	}
	return nfd, sa, nil
}

// Connect starts a non-blocking connect; unix.EINPROGRESS is expected and
// returned unwrapped, the caller arms write-interest and checks SO_ERROR
// once the socket becomes writable.
func (s *socket) Connect(addr unix.Sockaddr) error {
	e := unix.Connect(s.fd, addr)
	if e != nil && e != unix.EINPROGRESS {
		return ErrorSocketConnect.ErrorParent(e)
	}
	return e
}

func (s *socket) ShutdownWrite() liberr.Error {
	if e := unix.Shutdown(s.fd, unix.SHUT_WR); e != nil {
		return ErrorConnShutdown.ErrorParent(e)
	}
	return nil
}

func (s *socket) Read(p []byte) (int, error) {
	return unix.Read(s.fd, p)
}

func (s *socket) Write(p []byte) (int, error) {
	return unix.Write(s.fd, p)
}

func (s *socket) SetTcpNoDelay(on bool) liberr.Error {
	return s.setBoolOpt(unix.IPPROTO_TCP, unix.TCP_NODELAY, on)
}

func (s *socket) SetReuseAddr(on bool) liberr.Error {
	return s.setBoolOpt(unix.SOL_SOCKET, unix.SO_REUSEADDR, on)
}

func (s *socket) SetReusePort(on bool) liberr.Error {
	return s.setBoolOpt(unix.SOL_SOCKET, unix.SO_REUSEPORT, on)
}

func (s *socket) SetKeepAlive(on bool) liberr.Error {
	return s.setBoolOpt(unix.SOL_SOCKET, unix.SO_KEEPALIVE, on)
}

func (s *socket) setBoolOpt(level, opt int, on bool) liberr.Error {
	v := 0
	if on {
		v = 1
	}
	if e := unix.SetsockoptInt(s.fd, level, opt, v); e != nil {
		return ErrorSocketOption.ErrorParent(e)
	}
	return nil
}

// ErrorCode returns the socket's pending SO_ERROR value, used after a
// non-blocking connect becomes writable to detect a refused connection.
func (s *socket) ErrorCode() (int, liberr.Error) {
	v, e := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if e != nil {
		return 0, ErrorSocketOption.ErrorParent(e)
	}
	return v, nil
}

func (s *socket) LocalAddr() (*Addr, liberr.Error) {
	sa, e := unix.Getsockname(s.fd)
	if e != nil {
		return nil, ErrorAddrParse.ErrorParent(e)
	}
	return fromSockaddr(sa), nil
}

func (s *socket) PeerAddr() (*Addr, liberr.Error) {
	sa, e := unix.Getpeername(s.fd)
	if e != nil {
		return nil, ErrorAddrParse.ErrorParent(e)
	}
	return fromSockaddr(sa), nil
}
