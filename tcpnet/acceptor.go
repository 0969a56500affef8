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

package tcpnet

import (
	liberr "github.com/nabbar/rpcx/errors"
	"github.com/nabbar/rpcx/reactor"
)

// AcceptCallback receives an accepted socket and its peer address; the
// server uses it to build the connection on an I/O loop.
type AcceptCallback func(sock *socket, peer *Addr)

// Acceptor listens on a bound socket and reports each accepted connection
// through AcceptCallback. It lives on one Loop (normally the server's main
// loop) and never blocks: accept failures due to EAGAIN are ignored.
type Acceptor struct {
	loop *reactor.Loop
	sock *socket
	ch   *reactor.Channel

	onAccept AcceptCallback
}

// NewAcceptor creates a socket bound to addr; Listen starts listening on
// it. reusePort enables SO_REUSEPORT so
// multiple acceptors (one per I/O loop) may share the listen address.
func NewAcceptor(loop *reactor.Loop, addr *Addr, reusePort bool) (*Acceptor, liberr.Error) {
	sock, err := newNonBlockingSocket()
	if err != nil {
		return nil, err
	}
	if err = sock.SetReuseAddr(true); err != nil {
		return nil, err
	}
	if reusePort {
		if err = sock.SetReusePort(true); err != nil {
			return nil, err
		}
	}
	if err = sock.Bind(addr.sockaddr()); err != nil {
		return nil, err
	}

	a := &Acceptor{loop: loop, sock: sock}
	a.ch = reactor.NewChannel(loop, sock.Fd())
	a.ch.SetReadCallback(a.handleRead)

	return a, nil
}

func (a *Acceptor) SetAcceptCallback(cb AcceptCallback) { a.onAccept = cb }

// LocalAddr returns the bound address, re-read from the kernel so a
// port of 0 at construction resolves to whatever port was assigned.
func (a *Acceptor) LocalAddr() (*Addr, liberr.Error) {
	return a.sock.LocalAddr()
}

// Listen arms the listening socket and enables read interest for incoming
// connections. Must run on the acceptor's owning loop.
func (a *Acceptor) Listen(backlog int) liberr.Error {
	if err := a.sock.Listen(backlog); err != nil {
		return err
	}
	a.ch.EnableReading()
	return nil
}

func (a *Acceptor) handleRead() {
	for {
		fd, sa, e := a.sock.Accept()
		if e != nil {
			return
		}

		s := &socket{fd: fd}
		peer := fromSockaddr(sa)
		if a.onAccept != nil {
			a.onAccept(s, peer)
		} else {
			_ = s.Close()
		}
	}
}

func (a *Acceptor) Close() {
	a.ch.Remove()
	_ = a.sock.Close()
}
