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
	"sync"
	"sync/atomic"

	liberr "github.com/nabbar/rpcx/errors"
	"github.com/nabbar/rpcx/reactor"
	"github.com/nabbar/rpcx/reactor/loop"
)

// Server owns an Acceptor on its main loop and assigns each accepted
// connection to a loop drawn round-robin from an I/O loop pool, the
// lifetime manager described for TCP servers.
type Server struct {
	mainLoop *reactor.Loop
	pool     *loop.Pool
	addr     *Addr

	acceptor *Acceptor
	nextID   atomic.Int64

	mu    sync.Mutex
	conns map[ConnID]*Connection

	onConn  ConnectionCallback
	onMsg   MessageCallback
	onWrite WriteCompleteCallback
}

// NewServer builds a server bound to addr, distributing connections across
// pool (which may be a single-loop pool, running everything on mainLoop).
func NewServer(mainLoop *reactor.Loop, pool *loop.Pool, addr *Addr) (*Server, liberr.Error) {
	acc, err := NewAcceptor(mainLoop, addr, false)
	if err != nil {
		return nil, err
	}

	s := &Server{
		mainLoop: mainLoop,
		pool:     pool,
		addr:     addr,
		acceptor: acc,
		conns:    make(map[ConnID]*Connection),
	}
	acc.SetAcceptCallback(s.handleAccept)

	return s, nil
}

func (s *Server) SetConnectionCallback(cb ConnectionCallback)       { s.onConn = cb }
func (s *Server) SetMessageCallback(cb MessageCallback)             { s.onMsg = cb }
func (s *Server) SetWriteCompleteCallback(cb WriteCompleteCallback) { s.onWrite = cb }

// Start arms the listening socket. Must run on the server's main loop.
func (s *Server) Start(backlog int) liberr.Error {
	return s.acceptor.Listen(backlog)
}

// Addr returns the server's bound address, re-read from the kernel so a
// port of 0 given to NewServer resolves to the assigned ephemeral port.
func (s *Server) Addr() (*Addr, liberr.Error) {
	return s.acceptor.LocalAddr()
}

func (s *Server) handleAccept(sock *socket, peer *Addr) {
	l := s.pool.Next()
	id := ConnID(s.nextID.Add(1))

	l.RunInLoop(func() {
		local, _ := sock.LocalAddr()
		c := newConnection(l, sock, id, local, peer)
		c.SetConnectionCallback(s.onConn)
		c.SetMessageCallback(s.onMsg)
		c.SetWriteCompleteCallback(s.onWrite)
		c.SetCloseCallback(s.removeConnection)

		s.mu.Lock()
		s.conns[id] = c
		s.mu.Unlock()

		c.Establish()
	})
}

func (s *Server) removeConnection(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c.ID())
	s.mu.Unlock()

	c.Loop().RunInLoop(c.destroy)
}

// Connection looks up a live connection by id, returning nil if it has
// since been closed and removed.
func (s *Server) Connection(id ConnID) *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[id]
}

func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stop closes the listening socket; established connections are left to
// drain and close individually.
func (s *Server) Stop() {
	s.acceptor.Close()
}
