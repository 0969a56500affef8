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
	"math/rand"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/rpcx/reactor"
)

const (
	retryInitialDelay = 500 * time.Millisecond
	retryMaxDelay     = 30 * time.Second
)

// ConnectResultCallback receives the connected socket and its peer on
// success. It is never called with a nil socket: failed attempts are
// retried, and after Stop no new attempt is started.
type ConnectResultCallback func(sock *socket, peer *Addr)

// Connector retries a non-blocking connect with randomised exponential
// back-off until it succeeds or Stop is called.
type Connector struct {
	loop *reactor.Loop
	addr *Addr

	onConnect ConnectResultCallback

	connecting bool
	stopped    bool
	retryDelay time.Duration

	ch *reactor.Channel
}

func NewConnector(loop *reactor.Loop, addr *Addr, cb ConnectResultCallback) *Connector {
	return &Connector{
		loop:       loop,
		addr:       addr,
		onConnect:  cb,
		retryDelay: retryInitialDelay,
	}
}

// Start begins (or restarts) connecting. Safe to call from any goroutine.
func (c *Connector) Start() {
	c.stopped = false
	c.loop.RunInLoop(c.startInLoop)
}

func (c *Connector) Stop() {
	c.stopped = true
}

func (c *Connector) startInLoop() {
	if c.stopped || c.connecting {
		return
	}
	c.connecting = true
	c.connect()
}

func (c *Connector) connect() {
	sock, err := newNonBlockingSocket()
	if err != nil {
		c.retryInLoop()
		return
	}

	e := sock.Connect(c.addr.sockaddr())
	switch e {
	case nil:
		c.connecting = false
		if c.onConnect != nil {
			c.onConnect(sock, c.addr)
		}
	case unix.EINPROGRESS:
		c.ch = reactor.NewChannel(c.loop, sock.Fd())
		c.ch.SetWriteCallback(func() { c.handleConnecting(sock) })
		c.ch.SetErrorCallback(func() { c.handleConnecting(sock) })
		c.ch.EnableWriting()
	default:
		_ = sock.Close()
		c.retryInLoop()
	}
}

func (c *Connector) handleConnecting(sock *socket) {
	if c.ch != nil {
		c.ch.DisableAll()
		c.ch.Remove()
		c.ch = nil
	}

	errCode, _ := sock.ErrorCode()
	if errCode != 0 {
		_ = sock.Close()
		c.retryInLoop()
		return
	}

	c.connecting = false
	c.retryDelay = retryInitialDelay
	if c.onConnect != nil {
		c.onConnect(sock, c.addr)
	}
}

// retryInLoop arms a randomised exponential back-off retry timer, capped
// at retryMaxDelay.
func (c *Connector) retryInLoop() {
	c.connecting = false
	if c.stopped {
		return
	}

	delay := c.retryDelay
	jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))

	c.loop.RunAfter(jittered, func() {
		if !c.stopped {
			c.connecting = true
			c.connect()
		}
	})

	c.retryDelay *= 2
	if c.retryDelay > retryMaxDelay {
		c.retryDelay = retryMaxDelay
	}
}
