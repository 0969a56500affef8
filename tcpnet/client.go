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
	"sync/atomic"

	"github.com/nabbar/rpcx/reactor"
)

// Client owns one Connector retrying against a single endpoint and the one
// live Connection it produces, the lifetime manager for the RPC client
// channel's per-endpoint transport.
type Client struct {
	loop *reactor.Loop
	addr *Addr

	connector *Connector
	nextID    atomic.Int64

	current atomic.Pointer[Connection]

	onConn  ConnectionCallback
	onMsg   MessageCallback
	onWrite WriteCompleteCallback
}

func NewClient(loop *reactor.Loop, addr *Addr) *Client {
	c := &Client{loop: loop, addr: addr}
	c.connector = NewConnector(loop, addr, c.handleConnected)
	return c
}

func (c *Client) SetConnectionCallback(cb ConnectionCallback)       { c.onConn = cb }
func (c *Client) SetMessageCallback(cb MessageCallback)             { c.onMsg = cb }
func (c *Client) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.onWrite = cb }

// Connect starts (or restarts) the retrying connect loop.
func (c *Client) Connect() { c.connector.Start() }

// Disconnect stops retrying and shuts down any live connection.
func (c *Client) Disconnect() {
	c.connector.Stop()
	if conn := c.current.Load(); conn != nil {
		conn.Shutdown()
	}
}

// Connection returns the current live connection, or nil if not connected.
func (c *Client) Connection() *Connection { return c.current.Load() }

func (c *Client) handleConnected(sock *socket, peer *Addr) {
	id := ConnID(c.nextID.Add(1))
	local, _ := sock.LocalAddr()

	conn := newConnection(c.loop, sock, id, local, peer)
	conn.SetConnectionCallback(c.onConn)
	conn.SetMessageCallback(c.onMsg)
	conn.SetWriteCompleteCallback(c.onWrite)
	conn.SetCloseCallback(c.handleClosed)

	c.current.Store(conn)
	conn.Establish()
}

func (c *Client) handleClosed(conn *Connection) {
	c.current.CompareAndSwap(conn, nil)
	conn.Loop().RunInLoop(conn.destroy)

	c.connector.Start()
}
