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

package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/rpcx/buffer"
	liberr "github.com/nabbar/rpcx/errors"
	"github.com/nabbar/rpcx/httpframe"
	"github.com/nabbar/rpcx/reactor"
	"github.com/nabbar/rpcx/reactor/loop"
	"github.com/nabbar/rpcx/rpc"
	"github.com/nabbar/rpcx/tcpnet"
	"github.com/nabbar/rpcx/trace"
)

// Options configures a Server's optional surfaces, per §6.5. Of the
// Disable* flags only DisableBuiltinService has a behavioral effect in this
// implementation; the others are accepted and stored for field-for-field
// parity with the option set but gate no functionality, since the HTTP
// inspection pages and form/JSON bridges they would gate are out of scope
// here. Sync and HighWaterMark take effect as described on each field.
type Options struct {
	DisableForm           bool
	DisableJSON           bool
	DisableFlags          bool
	DisablePProf          bool
	DisableStatistics     bool
	DisableBuiltinService bool

	// Sync, when greater than zero, is the size of a bounded worker pool
	// that runs every dispatched CallMethod off the connection's owning
	// loop goroutine, for service implementations that block.
	Sync int

	// HighWaterMark overrides tcpnet's default per-connection queued-output
	// threshold; zero keeps the default.
	HighWaterMark int
}

type serviceRegistration struct {
	impl        rpc.ServiceImpl
	schemaFiles []string
}

// serverConn is the per-connection state threaded through a Connection's
// Context: the bootstrap framer and the persistent buffer the RPC decoder
// reads from, mirroring the client channel's endpoint state.
type serverConn struct {
	conn   *tcpnet.Connection
	framer *httpframe.Framer
	rpcBuf *buffer.Buffer
}

// Server accepts connections, performs the bootstrap handshake, decodes
// RPC frames and dispatches each request to a registered service
// implementation, per §4.7.
type Server struct {
	log  reactor.Logger
	opt  Options
	srv  *tcpnet.Server

	workers *syncWorkerPool

	mu       sync.Mutex
	started  bool
	services map[string]*serviceRegistration

	healthy atomic.Bool
}

// NewServer builds a server bound to addr, distributing accepted
// connections across pool the same way tcpnet.Server does. Unless
// opt.DisableBuiltinService is set, the built-in HeartBeat/Services/
// GetFileSet service is registered immediately.
func NewServer(mainLoop *reactor.Loop, pool *loop.Pool, addr *tcpnet.Addr, log reactor.Logger, opt Options) (*Server, liberr.Error) {
	tcpSrv, err := tcpnet.NewServer(mainLoop, pool, addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		log:      log,
		opt:      opt,
		srv:      tcpSrv,
		services: make(map[string]*serviceRegistration),
	}
	s.healthy.Store(true)

	if opt.Sync > 0 {
		s.workers = newSyncWorkerPool(opt.Sync)
	}

	tcpSrv.SetConnectionCallback(s.onConnection)
	tcpSrv.SetMessageCallback(s.onMessage)

	if !opt.DisableBuiltinService {
		s.services[builtinServiceName] = &serviceRegistration{impl: newBuiltinService(s)}
	}

	return s, nil
}

// RegisterService records impl under its descriptor's full name;
// schemaFiles, if given, are the on-disk schema descriptor paths the
// built-in GetFileSet method bundles when this service is requested.
// Registration is only legal before Start.
func (s *Server) RegisterService(impl rpc.ServiceImpl, schemaFiles ...string) liberr.Error {
	name := impl.Descriptor().FullName

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrorAlreadyStarted.Error(nil)
	}
	if _, ok := s.services[name]; ok {
		return ErrorServiceCollision.Error(nil)
	}
	s.services[name] = &serviceRegistration{impl: impl, schemaFiles: schemaFiles}
	return nil
}

// Start arms the listening socket. Must run on the server's main loop.
func (s *Server) Start(backlog int) liberr.Error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrorAlreadyStarted.Error(nil)
	}
	s.started = true
	s.mu.Unlock()

	return s.srv.Start(backlog)
}

// Stop closes the listening socket and, if a synchronous dispatch pool is
// running, drains and stops it.
func (s *Server) Stop() {
	s.srv.Stop()
	if s.workers != nil {
		s.workers.Stop()
	}
}

func (s *Server) ConnectionCount() int { return s.srv.ConnectionCount() }

// Addr returns the server's bound address, resolving an ephemeral port
// (0) to whatever the kernel assigned once Start has run.
func (s *Server) Addr() (*tcpnet.Addr, liberr.Error) { return s.srv.Addr() }

// Healthy reports the liveness flag the built-in HeartBeat method reports.
func (s *Server) Healthy() bool { return s.healthy.Load() }

// SetHealthy flips the liveness flag; a false value makes HeartBeat report
// "Bad".
func (s *Server) SetHealthy(v bool) { s.healthy.Store(v) }

func (s *Server) lookupService(name string) (*serviceRegistration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.services[name]
	return reg, ok
}

func (s *Server) onConnection(c *tcpnet.Connection) {
	if !c.Connected() {
		return
	}

	sc := &serverConn{conn: c, framer: httpframe.NewRequestFramer(), rpcBuf: buffer.New()}
	sc.framer.SetHeadersCompleteCallback(func() { c.Send(httpframe.BootstrapResponseLine()) })
	sc.framer.SetBodyCallback(func(data []byte) { s.onBody(sc, data) })

	if s.opt.HighWaterMark > 0 {
		c.SetHighWaterMark(s.opt.HighWaterMark)
	}
	c.SetContext(sc)
}

func (s *Server) onMessage(c *tcpnet.Connection, in *buffer.Buffer) {
	sc, _ := c.Context().(*serverConn)
	if sc == nil {
		return
	}
	if err := sc.framer.Feed(in); err != nil {
		if s.log != nil {
			s.log.Errorf("rpc server: bootstrap framing from %s: %s", c.PeerAddr().String(), err.Error())
		}
		c.Shutdown()
	}
}

func (s *Server) onBody(sc *serverConn, data []byte) {
	sc.rpcBuf.Append(data)

	dec := rpc.NewDecoder(func(m *rpc.Message) { s.onRequest(sc, m) })
	if err := dec.Feed(sc.rpcBuf); err != nil {
		if s.log != nil {
			s.log.Errorf("rpc server: frame decode from %s: %s", sc.conn.PeerAddr().String(), err.Error())
		}
		sc.conn.Shutdown()
	}
}

// onRequest runs the dispatch sequence of §4.7 for one decoded REQUEST
// frame: build the controller, restore trace context and record
// "server_recv", resolve service and method, parse the request, then hand
// off to the implementation.
func (s *Server) onRequest(sc *serverConn, m *rpc.Message) {
	if m.Type != rpc.TypeRequest {
		sc.conn.Shutdown()
		return
	}

	connID := sc.conn.ID()
	ctrl := rpc.NewController()

	var span *trace.Span
	if m.Trace != nil {
		span = trace.Register(&trace.Span{
			Name:         m.Method,
			TraceID:      m.Trace.TraceID,
			SpanID:       m.Trace.SpanID,
			ParentSpanID: m.Trace.ParentSpanID,
		})
		ctrl.SetTrace(m.Trace)
	}

	var guard *trace.Guard
	if span != nil {
		guard = trace.SetContext(span.TraceID, span.SpanID)
		span.Record(trace.Annotation{Timestamp: time.Now(), Value: trace.ServerRecv})
	}

	fail := func(kind rpc.Kind, reason string) {
		ctrl.SetFailed(kind, reason)
		if guard != nil {
			guard.Release()
		}
		s.onRequestComplete(connID, m.ID, ctrl, nil, span)
	}

	reg, ok := s.lookupService(m.Service)
	if !ok {
		fail(rpc.InvalidService, "unknown service: "+m.Service)
		return
	}

	method := reg.impl.Descriptor().Method(m.Method)
	if method == nil {
		fail(rpc.InvalidMethod, "unknown method: "+m.Method)
		return
	}

	req := method.NewRequest()
	if e := req.Unmarshal(m.Request); e != nil {
		fail(rpc.ParseFail, e.Error())
		return
	}

	resp := method.NewResponse()
	id := m.ID
	done := func(c *rpc.Controller, r rpc.Payload) {
		s.onRequestComplete(connID, id, c, r, span)
	}

	dispatch := func() { reg.impl.CallMethod(m.Method, ctrl, req, resp, done) }
	if s.workers != nil {
		s.workers.Submit(dispatch)
	} else {
		dispatch()
	}

	if guard != nil {
		guard.Release()
	}
}

// onRequestComplete builds and sends the RESPONSE frame, per the
// completion paragraph of §4.7: re-records "server_send" under the
// restored trace context, then writes to the connection looked up by id,
// silently dropping the reply if that connection has since closed.
func (s *Server) onRequestComplete(connID tcpnet.ConnID, id int64, ctrl *rpc.Controller, resp rpc.Payload, span *trace.Span) {
	msg := &rpc.Message{Type: rpc.TypeResponse, ID: id}

	switch {
	case ctrl.Failed():
		msg.HasError = true
		msg.Error = ctrl.ErrorKind()
		msg.Reason = ctrl.ErrorText()
	case resp != nil:
		body, e := resp.Marshal()
		if e != nil {
			msg.HasError = true
			msg.Error = rpc.InternalError
			msg.Reason = e.Error()
		} else {
			msg.Response = body
			msg.CompressType = ctrl.CompressType()
		}
	}

	if span != nil {
		guard := trace.SetContext(span.TraceID, span.SpanID)
		span.Record(trace.Annotation{Timestamp: time.Now(), Value: trace.ServerSend})
		msg.Trace = &rpc.TraceID{
			TraceID:      span.TraceID,
			SpanID:       span.SpanID,
			ParentSpanID: span.ParentSpanID,
			HasParent:    span.ParentSpanID != 0,
		}
		guard.Release()
		trace.Erase(span.TraceID, span.SpanID)
	}

	frame, err := rpc.Encode(msg)
	if err != nil {
		if s.log != nil {
			s.log.Errorf("rpc server: encode response %d: %s", id, err.Error())
		}
		return
	}

	conn := s.srv.Connection(connID)
	if conn == nil {
		return // late reply: connection closed before completion ran
	}
	conn.Send(frame)
}
