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

// Package client implements the async RPC channel: one logical endpoint
// (a resolver name) fanned out over a load-balanced set of connections,
// each tunneled through the one-time HTTP bootstrap handshake before the
// framed codec takes over.
package client

import (
	"math/rand"
	"sync"
	"time"

	"github.com/nabbar/rpcx/balancer"
	"github.com/nabbar/rpcx/buffer"
	liberr "github.com/nabbar/rpcx/errors"
	"github.com/nabbar/rpcx/httpframe"
	"github.com/nabbar/rpcx/reactor"
	"github.com/nabbar/rpcx/resolver"
	"github.com/nabbar/rpcx/rpc"
	"github.com/nabbar/rpcx/tcpnet"
	"github.com/nabbar/rpcx/trace"
)

// Options configures a Channel's resolver and balancer strategies and its
// trace sampling rate.
type Options struct {
	ResolverName string
	BalancerName string

	// TraceRate is the fraction (0..1) of untraced calls that start a new
	// sampled trace; a call already carrying a parent trace always
	// propagates it regardless of this rate.
	TraceRate float64

	CompressType rpc.CompressType
}

// outstanding is one in-flight call: everything needed to complete it from
// either a response frame or a timeout firing.
type outstanding struct {
	method   *rpc.MethodDescriptor
	ctrl     *rpc.Controller
	newResp  func() rpc.Payload
	done     func(ctrl *rpc.Controller, resp rpc.Payload)
	addr     *tcpnet.Addr
	sentAt   time.Time
	timer    reactor.TimerID
	hasTrace bool
	traceID  int64
	spanID   int64
}

// endpoint is the per-resolved-backend transport: a retrying Client, the
// bootstrap framer guarding its one-time handshake, and the persistent
// buffer the decoder is fed from once the handshake completes.
type endpoint struct {
	addr   *tcpnet.Addr
	client *tcpnet.Client

	ready  bool
	conn   *tcpnet.Connection
	framer *httpframe.Framer
	rpcBuf *buffer.Buffer
}

// Channel is one logical connection to a named service: it resolves the
// name to a backend set, load-balances calls across it, and multiplexes
// concurrent calls and their responses over persistent connections.
type Channel struct {
	loop *reactor.Loop
	log  reactor.Logger

	res resolver.Resolver
	lb  balancer.Balancer

	opt Options

	nextID int64

	mu          sync.Mutex
	outstanding map[int64]*outstanding
	pending     map[int64]*rpc.Message
	endpoints   map[string]*endpoint

	rnd *rand.Rand
}

// NewChannel builds a Channel bound to loop, resolving and balancing
// against the named strategies.
func NewChannel(loop *reactor.Loop, log reactor.Logger, opt Options) (*Channel, liberr.Error) {
	res, err := resolver.New(opt.ResolverName)
	if err != nil {
		return nil, err
	}
	lb, err := balancer.New(opt.BalancerName)
	if err != nil {
		return nil, err
	}

	return &Channel{
		loop:        loop,
		log:         log,
		res:         res,
		lb:          lb,
		opt:         opt,
		outstanding: make(map[int64]*outstanding),
		pending:     make(map[int64]*rpc.Message),
		endpoints:   make(map[string]*endpoint),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Connect resolves name and establishes a retrying Client against every
// endpoint it returns. Call once per Channel; the balancer and resolver
// together absorb changes to the backend set over the channel's life.
func (ch *Channel) Connect(name string) {
	ch.res.Resolve(name, func(endpoints []*tcpnet.Addr, err liberr.Error) {
		if err != nil {
			if ch.log != nil {
				ch.log.Errorf("rpc client: resolve %q: %s", name, err.Error())
			}
			return
		}
		for _, a := range endpoints {
			addr := a
			ch.loop.RunInLoop(func() { ch.addEndpoint(addr) })
		}
	})
}

func (ch *Channel) addEndpoint(addr *tcpnet.Addr) {
	ch.loop.AssertInLoopGoroutine()

	key := addr.String()
	if _, ok := ch.endpoints[key]; ok {
		return
	}

	ep := &endpoint{addr: addr, rpcBuf: buffer.New()}
	ep.client = tcpnet.NewClient(ch.loop, addr)
	ep.client.SetConnectionCallback(func(c *tcpnet.Connection) { ch.onConnection(ep, c) })

	ch.endpoints[key] = ep
	ep.client.Connect()
}

// onConnection fires on both the transition into StateConnected and on
// close; the two are told apart by c.Connected().
func (ch *Channel) onConnection(ep *endpoint, c *tcpnet.Connection) {
	if c.Connected() {
		ep.conn = c
		ep.ready = false
		ep.rpcBuf = buffer.New()
		ep.framer = httpframe.NewResponseFramer()
		ep.framer.SetHeadersCompleteCallback(func() { ch.onBootstrapComplete(ep) })
		ep.framer.SetBodyCallback(func(data []byte) { ch.onBody(ep, data) })

		c.SetMessageCallback(func(_ *tcpnet.Connection, in *buffer.Buffer) { ch.onRead(ep, in) })
		c.Send(httpframe.BootstrapRequestLine(ep.addr.String()))
		return
	}

	ep.ready = false
	ep.conn = nil
	ch.lb.ReleaseBackend(ep.addr)
}

func (ch *Channel) onRead(ep *endpoint, in *buffer.Buffer) {
	if err := ep.framer.Feed(in); err != nil {
		if ch.log != nil {
			ch.log.Errorf("rpc client: bootstrap framing from %s: %s", ep.addr.String(), err.Error())
		}
		if ep.conn != nil {
			ep.conn.Shutdown()
		}
	}
}

func (ch *Channel) onBootstrapComplete(ep *endpoint) {
	ch.lb.AddBackend(ep.addr, 1)
	ep.ready = true
	ch.flushPending(ep.addr)
}

func (ch *Channel) onBody(ep *endpoint, data []byte) {
	ep.rpcBuf.Append(data)

	dec := rpc.NewDecoder(func(m *rpc.Message) { ch.onResponse(ep, m) })
	if err := dec.Feed(ep.rpcBuf); err != nil {
		if ch.log != nil {
			ch.log.Errorf("rpc client: frame decode from %s: %s", ep.addr.String(), err.Error())
		}
		if ep.conn != nil {
			ep.conn.Shutdown()
		}
	}
}

// CallMethod issues one async call: req is marshalled immediately, the
// call is registered (with a deadline only when desc.Timeout() is
// positive; otherwise it ends only on a reply or a connection error), and
// the frame is sent now if a
// ready connection is available or queued for the next one to complete
// its bootstrap.
func (ch *Channel) CallMethod(service, method string, desc *rpc.MethodDescriptor, ctrl *rpc.Controller, req rpc.Payload, newResp func() rpc.Payload, done func(ctrl *rpc.Controller, resp rpc.Payload)) {
	body, e := req.Marshal()
	if e != nil {
		ctrl.SetFailed(rpc.InvalidRequest, e.Error())
		done(ctrl, nil)
		return
	}

	ch.mu.Lock()
	ch.nextID++
	id := ch.nextID
	ch.mu.Unlock()

	out := &outstanding{
		method:  desc,
		ctrl:    ctrl,
		newResp: newResp,
		done:    done,
		sentAt:  time.Now(),
	}

	m := &rpc.Message{
		Type:         rpc.TypeRequest,
		ID:           id,
		Service:      service,
		Method:       method,
		Request:      body,
		CompressType: ch.opt.CompressType,
	}

	if parent := ctrl.Parent(); parent != nil && parent.Trace() != nil {
		pt := parent.Trace()
		m.Trace = &rpc.TraceID{TraceID: pt.TraceID, SpanID: trace.NewID(), ParentSpanID: pt.SpanID, HasParent: true}
	} else if ch.opt.TraceRate > 0 && ch.rnd.Float64() < ch.opt.TraceRate {
		tid := trace.NewID()
		m.Trace = &rpc.TraceID{TraceID: tid, SpanID: trace.NewID()}
	}
	if m.Trace != nil {
		out.hasTrace = true
		out.traceID = m.Trace.TraceID
		out.spanID = m.Trace.SpanID
	}

	timeout := desc.Timeout()

	ch.mu.Lock()
	ch.outstanding[id] = out
	ch.mu.Unlock()

	if timeout > 0 {
		out.timer = ch.loop.RunAfter(timeout, func() { ch.onTimeout(id) })
	}

	if ch.loop.IsInLoopGoroutine() {
		ch.sendInLoop(m, out)
	} else {
		ch.loop.RunInLoop(func() { ch.sendInLoop(m, out) })
	}
}

func (ch *Channel) sendInLoop(m *rpc.Message, out *outstanding) {
	ch.loop.AssertInLoopGoroutine()

	addr, err := ch.lb.NextBackend()
	if err != nil {
		ch.queuePending(m)
		return
	}

	ep, ok := ch.endpoints[addr.String()]
	if !ok || !ep.ready || ep.conn == nil {
		ch.queuePending(m)
		return
	}

	out.addr = addr
	ch.sendFrame(ep, m)
}

func (ch *Channel) sendFrame(ep *endpoint, m *rpc.Message) {
	if m.Trace != nil {
		if span, ok := trace.Lookup(m.Trace.TraceID, m.Trace.SpanID); ok {
			span.Record(trace.Annotation{Timestamp: time.Now(), Value: trace.ClientSend})
		}
	}

	frame, err := rpc.Encode(m)
	if err != nil {
		ch.failOutstanding(m.ID, rpc.InternalError, err.Error())
		return
	}
	ep.conn.Send(frame)
}

// queuePending holds m until its backend's bootstrap completes (or a
// backend becomes available), matching the no-connection-yet branch of
// CallMethod.
func (ch *Channel) queuePending(m *rpc.Message) {
	ch.mu.Lock()
	ch.pending[m.ID] = m
	ch.mu.Unlock()
}

func (ch *Channel) flushPending(addr *tcpnet.Addr) {
	ch.loop.AssertInLoopGoroutine()

	ch.mu.Lock()
	msgs := make([]*rpc.Message, 0, len(ch.pending))
	for id, m := range ch.pending {
		msgs = append(msgs, m)
		delete(ch.pending, id)
	}
	ch.mu.Unlock()

	for _, m := range msgs {
		ch.mu.Lock()
		out := ch.outstanding[m.ID]
		ch.mu.Unlock()
		if out == nil {
			continue
		}
		ch.sendInLoop(m, out)
	}
}

func (ch *Channel) onResponse(ep *endpoint, m *rpc.Message) {
	if m.Type != rpc.TypeResponse {
		if ep.conn != nil {
			ep.conn.Shutdown()
		}
		return
	}

	ch.mu.Lock()
	out, ok := ch.outstanding[m.ID]
	if ok {
		delete(ch.outstanding, m.ID)
	}
	delete(ch.pending, m.ID)
	ch.mu.Unlock()

	if !ok {
		return // late reply past its timeout
	}

	ch.loop.Cancel(out.timer)
	latency := time.Since(out.sentAt)

	if out.hasTrace {
		if span, ok := trace.Lookup(out.traceID, out.spanID); ok {
			span.Record(trace.Annotation{Timestamp: time.Now(), Value: trace.ClientRecv})
		}
		trace.Erase(out.traceID, out.spanID)
	}

	if m.HasError && m.Error != rpc.Success {
		out.ctrl.SetFailed(m.Error, m.Reason)
	}

	resp := out.newResp()
	if !out.ctrl.Failed() {
		if e := resp.Unmarshal(m.Response); e != nil {
			out.ctrl.SetFailed(rpc.ParseFail, e.Error())
		}
	}

	if out.addr != nil {
		ch.lb.AddRequestResult(out.addr, !out.ctrl.Failed(), latency)
	}

	out.done(out.ctrl, resp)
}

func (ch *Channel) onTimeout(id int64) {
	ch.mu.Lock()
	out, ok := ch.outstanding[id]
	if ok {
		delete(ch.outstanding, id)
	}
	delete(ch.pending, id)
	ch.mu.Unlock()

	if !ok {
		return // already completed by a response racing the timer
	}

	if out.hasTrace {
		trace.Erase(out.traceID, out.spanID)
	}
	if out.addr != nil {
		ch.lb.AddRequestResult(out.addr, false, time.Since(out.sentAt))
	}

	out.ctrl.SetFailed(rpc.RequestTimeout, "rpc call timed out")
	out.done(out.ctrl, nil)
}

func (ch *Channel) failOutstanding(id int64, kind rpc.Kind, reason string) {
	ch.mu.Lock()
	out, ok := ch.outstanding[id]
	if ok {
		delete(ch.outstanding, id)
	}
	ch.mu.Unlock()

	if !ok {
		return
	}
	ch.loop.Cancel(out.timer)
	out.ctrl.SetFailed(kind, reason)
	out.done(out.ctrl, nil)
}

// Close disconnects every endpoint's transport. Outstanding calls still
// complete via their own timeout; Close does not fail them early.
func (ch *Channel) Close() {
	ch.loop.RunInLoop(func() {
		for _, ep := range ch.endpoints {
			ep.client.Disconnect()
		}
	})
}
