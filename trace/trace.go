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

// Package trace propagates request trace identifiers through asynchronous
// RPC call chains: a global span registry keyed by (trace id, span id), a
// per-goroutine current-context stack, and a fire-and-forget annotation
// sink.
package trace

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Endpoint identifies the process emitting a span.
type Endpoint struct {
	IPv4        [4]byte
	Port        int
	ServiceName string
}

// Annotation is a timestamped value attached to a span, e.g. "cs"/"cr" on
// the client side, "sr"/"ss" on the server side.
type Annotation struct {
	Timestamp time.Time
	Value     string
	Host      *Endpoint
}

// BinaryAnnotationType tags the wire type of a BinaryAnnotation's value.
type BinaryAnnotationType int

const (
	BinaryString BinaryAnnotationType = iota
	BinaryBool
	BinaryInt64
	BinaryDouble
)

// BinaryAnnotation is a named, typed key/value attached to a span.
type BinaryAnnotation struct {
	Name  string
	Value string
	Type  BinaryAnnotationType
	Host  *Endpoint
}

func NewBinaryString(name, value string, host *Endpoint) BinaryAnnotation {
	return BinaryAnnotation{Name: name, Value: value, Type: BinaryString, Host: host}
}

func NewBinaryBool(name string, value bool, host *Endpoint) BinaryAnnotation {
	v := "false"
	if value {
		v = "true"
	}
	return BinaryAnnotation{Name: name, Value: v, Type: BinaryBool, Host: host}
}

func NewBinaryInt64(name string, value int64, host *Endpoint) BinaryAnnotation {
	return BinaryAnnotation{Name: name, Value: formatInt64(value), Type: BinaryInt64, Host: host}
}

// Standard annotation values per the propagation design.
const (
	ClientSend = "cs"
	ClientRecv = "cr"
	ServerRecv = "sr"
	ServerSend = "ss"
)

// Span is a named unit of work within a trace: a trace id shared by every
// span in the call tree, a span id unique to this unit, and an optional
// parent span id.
type Span struct {
	Name         string
	TraceID      int64
	SpanID       int64
	ParentSpanID int64
	Endpoint     *Endpoint

	mu                sync.Mutex
	annotations       []Annotation
	binaryAnnotations []BinaryAnnotation
}

func (s *Span) Record(a Annotation) {
	s.mu.Lock()
	s.annotations = append(s.annotations, a)
	s.mu.Unlock()
	dispatch(s, a, BinaryAnnotation{})
}

func (s *Span) RecordBinary(a BinaryAnnotation) {
	s.mu.Lock()
	s.binaryAnnotations = append(s.binaryAnnotations, a)
	s.mu.Unlock()
	dispatch(s, Annotation{}, a)
}

// MakeChild returns a new span sharing this span's trace id, with a fresh
// span id and this span's id as parent.
func (s *Span) MakeChild(name string) *Span {
	child := &Span{
		Name:         name,
		TraceID:      s.TraceID,
		SpanID:       NewID(),
		ParentSpanID: s.SpanID,
		Endpoint:     s.Endpoint,
	}
	return Register(child)
}

var idNode *snowflake.Node

func init() {
	n, e := snowflake.NewNode(0)
	if e != nil {
		// snowflake only fails to init on a bad node id; 0 is always valid.
		panic(e)
	}
	idNode = n
}

// NewID returns a fresh, globally-unique 56-bit-positive-range identifier
// suitable for either a trace id or a span id, generated via a snowflake
// node so ids also stay roughly time-ordered across a process fleet.
func NewID() int64 {
	return int64(idNode.Generate().Int64() & 0x00ffffffffffffff)
}

var (
	registryMu sync.Mutex
	registry   = map[[2]int64]*Span{}
)

// Register deduplicates: if a span already exists under (TraceID, SpanID)
// the existing record is returned and s is discarded.
func Register(s *Span) *Span {
	key := [2]int64{s.TraceID, s.SpanID}

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[key]; ok {
		return existing
	}
	registry[key] = s
	return s
}

// Lookup returns the span registered under (traceID, spanID), if any.
func Lookup(traceID, spanID int64) (*Span, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	s, ok := registry[[2]int64{traceID, spanID}]
	return s, ok
}

// Erase removes a span from the registry once the RPC it describes
// completes.
func Erase(traceID, spanID int64) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, [2]int64{traceID, spanID})
}

// Sink receives every recorded annotation, fire-and-forget. Exactly one
// process-global sink may be installed, before any tracing occurs.
type Sink interface {
	SendAnnotation(s *Span, a Annotation)
	SendBinaryAnnotation(s *Span, a BinaryAnnotation)
}

var sink Sink

// InstallSink sets the process-global trace sink. Must be called before
// any span records an annotation.
func InstallSink(s Sink) { sink = s }

func dispatch(s *Span, a Annotation, b BinaryAnnotation) {
	if sink == nil {
		return
	}
	if a.Value != "" {
		sink.SendAnnotation(s, a)
	}
	if b.Name != "" {
		sink.SendBinaryAnnotation(s, b)
	}
}

// context is the per-goroutine current (trace id, span id) pair.
type context struct {
	traceID int64
	spanID  int64
	set     bool
}

var current sync.Map // goroutine token (int64) -> *context

// Guard restores the prior context on exit, implementing the scoped
// set/clear the framework performs around user completion callbacks.
type Guard struct {
	prior *context
}

// SetContext installs (traceID, spanID) as current for the calling
// goroutine and returns a Guard whose Release restores whatever was
// current before.
func SetContext(traceID, spanID int64) *Guard {
	tok := goroutineToken()

	var prior *context
	if v, ok := current.Load(tok); ok {
		prior = v.(*context)
	}

	current.Store(tok, &context{traceID: traceID, spanID: spanID, set: true})
	return &Guard{prior: prior}
}

func (g *Guard) Release() {
	tok := goroutineToken()
	if g.prior != nil {
		current.Store(tok, g.prior)
	} else {
		current.Delete(tok)
	}
}

// CurrentContext returns the calling goroutine's active (trace id, span
// id), if SetContext was ever called on its stack.
func CurrentContext() (traceID, spanID int64, ok bool) {
	tok := goroutineToken()
	if v, found := current.Load(tok); found {
		c := v.(*context)
		return c.traceID, c.spanID, c.set
	}
	return 0, 0, false
}

func formatInt64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
