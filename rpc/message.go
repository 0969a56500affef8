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

package rpc

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType distinguishes a request frame from a response frame.
type MessageType int32

const (
	TypeRequest  MessageType = 1
	TypeResponse MessageType = 2
)

// CompressType selects whether request/response bytes are snappy-compressed
// inside the frame body; the outer frame is never compressed.
type CompressType int32

const (
	CompressNone   CompressType = 0
	CompressSnappy CompressType = 1
)

// TraceID carries the propagated span identity, schema field 10.
type TraceID struct {
	TraceID       int64
	SpanID        int64
	ParentSpanID  int64
	HasParent     bool
}

// Message is the schema-encoded RpcMessage record, field numbers per the
// schema-level layout.
type Message struct {
	Type         MessageType
	ID           int64
	Service      string
	Method       string
	Request      []byte
	Response     []byte
	Error        Kind
	HasError     bool
	Reason       string
	CompressType CompressType
	Trace        *TraceID
}

const (
	fieldType         = 1
	fieldID           = 2
	fieldService      = 3
	fieldMethod       = 4
	fieldRequest      = 5
	fieldResponse     = 6
	fieldError        = 7
	fieldReason       = 8
	fieldCompressType = 9
	fieldTrace        = 10

	fieldTraceTraceID      = 1
	fieldTraceSpanID       = 2
	fieldTraceParentSpanID = 3
)

// Marshal serialises m using the schema's field layout. Compression, if
// requested, must already have been applied to Request/Response by the
// caller (the codec does this before calling Marshal).
func (m *Message) Marshal() []byte {
	var b []byte

	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))

	b = protowire.AppendTag(b, fieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ID))

	if m.Service != "" {
		b = protowire.AppendTag(b, fieldService, protowire.BytesType)
		b = protowire.AppendString(b, m.Service)
	}
	if m.Method != "" {
		b = protowire.AppendTag(b, fieldMethod, protowire.BytesType)
		b = protowire.AppendString(b, m.Method)
	}
	if m.Request != nil {
		b = protowire.AppendTag(b, fieldRequest, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Request)
	}
	if m.Response != nil {
		b = protowire.AppendTag(b, fieldResponse, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Response)
	}
	if m.HasError {
		b = protowire.AppendTag(b, fieldError, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Error))
	}
	if m.Reason != "" {
		b = protowire.AppendTag(b, fieldReason, protowire.BytesType)
		b = protowire.AppendString(b, m.Reason)
	}
	if m.CompressType != CompressNone {
		b = protowire.AppendTag(b, fieldCompressType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.CompressType))
	}
	if m.Trace != nil {
		var t []byte
		t = protowire.AppendTag(t, fieldTraceTraceID, protowire.VarintType)
		t = protowire.AppendVarint(t, uint64(m.Trace.TraceID))
		t = protowire.AppendTag(t, fieldTraceSpanID, protowire.VarintType)
		t = protowire.AppendVarint(t, uint64(m.Trace.SpanID))
		if m.Trace.HasParent {
			t = protowire.AppendTag(t, fieldTraceParentSpanID, protowire.VarintType)
			t = protowire.AppendVarint(t, uint64(m.Trace.ParentSpanID))
		}

		b = protowire.AppendTag(b, fieldTrace, protowire.BytesType)
		b = protowire.AppendBytes(b, t)
	}

	return b
}

// Unmarshal parses b (as produced by Marshal) into a new Message, or
// reports false if b is malformed. Unknown fields are skipped, matching a
// forward-compatible schema reader.
func Unmarshal(b []byte) (*Message, bool) {
	m := &Message{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, false
		}
		b = b[n:]

		switch num {
		case fieldType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, false
			}
			m.Type = MessageType(v)
			b = b[n:]
		case fieldID:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, false
			}
			m.ID = int64(v)
			b = b[n:]
		case fieldService:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, false
			}
			m.Service = v
			b = b[n:]
		case fieldMethod:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, false
			}
			m.Method = v
			b = b[n:]
		case fieldRequest:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, false
			}
			m.Request = append([]byte(nil), v...)
			b = b[n:]
		case fieldResponse:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, false
			}
			m.Response = append([]byte(nil), v...)
			b = b[n:]
		case fieldError:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, false
			}
			m.Error = Kind(v)
			m.HasError = true
			b = b[n:]
		case fieldReason:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, false
			}
			m.Reason = v
			b = b[n:]
		case fieldCompressType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, false
			}
			m.CompressType = CompressType(v)
			b = b[n:]
		case fieldTrace:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, false
			}
			t, ok := unmarshalTrace(v)
			if !ok {
				return nil, false
			}
			m.Trace = t
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, false
			}
			b = b[n:]
		}
	}

	return m, true
}

func unmarshalTrace(b []byte) (*TraceID, bool) {
	t := &TraceID{}
	for len(b) > 0 {
		num, _, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, false
		}
		b = b[n:]

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, false
		}
		b = b[n:]

		switch num {
		case fieldTraceTraceID:
			t.TraceID = int64(v)
		case fieldTraceSpanID:
			t.SpanID = int64(v)
		case fieldTraceParentSpanID:
			t.ParentSpanID = int64(v)
			t.HasParent = true
		}
	}
	return t, true
}
