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
	"encoding/binary"
	"hash/adler32"

	"github.com/golang/snappy"

	"github.com/nabbar/rpcx/buffer"
	liberr "github.com/nabbar/rpcx/errors"
)

// MinFrameLen/MaxFrameLen bound the `len` field per the wire protocol: it
// counts bytes following itself, so the minimum is the 4-byte checksum
// alone and the maximum is the 64 MiB body cap plus that checksum.
const (
	MinFrameLen = 4
	MaxFrameLen = 4 + 64*1024*1024
)

// MessageCallback receives one fully decoded frame.
type MessageCallback func(m *Message)

// Decoder accumulates bytes and emits decoded Messages, repeating while
// the buffer holds a complete frame, per the decode sequence in §4.5.
type Decoder struct {
	onMessage MessageCallback
}

func NewDecoder(cb MessageCallback) *Decoder {
	return &Decoder{onMessage: cb}
}

// Feed drains as many complete frames as in currently holds. It returns an
// error (and the connection must be closed) on an out-of-range length or a
// checksum mismatch; otherwise nil, possibly having delivered zero or more
// messages via the callback.
func (d *Decoder) Feed(in *buffer.Buffer) liberr.Error {
	for in.ReadableBytes() >= 4 {
		frameLen := in.PeekInt32()
		if frameLen < MinFrameLen {
			return ErrorFrameTooSmall.Error(nil)
		}
		if frameLen > MaxFrameLen {
			return ErrorFrameTooLarge.Error(nil)
		}

		if int(frameLen)+4 > in.ReadableBytes() {
			return nil
		}

		in.Consume(4) // frameLen itself
		frame := in.ConsumeAsBytes(int(frameLen))

		csum := binary.BigEndian.Uint32(frame[:4])
		body := frame[4:]

		if adler32.Checksum(body) != csum {
			return ErrorChecksumMismatch.Error(nil)
		}

		m, ok := Unmarshal(body)
		if !ok {
			return ErrorDecodeFail.Error(nil)
		}

		if err := decompress(m); err != nil {
			return err
		}

		if d.onMessage != nil {
			d.onMessage(m)
		}
	}

	return nil
}

// Encode compresses (if requested), serialises and frames m, returning the
// bytes ready to write to a connection.
func Encode(m *Message) ([]byte, liberr.Error) {
	clone := *m
	if clone.CompressType == CompressSnappy {
		if err := compress(&clone); err != nil {
			return nil, err
		}
	} else {
		clone.CompressType = CompressNone
	}

	body := clone.Marshal()

	frame := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(frame[4:8], adler32.Checksum(body))
	copy(frame[8:], body)
	binary.BigEndian.PutUint32(frame[0:4], uint32(4+len(body)))

	return frame, nil
}

func compress(m *Message) liberr.Error {
	if len(m.Request) > 0 {
		m.Request = snappy.Encode(nil, m.Request)
	}
	if len(m.Response) > 0 {
		m.Response = snappy.Encode(nil, m.Response)
	}
	return nil
}

func decompress(m *Message) liberr.Error {
	if m.CompressType != CompressSnappy {
		m.CompressType = CompressNone
		return nil
	}

	if len(m.Request) > 0 {
		out, e := snappy.Decode(nil, m.Request)
		if e != nil {
			return ErrorDecompressFail.ErrorParent(e)
		}
		m.Request = out
	}
	if len(m.Response) > 0 {
		out, e := snappy.Decode(nil, m.Response)
		if e != nil {
			return ErrorDecompressFail.ErrorParent(e)
		}
		m.Response = out
	}

	return nil
}
