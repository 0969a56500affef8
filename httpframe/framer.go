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

// Package httpframe implements the minimal HTTP/1.1 framing shim the RPC
// transport tunnels through: a one-time bootstrap handshake on the
// "/__protorpc__" path, after which every subsequent byte on the
// connection belongs to the RPC codec, not to further HTTP messages.
package httpframe

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/nabbar/rpcx/buffer"
	liberr "github.com/nabbar/rpcx/errors"
)

// BootstrapPath identifies the RPC tunnel endpoint.
const BootstrapPath = "/__protorpc__"

const crlf = "\r\n"

// state is the parser's position within the one-time bootstrap exchange.
type state int

const (
	stateStartLine state = iota
	stateHeaders
	stateComplete
)

// HeadersCompleteCallback fires once the bootstrap start-line and headers
// have both been parsed; afterwards every byte is handed to BodyCallback.
type HeadersCompleteCallback func()

// BodyCallback receives every byte following the bootstrap handshake,
// i.e. the raw RPC frame stream.
type BodyCallback func(data []byte)

// Framer parses exactly one HTTP start line plus headers from an input
// buffer, then hands off all further bytes verbatim. It is not safe for
// concurrent use; callers drive it from one reactor loop goroutine.
type Framer struct {
	st state

	onHeaders HeadersCompleteCallback
	onBody    BodyCallback

	// isRequest selects which bootstrap line this framer expects: true
	// for a client -> server "POST /__protorpc__ HTTP/1.1" request line,
	// false for a server -> client "HTTP/1.1 200 OK" status line.
	isRequest bool
}

func NewRequestFramer() *Framer { return &Framer{isRequest: true} }
func NewResponseFramer() *Framer { return &Framer{isRequest: false} }

func (f *Framer) SetHeadersCompleteCallback(cb HeadersCompleteCallback) { f.onHeaders = cb }
func (f *Framer) SetBodyCallback(cb BodyCallback)                       { f.onBody = cb }

// BootstrapRequestLine returns the client's handshake bytes.
func BootstrapRequestLine(host string) []byte {
	return []byte("POST " + BootstrapPath + " HTTP/1.1" + crlf +
		"Host: " + host + crlf +
		"Connection: Keep-Alive" + crlf +
		crlf)
}

// BootstrapResponseLine returns the server's handshake bytes.
func BootstrapResponseLine() []byte {
	return []byte("HTTP/1.1 200 OK" + crlf +
		"Connection: Keep-Alive" + crlf +
		crlf)
}

// Feed consumes as many bytes as are available from in, parsing the start
// line and headers while in the bootstrap states and routing every byte
// afterwards to the body callback.
func (f *Framer) Feed(in *buffer.Buffer) liberr.Error {
	for {
		switch f.st {
		case stateStartLine:
			line, ok := f.takeLine(in)
			if !ok {
				return nil
			}
			if !f.validStartLine(line) {
				return ErrorStartLine.Error(nil)
			}
			f.st = stateHeaders

		case stateHeaders:
			for {
				line, ok := f.takeLine(in)
				if !ok {
					return nil
				}
				if len(line) == 0 {
					f.st = stateComplete
					if f.onHeaders != nil {
						f.onHeaders()
					}
					break
				}
				if !bytes.ContainsRune(line, ':') {
					return ErrorHeaderLine.Error(nil)
				}
			}

		case stateComplete:
			n := in.ReadableBytes()
			if n == 0 {
				return nil
			}
			body := in.ConsumeAllAsBytes()
			if f.onBody != nil {
				f.onBody(body)
			}
			return nil

		default:
			return ErrorUnexpectedState.Error(nil)
		}
	}
}

// takeLine consumes up to and including the next CRLF, returning the line
// without the terminator. ok is false if no complete line is buffered yet.
func (f *Framer) takeLine(in *buffer.Buffer) ([]byte, bool) {
	idx := in.FindCRLF()
	if idx < 0 {
		return nil, false
	}
	line := in.ConsumeAsBytes(idx)
	in.Consume(2) // the CRLF itself
	return line, true
}

func (f *Framer) validStartLine(line []byte) bool {
	s := string(line)
	if f.isRequest {
		parts := strings.Fields(s)
		return len(parts) == 3 && parts[0] == "POST" && parts[1] == BootstrapPath &&
			strings.HasPrefix(parts[2], "HTTP/1.")
	}
	parts := strings.Fields(s)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/1.") {
		return false
	}
	code, e := strconv.Atoi(parts[1])
	return e == nil && code == 200
}
