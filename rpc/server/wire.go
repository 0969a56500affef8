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
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

var errMalformedWire = errors.New("malformed built-in service payload")

// emptyPayload satisfies rpc.Payload for the built-in service's two
// parameterless requests (HeartBeat, Services).
type emptyPayload struct{}

func (*emptyPayload) Marshal() ([]byte, error)  { return nil, nil }
func (*emptyPayload) Unmarshal([]byte) error    { return nil }

func newEmptyPayload() *emptyPayload { return &emptyPayload{} }

const fieldHeartBeatStatus = 1

// heartBeatResponse carries the built-in HeartBeat reply per §6.4.
type heartBeatResponse struct {
	Status string
}

func (r *heartBeatResponse) Marshal() ([]byte, error) {
	var b []byte
	if r.Status != "" {
		b = protowire.AppendTag(b, fieldHeartBeatStatus, protowire.BytesType)
		b = protowire.AppendString(b, r.Status)
	}
	return b, nil
}

func (r *heartBeatResponse) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errMalformedWire
		}
		b = b[n:]
		if num == fieldHeartBeatStatus {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return errMalformedWire
			}
			r.Status = v
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return errMalformedWire
		}
		b = b[n:]
	}
	return nil
}

const fieldServicesNames = 1

// servicesResponse carries the built-in Services reply: every registered
// full name except the built-in service itself.
type servicesResponse struct {
	Services []string
}

func (r *servicesResponse) Marshal() ([]byte, error) {
	var b []byte
	for _, s := range r.Services {
		b = protowire.AppendTag(b, fieldServicesNames, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b, nil
}

func (r *servicesResponse) Unmarshal(b []byte) error {
	r.Services = nil
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errMalformedWire
		}
		b = b[n:]
		if num == fieldServicesNames {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return errMalformedWire
			}
			r.Services = append(r.Services, v)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return errMalformedWire
		}
		b = b[n:]
	}
	return nil
}

const fieldFileSetNames = 1

// getFileSetRequest names the services whose schema descriptor files the
// caller wants bundled.
type getFileSetRequest struct {
	Names []string
}

func (r *getFileSetRequest) Marshal() ([]byte, error) {
	var b []byte
	for _, s := range r.Names {
		b = protowire.AppendTag(b, fieldFileSetNames, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b, nil
}

func (r *getFileSetRequest) Unmarshal(b []byte) error {
	r.Names = nil
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errMalformedWire
		}
		b = b[n:]
		if num == fieldFileSetNames {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return errMalformedWire
			}
			r.Names = append(r.Names, v)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return errMalformedWire
		}
		b = b[n:]
	}
	return nil
}

const fieldFileSetBytes = 1

// getFileSetResponse carries the bundled descriptor files as one opaque
// archive (tar+gzip, see builtin.go).
type getFileSetResponse struct {
	FileSet []byte
}

func (r *getFileSetResponse) Marshal() ([]byte, error) {
	var b []byte
	if len(r.FileSet) > 0 {
		b = protowire.AppendTag(b, fieldFileSetBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, r.FileSet)
	}
	return b, nil
}

func (r *getFileSetResponse) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errMalformedWire
		}
		b = b[n:]
		if num == fieldFileSetBytes {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return errMalformedWire
			}
			r.FileSet = append([]byte(nil), v...)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return errMalformedWire
		}
		b = b[n:]
	}
	return nil
}
