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

import "time"

// Message codec for request/response payloads; the core only needs to
// serialise opaque bytes, so a schema-generated type satisfies this with
// whatever marshalling it uses internally.
type Payload interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// DoneCallback is invoked by a service implementation once it has filled
// in the response (or failed the controller); resp is nil if the
// controller was failed instead.
type DoneCallback func(ctrl *Controller, resp Payload)

// MethodDescriptor exposes one service method's identity, timeout
// annotations and prototypes, as produced by the schema code generator.
type MethodDescriptor struct {
	Name string

	ServiceTimeout time.Duration
	MethodTimeout  time.Duration // zero means "use ServiceTimeout"

	NewRequest  func() Payload
	NewResponse func() Payload
}

// Timeout resolves the effective per-call timeout: method-level overrides
// service-level.
func (m *MethodDescriptor) Timeout() time.Duration {
	if m.MethodTimeout > 0 {
		return m.MethodTimeout
	}
	return m.ServiceTimeout
}

// ServiceDescriptor exposes a service's full name and its methods, as
// produced by the schema code generator.
type ServiceDescriptor struct {
	FullName string
	Methods  map[string]*MethodDescriptor
}

func (d *ServiceDescriptor) Method(name string) *MethodDescriptor {
	return d.Methods[name]
}

// ServiceImpl is the server-side abstract base every generated service
// implementation satisfies: one entry point per call, keyed by method
// name, taking the controller, the already-parsed request, the response
// prototype to fill in, and the completion callback, per the schema
// contract in §6.2.
type ServiceImpl interface {
	Descriptor() *ServiceDescriptor
	CallMethod(method string, ctrl *Controller, req Payload, resp Payload, done DoneCallback)
}
