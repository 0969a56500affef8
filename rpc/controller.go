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

// Controller is the per-call control block threaded through both the
// client stub invocation and the server method implementation.
type Controller struct {
	failed bool
	kind   Kind
	reason string

	compress CompressType

	parent *Controller
	trace  *TraceID

	ctx interface{}
}

func NewController() *Controller { return &Controller{} }

func (c *Controller) Reset() {
	c.failed = false
	c.kind = Success
	c.reason = ""
}

func (c *Controller) Failed() bool   { return c.failed }
func (c *Controller) ErrorKind() Kind { return c.kind }
func (c *Controller) ErrorText() string {
	if !c.failed {
		return ""
	}
	return c.reason
}

// SetFailed marks the call failed with the given kind and a human reason.
func (c *Controller) SetFailed(kind Kind, reason string) {
	c.failed = true
	c.kind = kind
	c.reason = reason
}

func (c *Controller) SetCompressType(t CompressType) { c.compress = t }
func (c *Controller) CompressType() CompressType     { return c.compress }

func (c *Controller) SetParent(p *Controller) { c.parent = p }
func (c *Controller) Parent() *Controller     { return c.parent }

func (c *Controller) SetTrace(t *TraceID) { c.trace = t }
func (c *Controller) Trace() *TraceID     { return c.trace }

func (c *Controller) SetContext(v interface{}) { c.ctx = v }
func (c *Controller) Context() interface{}     { return c.ctx }
