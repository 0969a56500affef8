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

package logger

import "github.com/sirupsen/logrus"

// Fields carries structured key/value context attached to a logger or a
// single entry. The zero value is usable.
type Fields map[string]interface{}

// Add returns a copy of f with key set to val.
func (f Fields) Add(key string, val interface{}) Fields {
	n := f.Clone()
	n[key] = val
	return n
}

// Clone returns a shallow copy, safe to mutate independently of f.
func (f Fields) Clone() Fields {
	n := make(Fields, len(f))
	for k, v := range f {
		n[k] = v
	}
	return n
}

// Merge returns a copy of f with every key of o applied on top.
func (f Fields) Merge(o Fields) Fields {
	n := f.Clone()
	for k, v := range o {
		n[k] = v
	}
	return n
}

// Logrus converts to the logrus.Fields type expected by WithFields.
func (f Fields) Logrus() logrus.Fields {
	l := make(logrus.Fields, len(f))
	for k, v := range f {
		l[k] = v
	}
	return l
}
