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

import (
	"fmt"
)

// Entry accumulates a single log record's message, fields and errors before
// it is emitted with Log. Every setter returns the entry to allow chaining.
type Entry struct {
	log     *lgr
	level   Level
	message string
	fields  Fields
	errs    []error
}

// FieldAdd attaches key/val to this entry only.
func (e *Entry) FieldAdd(key string, val interface{}) *Entry {
	e.fields = e.fields.Add(key, val)
	return e
}

// FieldMerge merges an existing field set into this entry.
func (e *Entry) FieldMerge(f Fields) *Entry {
	e.fields = e.fields.Merge(f)
	return e
}

// ErrorAdd attaches non-nil errors to the entry, formatting them into the
// message on Log.
func (e *Entry) ErrorAdd(cleanNil bool, err ...error) *Entry {
	for _, er := range err {
		if er == nil && cleanNil {
			continue
		}
		e.errs = append(e.errs, er)
	}
	return e
}

// Check logs the entry if it carries a non-nil error, at the entry's level,
// or at lvlOK (if not NilLevel) when there is none. Returns true when no
// error was present.
func (e *Entry) Check(lvlOK Level) bool {
	ok := len(e.errs) == 0

	if !ok {
		e.Log()
		return false
	}

	if lvlOK != NilLevel {
		e.level = lvlOK
		e.Log()
	}
	return true
}

// Log emits the entry through the underlying logrus logger, unless the
// logger's minimal level filters it out.
func (e *Entry) Log() {
	if e.log == nil || e.log.GetLevel() == NilLevel || e.level > e.log.GetLevel() {
		return
	}

	fields := e.log.GetFields().Merge(e.fields)

	msg := e.message
	for _, er := range e.errs {
		if er != nil {
			msg = fmt.Sprintf("%s: %s", msg, er.Error())
		}
	}

	e.log.entry().WithFields(fields.Logrus()).Log(e.level.Logrus(), msg)

	if e.level == PanicLevel {
		panic(msg)
	}
	if e.level == FatalLevel {
		e.log.exit(1)
	}
}
