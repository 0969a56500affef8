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

// Package logger is the logrus-backed structured logger shared by every
// reactor loop, tcp connection and RPC call site: one minimal level, a set
// of default fields, and a chainable Entry builder per log line.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

// Logger is the interface every framework component logs through. It
// satisfies io.WriteCloser so it can also sit behind a standard log.Logger
// or a third-party library's own writer hook.
type Logger interface {
	io.WriteCloser

	SetLevel(lvl Level)
	GetLevel() Level

	SetIOWriterLevel(lvl Level)
	GetIOWriterLevel() Level

	SetFields(f Fields)
	GetFields() Fields

	Entry(lvl Level, message string, args ...interface{}) *Entry

	Debug(message string, args ...interface{})
	Info(message string, args ...interface{})
	Warning(message string, args ...interface{})
	Error(message string, args ...interface{})
	Fatal(message string, args ...interface{})
	Panic(message string, args ...interface{})

	// Errorf gives the logger the shape reactor.Logger and loop.Thread
	// expect, so any Logger can be passed in directly.
	Errorf(format string, args ...interface{})

	GetStdLogger(lvl Level, flags int) *log.Logger
}

type lgr struct {
	mu     sync.RWMutex
	level  Level
	wLevel Level
	fields Fields
	out    *logrus.Logger
}

// New builds a Logger writing coloured text to stdout through go-colorable
// (so ANSI sequences render correctly even when stdout is redirected on
// Windows; a no-op passthrough elsewhere), at InfoLevel with no default
// fields.
func New() Logger {
	return NewWithOutput(colorable.NewColorableStdout())
}

// NewWithOutput builds a Logger writing to an arbitrary destination, e.g. a
// file opened by the config layer or a bytes.Buffer in tests.
func NewWithOutput(w io.Writer) Logger {
	out := logrus.New()
	out.SetOutput(w)
	out.SetFormatter(&logrus.TextFormatter{
		ForceColors:      true,
		DisableTimestamp: false,
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	})
	out.SetLevel(logrus.TraceLevel)

	return &lgr{
		level:  InfoLevel,
		wLevel: NilLevel,
		fields: Fields{},
		out:    out,
	}
}

func (o *lgr) entry() *logrus.Entry {
	return logrus.NewEntry(o.out)
}

func (o *lgr) exit(code int) {
	o.out.Exit(code)
}

func (o *lgr) SetLevel(lvl Level) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.level = lvl
}

func (o *lgr) GetLevel() Level {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.level
}

func (o *lgr) SetIOWriterLevel(lvl Level) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.wLevel = lvl
}

func (o *lgr) GetIOWriterLevel() Level {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.wLevel
}

func (o *lgr) SetFields(f Fields) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields = f
}

func (o *lgr) GetFields() Fields {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fields
}

// Entry starts a new chainable log record at the given level.
func (o *lgr) Entry(lvl Level, message string, args ...interface{}) *Entry {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	return &Entry{log: o, level: lvl, message: message}
}

func (o *lgr) Debug(message string, args ...interface{})   { o.Entry(DebugLevel, message, args...).Log() }
func (o *lgr) Info(message string, args ...interface{})    { o.Entry(InfoLevel, message, args...).Log() }
func (o *lgr) Warning(message string, args ...interface{}) { o.Entry(WarnLevel, message, args...).Log() }
func (o *lgr) Error(message string, args ...interface{})   { o.Entry(ErrorLevel, message, args...).Log() }
func (o *lgr) Fatal(message string, args ...interface{})   { o.Entry(FatalLevel, message, args...).Log() }
func (o *lgr) Panic(message string, args ...interface{})   { o.Entry(PanicLevel, message, args...).Log() }

func (o *lgr) Errorf(format string, args ...interface{}) {
	o.Entry(ErrorLevel, format, args...).Log()
}

// GetStdLogger returns a standard library *log.Logger whose writes become
// entries at lvl, for wiring into third-party code that only accepts
// log.Logger (net/http's Server.ErrorLog, for instance).
func (o *lgr) GetStdLogger(lvl Level, flags int) *log.Logger {
	return log.New(&levelWriter{log: o, level: lvl}, "", flags)
}

type levelWriter struct {
	log   *lgr
	level Level
}

func (w *levelWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		w.log.Entry(w.level, msg).Log()
	}
	return len(p), nil
}

// Write implements io.Writer by logging p at the configured IO-writer
// level; this lets the Logger itself be handed to code expecting a plain
// io.Writer, with no extra wrapper.
func (o *lgr) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}
	lvl := o.GetIOWriterLevel()
	if lvl == NilLevel {
		return len(p), nil
	}
	o.Entry(lvl, msg).Log()
	return len(p), nil
}

func (o *lgr) Close() error {
	return nil
}
