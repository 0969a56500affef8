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
	"io"
	"log"

	"github.com/hashicorp/go-hclog"
)

const (
	hclogArgs = "hclog.args"
	hclogName = "hclog.name"
)

// HCLog adapts l to hclog.Logger, so libraries that only accept hclog (e.g.
// a resolver backed by HashiCorp's go-plugin) log through the same sink as
// the rest of the framework.
func HCLog(l Logger) hclog.Logger {
	return &hclogAdapter{l: l}
}

type hclogAdapter struct {
	l Logger
}

func (a *hclogAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Off, hclog.NoLevel:
		return
	case hclog.Trace, hclog.Debug:
		a.l.Debug(msg, args...)
	case hclog.Info:
		a.l.Info(msg, args...)
	case hclog.Warn:
		a.l.Warning(msg, args...)
	case hclog.Error:
		a.l.Error(msg, args...)
	}
}

func (a *hclogAdapter) Trace(msg string, args ...interface{}) { a.l.Debug(msg, args...) }
func (a *hclogAdapter) Debug(msg string, args ...interface{}) { a.l.Debug(msg, args...) }
func (a *hclogAdapter) Info(msg string, args ...interface{})  { a.l.Info(msg, args...) }
func (a *hclogAdapter) Warn(msg string, args ...interface{})  { a.l.Warning(msg, args...) }
func (a *hclogAdapter) Error(msg string, args ...interface{}) { a.l.Error(msg, args...) }

func (a *hclogAdapter) IsTrace() bool { return a.l.GetLevel() >= DebugLevel }
func (a *hclogAdapter) IsDebug() bool { return a.l.GetLevel() >= DebugLevel }
func (a *hclogAdapter) IsInfo() bool  { return a.l.GetLevel() >= InfoLevel }
func (a *hclogAdapter) IsWarn() bool  { return a.l.GetLevel() >= WarnLevel }
func (a *hclogAdapter) IsError() bool { return a.l.GetLevel() >= ErrorLevel }

func (a *hclogAdapter) ImpliedArgs() []interface{} {
	if v, ok := a.l.GetFields()[hclogArgs]; ok {
		if s, ok := v.([]interface{}); ok {
			return s
		}
	}
	return nil
}

func (a *hclogAdapter) With(args ...interface{}) hclog.Logger {
	a.l.SetFields(a.l.GetFields().Add(hclogArgs, args))
	return a
}

func (a *hclogAdapter) Name() string {
	if v, ok := a.l.GetFields()[hclogName]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (a *hclogAdapter) Named(name string) hclog.Logger {
	a.l.SetFields(a.l.GetFields().Add(hclogName, name))
	return a
}

func (a *hclogAdapter) ResetNamed(name string) hclog.Logger {
	a.l.SetFields(a.l.GetFields().Add(hclogName, name))
	return a
}

func (a *hclogAdapter) SetLevel(level hclog.Level) {
	switch level {
	case hclog.Off, hclog.NoLevel:
		a.l.SetLevel(NilLevel)
	case hclog.Trace, hclog.Debug:
		a.l.SetLevel(DebugLevel)
	case hclog.Info:
		a.l.SetLevel(InfoLevel)
	case hclog.Warn:
		a.l.SetLevel(WarnLevel)
	case hclog.Error:
		a.l.SetLevel(ErrorLevel)
	}
}

func (a *hclogAdapter) GetLevel() hclog.Level {
	switch a.l.GetLevel() {
	case NilLevel:
		return hclog.Off
	case DebugLevel:
		return hclog.Debug
	case InfoLevel:
		return hclog.Info
	case WarnLevel:
		return hclog.Warn
	default:
		return hclog.Error
	}
}

func (a *hclogAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return a.l.GetStdLogger(InfoLevel, 0)
}

func (a *hclogAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return a.l
}
