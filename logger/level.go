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
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is a logging severity, ordered from most to least severe so that
// "GetLevel() >= x" reads as "x and anything louder is enabled".
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel

	// NilLevel disables logging entirely.
	NilLevel
)

// String returns the full human-readable name, e.g. "Warning".
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "Debug"
	case InfoLevel:
		return "Info"
	case WarnLevel:
		return "Warning"
	case ErrorLevel:
		return "Error"
	case FatalLevel:
		return "Fatal"
	case PanicLevel:
		return "Critical"
	case NilLevel:
		return ""
	}
	return "unknown"
}

// Code returns the short form, e.g. "Warn".
func (l Level) Code() string {
	switch l {
	case DebugLevel:
		return "Debug"
	case InfoLevel:
		return "Info"
	case WarnLevel:
		return "Warn"
	case ErrorLevel:
		return "Err"
	case FatalLevel:
		return "Fatal"
	case PanicLevel:
		return "Crit"
	case NilLevel:
		return ""
	}
	return "unknown"
}

// Logrus maps to the equivalent logrus.Level; NilLevel and unknown values
// map to math.MaxInt32 so logrus never considers them enabled.
func (l Level) Logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	case PanicLevel:
		return logrus.PanicLevel
	default:
		return math.MaxInt32
	}
}

// ParseLevel is case-insensitive and accepts either the full name or the
// short code. Unrecognized input returns InfoLevel.
func ParseLevel(s string) Level {
	switch {
	case strings.EqualFold(PanicLevel.String(), s), strings.EqualFold(PanicLevel.Code(), s):
		return PanicLevel
	case strings.EqualFold(FatalLevel.String(), s), strings.EqualFold(FatalLevel.Code(), s):
		return FatalLevel
	case strings.EqualFold(ErrorLevel.String(), s), strings.EqualFold(ErrorLevel.Code(), s):
		return ErrorLevel
	case strings.EqualFold(WarnLevel.String(), s), strings.EqualFold(WarnLevel.Code(), s):
		return WarnLevel
	case strings.EqualFold(InfoLevel.String(), s), strings.EqualFold(InfoLevel.Code(), s):
		return InfoLevel
	case strings.EqualFold(DebugLevel.String(), s), strings.EqualFold(DebugLevel.Code(), s):
		return DebugLevel
	}
	return InfoLevel
}

// ListLevels returns the lowercase names accepted by ParseLevel, for flag
// help text and config validation.
func ListLevels() []string {
	return []string{
		strings.ToLower(PanicLevel.String()),
		strings.ToLower(FatalLevel.String()),
		strings.ToLower(ErrorLevel.String()),
		strings.ToLower(WarnLevel.String()),
		strings.ToLower(InfoLevel.String()),
		strings.ToLower(DebugLevel.String()),
	}
}
