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

package logger_test

import (
	"bytes"
	"strings"

	liblog "github.com/nabbar/rpcx/logger"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Logger", func() {
	var (
		buf *bytes.Buffer
		log liblog.Logger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		log = liblog.NewWithOutput(buf)
	})

	It("emits a message at or below the configured level", func() {
		log.SetLevel(liblog.InfoLevel)
		log.Info("hello")
		Expect(buf.String()).To(ContainSubstring("hello"))
	})

	It("drops messages above the configured level", func() {
		log.SetLevel(liblog.WarnLevel)
		log.Debug("should not appear")
		Expect(buf.String()).To(BeEmpty())
	})

	It("never logs at NilLevel", func() {
		log.SetLevel(liblog.NilLevel)
		log.Panic("unreachable")
		Expect(buf.String()).To(BeEmpty())
	})

	It("merges entry fields on top of default fields", func() {
		log.SetFields(liblog.Fields{"service": "rpcx"})
		log.SetLevel(liblog.DebugLevel)
		log.Entry(liblog.InfoLevel, "request").FieldAdd("method", "Echo").Log()
		Expect(buf.String()).To(ContainSubstring("service"))
		Expect(buf.String()).To(ContainSubstring("method"))
	})

	It("formats arguments like fmt.Sprintf", func() {
		log.SetLevel(liblog.DebugLevel)
		log.Info("count=%d", 3)
		Expect(buf.String()).To(ContainSubstring("count=3"))
	})

	It("satisfies the io.Writer contract for its IO-writer level", func() {
		log.SetIOWriterLevel(liblog.InfoLevel)
		log.SetLevel(liblog.DebugLevel)
		n, err := log.Write([]byte("from writer\n"))
		Expect(err).To(BeNil())
		Expect(n).To(Equal(len("from writer\n")))
		Expect(buf.String()).To(ContainSubstring("from writer"))
	})

	It("Check logs at lvlOK only when no error was attached", func() {
		log.SetLevel(liblog.DebugLevel)
		ok := log.Entry(liblog.ErrorLevel, "op").ErrorAdd(true, nil).Check(liblog.InfoLevel)
		Expect(ok).To(BeTrue())
		Expect(buf.String()).To(ContainSubstring("op"))
	})

	It("Check logs at the entry level when an error was attached", func() {
		log.SetLevel(liblog.DebugLevel)
		ok := log.Entry(liblog.ErrorLevel, "op failed").ErrorAdd(true, errFixture).Check(liblog.InfoLevel)
		Expect(ok).To(BeFalse())
		Expect(strings.Contains(buf.String(), "op failed")).To(BeTrue())
	})

	It("round-trips levels through ParseLevel", func() {
		Expect(liblog.ParseLevel("warning")).To(Equal(liblog.WarnLevel))
		Expect(liblog.ParseLevel("Err")).To(Equal(liblog.ErrorLevel))
		Expect(liblog.ParseLevel("nonsense")).To(Equal(liblog.InfoLevel))
	})
})

type fixtureError struct{ msg string }

func (e *fixtureError) Error() string { return e.msg }

var errFixture = &fixtureError{msg: "boom"}
