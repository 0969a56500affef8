/*
 *  MIT License
 *
 *  Copyright (c) 2020 Nicolas JUHEL
 *
 *  Permission is hereby granted, free of charge, to any person obtaining a copy
 *  of this software and associated documentation files (the "Software"), to deal
 *  in the Software without restriction, including without limitation the rights
 *  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *  copies of the Software, and to permit persons to whom the Software is
 *  furnished to do so, subject to the following conditions:
 *
 *  The above copyright notice and this permission notice shall be included in all
 *  copies or substantial portions of the Software.
 *
 *  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *  SOFTWARE.
 *
 */

package gzip

import (
	"fmt"

	liberr "github.com/nabbar/rpcx/errors"
)

const pkgName = "rpcx/archive/gzip"

const (
	FILE_SEEK liberr.CodeError = iota + liberr.MinPkgArchiveGzip
	GZ_READER
	IO_COPY
	TMP_FILE
	ErrorParamsMismatching
	ErrorParamsEmpty
	ErrorFileSeek
	ErrorFileOpen
	ErrorIOCopy
	ErrorGZCreate
)

func init() {
	if liberr.ExistInMapMessage(FILE_SEEK) {
		panic(fmt.Errorf("error code collision %s", pkgName))
	}
	liberr.RegisterIdFctMessage(FILE_SEEK, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case liberr.UnknownError:
		return liberr.NullMessage
	case FILE_SEEK, ErrorFileSeek:
		return "cannot seek into file"
	case GZ_READER:
		return "cannot init gzip reader"
	case IO_COPY, ErrorIOCopy:
		return "io copy occurs error"
	case TMP_FILE:
		return "cannot create temporary file"
	case ErrorParamsMismatching:
		return "given parameters count does not match expectation"
	case ErrorParamsEmpty:
		return "given parameter is empty or invalid"
	case ErrorFileOpen:
		return "cannot open file"
	case ErrorGZCreate:
		return "cannot create gzip archive"
	}

	return liberr.NullMessage
}
