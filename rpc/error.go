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

// Package rpc defines the wire message, frame codec and per-call control
// block shared by the client and server halves of the RPC engine.
package rpc

import (
	"fmt"

	liberr "github.com/nabbar/rpcx/errors"
)

const pkgName = "rpcx/rpc"

const (
	ErrorFrameTooSmall liberr.CodeError = iota + liberr.MinPkgRpcCodec
	ErrorFrameTooLarge
	ErrorChecksumMismatch
	ErrorDecodeFail
	ErrorEncodeFail
	ErrorSizeMismatch
	ErrorDecompressFail
	ErrorCompressFail
)

func init() {
	if liberr.ExistInMapMessage(ErrorFrameTooSmall) {
		panic(fmt.Errorf("error code collision %s", pkgName))
	}
	liberr.RegisterIdFctMessage(ErrorFrameTooSmall, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case liberr.UnknownError:
		return liberr.NullMessage
	case ErrorFrameTooSmall:
		return "frame length below minimum"
	case ErrorFrameTooLarge:
		return "frame length exceeds maximum"
	case ErrorChecksumMismatch:
		return "frame checksum does not match body"
	case ErrorDecodeFail:
		return "cannot decode rpc message body"
	case ErrorEncodeFail:
		return "cannot encode rpc message body"
	case ErrorSizeMismatch:
		return "encoded size does not match pre-computed size"
	case ErrorDecompressFail:
		return "cannot decompress payload"
	case ErrorCompressFail:
		return "cannot compress payload"
	}

	return liberr.NullMessage
}

// Kind enumerates the taxonomy of RPC-level failures carried on the wire
// via RpcMessage.Error, per the framework's error handling design.
type Kind int32

const (
	Success Kind = iota
	InvalidRequest
	InvalidService
	InvalidMethod
	ParseFail
	InvalidChecksum
	RequestTimeout
	InternalError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "SUCCESS"
	case InvalidRequest:
		return "INVALID_REQUEST"
	case InvalidService:
		return "INVALID_SERVICE"
	case InvalidMethod:
		return "INVALID_METHOD"
	case ParseFail:
		return "PARSE_FAIL"
	case InvalidChecksum:
		return "INVALID_CHECKSUM"
	case RequestTimeout:
		return "REQUEST_TIMEOUT"
	case InternalError:
		return "INTERNAL_ERROR"
	}
	return "UNKNOWN"
}
