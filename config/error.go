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

// Package config loads the client/server/connection option sets from a
// viper-backed source (file, env, or defaults) and reloads them on
// change, watching the backing file the same way a hot-reloaded
// component pool would.
package config

import (
	"fmt"

	liberr "github.com/nabbar/rpcx/errors"
)

const pkgName = "rpcx/config"

const (
	ErrorConfigFileMissing liberr.CodeError = iota + liberr.MinPkgConfig
	ErrorConfigFileRead
	ErrorConfigDecode
	ErrorResolverName
	ErrorBalancerName
)

func init() {
	if liberr.ExistInMapMessage(ErrorConfigFileMissing) {
		panic(fmt.Errorf("error code collision %s", pkgName))
	}
	liberr.RegisterIdFctMessage(ErrorConfigFileMissing, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case liberr.UnknownError:
		return liberr.NullMessage
	case ErrorConfigFileMissing:
		return "config file path set but file does not exist"
	case ErrorConfigFileRead:
		return "config file could not be read"
	case ErrorConfigDecode:
		return "config contents could not be decoded into the option model"
	case ErrorResolverName:
		return "resolver_name is empty"
	case ErrorBalancerName:
		return "loadbalancer_name is empty"
	}
	return liberr.NullMessage
}
