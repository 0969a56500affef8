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

// Package resolver maps a logical service name to a set of endpoints, with
// two built-ins (a static host:port list and DNS) registered in a
// name-keyed factory.
package resolver

import (
	"fmt"
	"sort"
	"sync"

	liberr "github.com/nabbar/rpcx/errors"
	"github.com/nabbar/rpcx/tcpnet"
)

const pkgName = "rpcx/resolver"

const (
	ErrorUnknownResolver liberr.CodeError = iota + liberr.MinPkgResolver
	ErrorNoEndpoints
)

func init() {
	if liberr.ExistInMapMessage(ErrorUnknownResolver) {
		panic(fmt.Errorf("error code collision %s", pkgName))
	}
	liberr.RegisterIdFctMessage(ErrorUnknownResolver, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case liberr.UnknownError:
		return liberr.NullMessage
	case ErrorUnknownResolver:
		return "no resolver registered under this name"
	case ErrorNoEndpoints:
		return "resolver returned no endpoints"
	}
	return liberr.NullMessage
}

// ResultCallback delivers the resolved endpoint set for one name.
type ResultCallback func(endpoints []*tcpnet.Addr, err liberr.Error)

// Resolver maps a logical service identity to one or more endpoints.
type Resolver interface {
	Resolve(name string, cb ResultCallback)
}

// Factory constructs a named Resolver instance.
type Factory func() Resolver

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"list": func() Resolver { return &ListResolver{} },
		"dns":  func() Resolver { return &DNSResolver{} },
	}
)

// Register adds or replaces a named resolver factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New instantiates the resolver registered under name.
func New(name string) (Resolver, liberr.Error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, ErrorUnknownResolver.Error(nil)
	}
	return f(), nil
}

// ListResolver interprets name as a comma/semicolon separated list of
// host:port entries, deduplicated and sorted for a deterministic order.
type ListResolver struct{}

func (r *ListResolver) Resolve(name string, cb ResultCallback) {
	entries := tcpnet.SplitHostPorts(name)

	seen := make(map[string]struct{}, len(entries))
	addrs := make([]*tcpnet.Addr, 0, len(entries))

	for _, e := range entries {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}

		a, err := tcpnet.ParseAddr(e)
		if err != nil {
			continue
		}
		addrs = append(addrs, a)
	}

	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].String() < addrs[j].String()
	})

	if len(addrs) == 0 {
		cb(nil, ErrorNoEndpoints.Error(nil))
		return
	}
	cb(addrs, nil)
}

// DNSResolver performs an asynchronous DNS lookup of name (host:port),
// external to the framework's core but exposed behind the same interface.
type DNSResolver struct{}

func (r *DNSResolver) Resolve(name string, cb ResultCallback) {
	go func() {
		a, err := tcpnet.ParseAddr(name)
		if err != nil {
			cb(nil, err)
			return
		}
		cb([]*tcpnet.Addr{a}, nil)
	}()
}
