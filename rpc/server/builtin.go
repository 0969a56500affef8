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

package server

import (
	"os"
	"sort"

	"github.com/nabbar/rpcx/archive/tar"
	"github.com/nabbar/rpcx/rpc"
)

// builtinServiceName is the full name every server registers its built-in
// service under; Services enumeration skips it.
const builtinServiceName = "rpcx.BuiltinService"

// builtinService implements HeartBeat, Services and GetFileSet against the
// owning Server's registry, per §6.4.
type builtinService struct {
	srv  *Server
	desc *rpc.ServiceDescriptor
}

func newBuiltinService(srv *Server) *builtinService {
	b := &builtinService{srv: srv}
	b.desc = &rpc.ServiceDescriptor{
		FullName: builtinServiceName,
		Methods: map[string]*rpc.MethodDescriptor{
			"HeartBeat": {
				Name:        "HeartBeat",
				NewRequest:  func() rpc.Payload { return newEmptyPayload() },
				NewResponse: func() rpc.Payload { return &heartBeatResponse{} },
			},
			"Services": {
				Name:        "Services",
				NewRequest:  func() rpc.Payload { return newEmptyPayload() },
				NewResponse: func() rpc.Payload { return &servicesResponse{} },
			},
			"GetFileSet": {
				Name:        "GetFileSet",
				NewRequest:  func() rpc.Payload { return &getFileSetRequest{} },
				NewResponse: func() rpc.Payload { return &getFileSetResponse{} },
			},
		},
	}
	return b
}

func (b *builtinService) Descriptor() *rpc.ServiceDescriptor { return b.desc }

func (b *builtinService) CallMethod(method string, ctrl *rpc.Controller, req rpc.Payload, resp rpc.Payload, done rpc.DoneCallback) {
	switch method {
	case "HeartBeat":
		r := resp.(*heartBeatResponse)
		if b.srv.Healthy() {
			r.Status = "Ok"
		} else {
			r.Status = "Bad"
		}
		done(ctrl, r)

	case "Services":
		r := resp.(*servicesResponse)
		r.Services = b.srv.registeredServiceNames()
		done(ctrl, r)

	case "GetFileSet":
		q := req.(*getFileSetRequest)
		r := resp.(*getFileSetResponse)

		bundle, err := b.srv.bundleFileSet(q.Names)
		if err != nil {
			ctrl.SetFailed(rpc.InternalError, err.Error())
			done(ctrl, nil)
			return
		}
		r.FileSet = bundle
		done(ctrl, r)

	default:
		ctrl.SetFailed(rpc.InvalidMethod, "unknown builtin method")
		done(ctrl, nil)
	}
}

// registeredServiceNames lists every service's full name except the
// built-in service itself, sorted for deterministic output.
func (s *Server) registeredServiceNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.services))
	for name := range s.services {
		if name == builtinServiceName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bundleFileSet tars+gzips the registered schema file paths for the named
// services into one archive. archive/tar.CreateGzip only writes to a real
// file (it walks paths with filepath.Walk), so a temp file stands in for
// an in-memory buffer and is read back and removed once done.
func (s *Server) bundleFileSet(names []string) ([]byte, error) {
	s.mu.Lock()
	var paths []string
	for _, n := range names {
		if reg, ok := s.services[n]; ok {
			paths = append(paths, reg.schemaFiles...)
		}
	}
	s.mu.Unlock()

	if len(paths) == 0 {
		return nil, nil
	}

	f, e := os.CreateTemp("", "rpcx-fileset-*.tar.gz")
	if e != nil {
		return nil, ErrorFileSetBundle.ErrorParent(e)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := tar.CreateGzip(f, "", paths...); err != nil {
		return nil, err
	}

	if _, e = f.Seek(0, 0); e != nil {
		return nil, ErrorFileSetBundle.ErrorParent(e)
	}
	return os.ReadFile(f.Name())
}
