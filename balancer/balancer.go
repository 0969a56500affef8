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

// Package balancer selects a backend endpoint per call, with two built-ins
// (uniform random, round-robin) registered in a name-keyed factory.
package balancer

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	liberr "github.com/nabbar/rpcx/errors"
	"github.com/nabbar/rpcx/tcpnet"
)

const pkgName = "rpcx/balancer"

const (
	ErrorUnknownBalancer liberr.CodeError = iota + liberr.MinPkgBalancer
	ErrorNoBackend
)

func init() {
	if liberr.ExistInMapMessage(ErrorUnknownBalancer) {
		panic(fmt.Errorf("error code collision %s", pkgName))
	}
	liberr.RegisterIdFctMessage(ErrorUnknownBalancer, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case liberr.UnknownError:
		return liberr.NullMessage
	case ErrorUnknownBalancer:
		return "no load balancer registered under this name"
	case ErrorNoBackend:
		return "no live backend available"
	}
	return liberr.NullMessage
}

// Balancer selects a backend endpoint per call and accepts liveness
// feedback from the caller.
type Balancer interface {
	AddBackend(addr *tcpnet.Addr, weight int)
	ReleaseBackend(addr *tcpnet.Addr)
	NextBackend() (*tcpnet.Addr, liberr.Error)

	AddConnectResult(addr *tcpnet.Addr, ok bool, latency time.Duration)
	AddRequestResult(addr *tcpnet.Addr, ok bool, latency time.Duration)
}

type Factory func() Balancer

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"random":      func() Balancer { return NewRandom() },
		"round_robin": func() Balancer { return NewRoundRobin() },
	}
)

func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

func New(name string) (Balancer, liberr.Error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, ErrorUnknownBalancer.Error(nil)
	}
	return f(), nil
}

// backendSet maintains a deduplicated, sorted-by-address backend list,
// shared by both built-in strategies.
type backendSet struct {
	mu   sync.Mutex
	list []*tcpnet.Addr
}

func (s *backendSet) add(addr *tcpnet.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.list {
		if a.Equal(addr) {
			return
		}
	}
	s.list = append(s.list, addr)
	sort.Slice(s.list, func(i, j int) bool { return s.list[i].String() < s.list[j].String() })
}

func (s *backendSet) release(addr *tcpnet.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.list {
		if a.Equal(addr) {
			s.list = append(s.list[:i], s.list[i+1:]...)
			return
		}
	}
}

func (s *backendSet) snapshot() []*tcpnet.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*tcpnet.Addr(nil), s.list...)
}

// Random picks backends uniformly at random from a deduplicated, sorted
// list.
type Random struct {
	set *backendSet
	rnd *rand.Rand
	mu  sync.Mutex
}

func NewRandom() *Random {
	return &Random{set: &backendSet{}, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *Random) AddBackend(addr *tcpnet.Addr, _ int) { r.set.add(addr) }
func (r *Random) ReleaseBackend(addr *tcpnet.Addr)     { r.set.release(addr) }

func (r *Random) NextBackend() (*tcpnet.Addr, liberr.Error) {
	list := r.set.snapshot()
	if len(list) == 0 {
		return nil, ErrorNoBackend.Error(nil)
	}

	r.mu.Lock()
	i := r.rnd.Intn(len(list))
	r.mu.Unlock()

	return list[i], nil
}

func (r *Random) AddConnectResult(*tcpnet.Addr, bool, time.Duration) {}
func (r *Random) AddRequestResult(*tcpnet.Addr, bool, time.Duration) {}

// RoundRobin cycles through a deduplicated, sorted list via a wrapping
// external index.
type RoundRobin struct {
	set  *backendSet
	next uint64
	mu   sync.Mutex
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{set: &backendSet{}}
}

func (r *RoundRobin) AddBackend(addr *tcpnet.Addr, _ int) { r.set.add(addr) }
func (r *RoundRobin) ReleaseBackend(addr *tcpnet.Addr)     { r.set.release(addr) }

func (r *RoundRobin) NextBackend() (*tcpnet.Addr, liberr.Error) {
	list := r.set.snapshot()
	if len(list) == 0 {
		return nil, ErrorNoBackend.Error(nil)
	}

	r.mu.Lock()
	i := r.next % uint64(len(list))
	r.next++
	r.mu.Unlock()

	return list[i], nil
}

func (r *RoundRobin) AddConnectResult(*tcpnet.Addr, bool, time.Duration) {}
func (r *RoundRobin) AddRequestResult(*tcpnet.Addr, bool, time.Duration) {}
