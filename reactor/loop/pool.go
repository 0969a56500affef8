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

//go:build linux

// Package loop provides EventLoopThread/EventLoopThreadPool equivalents:
// each reactor.Loop the server assigns connections to runs on its own
// goroutine, started and torn down together.
package loop

import (
	"sync"
	"sync/atomic"

	liberr "github.com/nabbar/rpcx/errors"
	"github.com/nabbar/rpcx/reactor"
)

// Thread owns exactly one Loop running on its own goroutine.
type Thread struct {
	log  reactor.Logger
	loop *reactor.Loop
	done chan struct{}
}

// NewThread constructs a loop and starts it on a new goroutine, returning
// once that goroutine has started. Tasks posted before Run begins are
// queued and run once it does.
func NewThread(log reactor.Logger) (*Thread, liberr.Error) {
	l, err := reactor.NewLoop(log)
	if err != nil {
		return nil, err
	}

	t := &Thread{log: log, loop: l, done: make(chan struct{})}

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = l.Run()
		close(t.done)
	}()
	<-ready

	return t, nil
}

func (t *Thread) Loop() *reactor.Loop { return t.loop }

// Stop requests the loop quit and waits for its goroutine to return.
func (t *Thread) Stop() {
	t.loop.Quit()
	<-t.done
	t.loop.Close()
}

// Pool is a fixed-size collection of loop threads, handed out round-robin
// to new connections by reactor.Loop-consuming servers (tcpnet.Server).
type Pool struct {
	base    *reactor.Loop // the creating goroutine's own loop, used when size==0
	threads []*Thread
	next    atomic.Uint64

	mu      sync.Mutex
	started bool
}

// NewPool creates size worker loop-threads. base is the loop Next() falls
// back to when size is 0, matching the original's "no thread pool" mode
// where the main loop itself handles every connection.
func NewPool(base *reactor.Loop, size int, log reactor.Logger) (*Pool, liberr.Error) {
	p := &Pool{base: base}

	for i := 0; i < size; i++ {
		th, err := NewThread(log)
		if err != nil {
			p.Stop()
			return nil, err
		}
		p.threads = append(p.threads, th)
	}

	return p, nil
}

// Next returns the next loop in round-robin order, or the base loop if the
// pool has no worker threads.
func (p *Pool) Next() *reactor.Loop {
	if len(p.threads) == 0 {
		return p.base
	}
	i := p.next.Add(1) - 1
	return p.threads[i%uint64(len(p.threads))].Loop()
}

// Size returns the number of worker loops (excluding the base loop).
func (p *Pool) Size() int { return len(p.threads) }

// Stop stops every worker loop thread, waiting for each to return.
func (p *Pool) Stop() {
	for _, th := range p.threads {
		th.Stop()
	}
}
