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

import "sync"

// syncWorkerPool is a bounded pool of goroutines draining one task queue,
// modeled on the original's BlockingQueue: a service implementation that
// blocks runs here instead of on its connection's owning loop goroutine,
// so it cannot stall unrelated connections sharing that loop.
type syncWorkerPool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

// newSyncWorkerPool starts n worker goroutines, each pulling from a shared
// unbuffered task channel until Stop closes it.
func newSyncWorkerPool(n int) *syncWorkerPool {
	p := &syncWorkerPool{tasks: make(chan func())}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				t()
			}
		}()
	}
	return p
}

// Submit blocks until a worker is free to accept task; callers are the
// loop goroutines, so a full pool back-pressures request dispatch rather
// than growing unboundedly.
func (p *syncWorkerPool) Submit(task func()) {
	p.tasks <- task
}

// Stop closes the task channel and waits for every worker to drain and
// exit.
func (p *syncWorkerPool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
