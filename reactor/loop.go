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

// Package reactor implements a single-goroutine-per-loop I/O multiplexer in
// the style of muduo/claire's EventLoop: one epoll-backed poller, one timer
// queue, a cross-goroutine task queue woken through an eventfd, and a
// Channel abstraction dispatching readiness to callbacks.
package reactor

import (
	"bytes"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/rpcx/errors"
)

const pollTimeout = 10 * time.Millisecond

// Task runs on the loop's owner goroutine.
type Task func()

// Logger is the minimal sink Loop needs for its own diagnostics. Any type
// with an Errorf method satisfies it, including this module's logger.Logger.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// loopState tracks the three states a Loop may occupy.
type loopState int32

const (
	stateIdle loopState = iota
	stateLooping
	stateQuitting
)

// Loop is a reactor: at most one goroutine drives Run at any time, and that
// goroutine becomes the "owner" for the lifetime of the call. Every channel
// mutation, timer operation and callback invocation is required to happen
// on the owner goroutine; Loop has no internal mutex protecting those paths,
// matching the original's single-thread-per-reactor design.
type Loop struct {
	log Logger

	poll  *poller
	timer *timerQueue

	wakeupFd int
	wakeupCh *Channel

	state   atomic.Int32
	ownerID atomic.Int64 // goroutine id captured at Run() entry, see goroutineID

	pendingMu sync.Mutex
	pending   []Task

	activeChannels []*Channel
	current        *Channel

	signalCh chan os.Signal
}

// NewLoop allocates an idle Loop. The caller must call Run to start it. log
// may be nil.
func NewLoop(log Logger) (*Loop, liberr.Error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}

	fd, e := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if e != nil {
		p.close()
		return nil, ErrorWakeupFdCreate.ErrorParent(e)
	}

	l := &Loop{
		log:      log,
		poll:     p,
		timer:    newTimerQueue(),
		wakeupFd: fd,
	}
	l.ownerID.Store(-1)

	l.wakeupCh = NewChannel(l, fd)
	l.wakeupCh.SetPriority(PriorityHigh)
	l.wakeupCh.SetReadCallback(l.onWakeup)

	return l, nil
}

// Run enters the loop on the calling goroutine, which becomes the owner
// goroutine for as long as Run executes. It blocks until Quit is called.
func (l *Loop) Run() liberr.Error {
	if !l.state.CompareAndSwap(int32(stateIdle), int32(stateLooping)) {
		return ErrorLoopAlreadyRunning.Error(nil)
	}

	l.ownerID.Store(goroutineID())
	l.wakeupCh.EnableReading()

	defer func() {
		l.state.Store(int32(stateIdle))
		l.ownerID.Store(-1)
	}()

	for l.state.Load() == int32(stateLooping) {
		active, err := l.poll.wait(int(pollTimeout/time.Millisecond), l.activeChannels[:0])
		if err != nil {
			if l.log != nil {
				l.log.Errorf("poller wait failed: %s", err.Error())
			}
			return err
		}
		l.activeChannels = active

		sort.SliceStable(l.activeChannels, func(i, j int) bool {
			return l.activeChannels[i].Priority() > l.activeChannels[j].Priority()
		})

		for _, ch := range l.activeChannels {
			l.current = ch
			ch.HandleEvent()
		}
		l.current = nil

		l.timer.run(time.Now())
		l.runPendingTasks()
	}

	return nil
}

// Quit requests the loop exit at the end of the current iteration. Safe to
// call from any goroutine.
func (l *Loop) Quit() {
	l.state.Store(int32(stateQuitting))
	if !l.IsInLoopGoroutine() {
		l.wakeup()
	}
}

// RunInLoop invokes task synchronously if called from the owner goroutine,
// otherwise schedules it via Post.
func (l *Loop) RunInLoop(task Task) {
	if l.IsInLoopGoroutine() {
		task()
		return
	}
	l.Post(task)
}

// Post unconditionally appends task to the pending queue and wakes the loop
// unless the call originates from a callback already executing on the
// owner goroutine, in which case the loop will drain pending tasks before
// its next poll regardless.
func (l *Loop) Post(task Task) {
	l.pendingMu.Lock()
	l.pending = append(l.pending, task)
	l.pendingMu.Unlock()

	if !l.IsInLoopGoroutine() || l.current == nil {
		l.wakeup()
	}
}

// RunAt schedules cb to fire at t and returns a cancellable timer id.
func (l *Loop) RunAt(t time.Time, cb TimerCallback) TimerID {
	var id TimerID
	done := make(chan struct{})
	l.RunInLoop(func() {
		id = l.timer.add(t, 0, cb)
		close(done)
	})
	<-done
	return id
}

// RunAfter schedules cb to fire after dt elapses.
func (l *Loop) RunAfter(dt time.Duration, cb TimerCallback) TimerID {
	if dt < minArmDelay {
		dt = minArmDelay
	}
	return l.RunAt(time.Now().Add(dt), cb)
}

// RunEvery schedules cb to fire every dt, first firing after one interval.
func (l *Loop) RunEvery(dt time.Duration, cb TimerCallback) TimerID {
	if dt < minArmDelay {
		dt = minArmDelay
	}
	var id TimerID
	done := make(chan struct{})
	l.RunInLoop(func() {
		id = l.timer.add(time.Now().Add(dt), dt, cb)
		close(done)
	})
	<-done
	return id
}

// Cancel removes a previously scheduled timer. Safe from any goroutine.
func (l *Loop) Cancel(id TimerID) {
	l.RunInLoop(func() {
		l.timer.cancel(id)
	})
}

// WatchSignals arms a background goroutine that forwards os.Signal delivery
// into the loop as posted tasks, the analogue of a SignalSet helper used
// for graceful shutdown on SIGINT/SIGTERM.
func (l *Loop) WatchSignals(onSignal func(os.Signal), sig ...os.Signal) {
	l.signalCh = make(chan os.Signal, 1)
	signal.Notify(l.signalCh, sig...)

	go func() {
		for s := range l.signalCh {
			s := s
			l.Post(func() { onSignal(s) })
		}
	}()
}

// AssertInLoopGoroutine panics if the caller is not the owner goroutine, a
// fatal and unrecoverable usage error per the loop-affinity invariant.
func (l *Loop) AssertInLoopGoroutine() {
	if !l.IsInLoopGoroutine() {
		panic(ErrorLoopNotOwner.Error(nil))
	}
}

// IsInLoopGoroutine reports whether the caller is running on the owner
// goroutine captured at Run(), by comparing the runtime's own goroutine
// id, parsed from runtime.Stack the way goroutine-local storage is commonly
// emulated in the absence of a native thread-id API. It is false for every
// caller while Run is not executing.
func (l *Loop) IsInLoopGoroutine() bool {
	owner := l.ownerID.Load()
	return owner >= 0 && owner == goroutineID()
}

func (l *Loop) updateChannel(ch *Channel) {
	l.AssertInLoopGoroutine()
	if err := l.poll.updateChannel(ch); err != nil && l.log != nil {
		l.log.Errorf("update channel fd=%d failed: %s", ch.Fd(), err.Error())
	}
}

func (l *Loop) removeChannel(ch *Channel) {
	l.AssertInLoopGoroutine()
	if err := l.poll.removeChannel(ch); err != nil && l.log != nil {
		l.log.Errorf("remove channel fd=%d failed: %s", ch.Fd(), err.Error())
	}
}

func (l *Loop) runPendingTasks() {
	l.pendingMu.Lock()
	tasks := l.pending
	l.pending = nil
	l.pendingMu.Unlock()

	for _, t := range tasks {
		t()
	}
}

func (l *Loop) wakeup() {
	b := make([]byte, 8)
	b[0] = 1
	_, _ = unix.Write(l.wakeupFd, b)
}

func (l *Loop) onWakeup() {
	b := make([]byte, 8)
	_, _ = unix.Read(l.wakeupFd, b)
}

// Close releases the loop's poller and wake-up fd. The loop must not be
// running.
func (l *Loop) Close() {
	_ = unix.Close(l.wakeupFd)
	l.poll.close()
}

// goroutineID extracts the runtime's internal goroutine id from the
// "goroutine N [...]" header runtime.Stack writes. Go exposes no public
// thread/goroutine identity API; this is the standard workaround used to
// emulate goroutine-local storage, applied here only on the cold path of
// cross-goroutine loop-affinity checks.
func goroutineID() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
