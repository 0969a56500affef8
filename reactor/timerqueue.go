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

package reactor

import (
	"sort"
	"time"
)

// TimerID identifies one registered timer entry, usable with Cancel.
type TimerID int64

// minArmDelay is the shortest delay RunAfter and RunEvery accept; shorter
// delays are raised to it.
const minArmDelay = 100 * time.Microsecond

// TimerCallback runs on the owning loop's goroutine.
type TimerCallback func()

type timerEntry struct {
	id         TimerID
	expiration time.Time
	interval   time.Duration // zero means one-shot
	callback   TimerCallback
	cancelled  bool
}

// timerQueue maintains timer entries indexed both by id (for Cancel) and
// by expiration (for firing order). All methods run on the owning loop's
// goroutine; there is no internal locking.
type timerQueue struct {
	byID   map[TimerID]*timerEntry
	nextID TimerID
}

func newTimerQueue() *timerQueue {
	return &timerQueue{byID: make(map[TimerID]*timerEntry)}
}

func (q *timerQueue) add(expiration time.Time, interval time.Duration, cb TimerCallback) TimerID {
	q.nextID++
	id := q.nextID
	q.byID[id] = &timerEntry{
		id:         id,
		expiration: expiration,
		interval:   interval,
		callback:   cb,
	}
	return id
}

func (q *timerQueue) cancel(id TimerID) {
	if e, ok := q.byID[id]; ok {
		e.cancelled = true
		delete(q.byID, id)
	}
}

// run fires every entry whose expiration is <= now. Repeating entries are
// re-inserted with expiration = now + interval before any callback runs,
// so a callback may safely cancel itself or another timer. Callbacks run
// in expiration order; ties are broken by id.
func (q *timerQueue) run(now time.Time) {
	due := make([]*timerEntry, 0)
	for _, e := range q.byID {
		if !e.expiration.After(now) {
			due = append(due, e)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].expiration.Equal(due[j].expiration) {
			return due[i].id < due[j].id
		}
		return due[i].expiration.Before(due[j].expiration)
	})

	for _, e := range due {
		delete(q.byID, e.id)
		if e.interval > 0 && !e.cancelled {
			q.byID[e.id] = &timerEntry{
				id:         e.id,
				expiration: now.Add(e.interval),
				interval:   e.interval,
				callback:   e.callback,
			}
		}
	}

	for _, e := range due {
		if !e.cancelled && e.callback != nil {
			e.callback()
		}
	}
}

// nextExpiration returns the earliest expiration across all live entries
// and whether any entry exists.
func (q *timerQueue) nextExpiration() (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, e := range q.byID {
		if !found || e.expiration.Before(best) {
			best = e.expiration
			found = true
		}
	}
	return best, found
}

func (q *timerQueue) len() int { return len(q.byID) }
