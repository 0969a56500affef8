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

package reactor

import (
	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/rpcx/errors"
)

const (
	pollerStateNew     = -1
	pollerStateAdded   = 1
	pollerStateDeleted = 2
)

// poller wraps an epoll instance. Channels are kept in a dense slice
// indexed by fd, mirroring the original EPollPoller's vector-of-channels
// registry.
type poller struct {
	epfd     int
	events   []unix.EpollEvent
	channels []*Channel
}

func newPoller() (*poller, liberr.Error) {
	fd, e := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if e != nil {
		return nil, ErrorPollerCreate.ErrorParent(e)
	}

	return &poller{
		epfd:     fd,
		events:   make([]unix.EpollEvent, 64),
		channels: make([]*Channel, 64),
	}, nil
}

func (p *poller) close() {
	_ = unix.Close(p.epfd)
}

// wait blocks up to timeoutMS milliseconds and appends every channel with
// pending readiness to active.
func (p *poller) wait(timeoutMS int, active []*Channel) ([]*Channel, liberr.Error) {
	n, e := unix.EpollWait(p.epfd, p.events, timeoutMS)
	if e != nil {
		if e == unix.EINTR {
			return active, nil
		}
		return active, ErrorPollerWait.ErrorParent(e)
	}

	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		if fd < 0 || fd >= len(p.channels) || p.channels[fd] == nil {
			continue
		}

		ch := p.channels[fd]
		ch.SetRevents(int32(p.events[i].Events))
		active = append(active, ch)
	}

	if n == len(p.events) {
		grown := make([]unix.EpollEvent, len(p.events)*2)
		p.events = grown
	}

	return active, nil
}

func (p *poller) updateChannel(ch *Channel) liberr.Error {
	state := ch.Index()

	if ch.Fd() >= len(p.channels) {
		if state == pollerStateNew {
			grown := make([]*Channel, len(p.channels)*2)
			copy(grown, p.channels)
			p.channels = grown
		} else {
			return nil
		}
	}

	switch state {
	case pollerStateNew, pollerStateDeleted:
		p.channels[ch.Fd()] = ch
		ch.SetIndex(pollerStateAdded)
		return p.ctl(unix.EPOLL_CTL_ADD, ch)
	default: // pollerStateAdded
		if ch.IsNoneEvent() {
			ch.SetIndex(pollerStateDeleted)
			return p.ctl(unix.EPOLL_CTL_DEL, ch)
		}
		return p.ctl(unix.EPOLL_CTL_MOD, ch)
	}
}

func (p *poller) removeChannel(ch *Channel) liberr.Error {
	if ch.Fd() < len(p.channels) {
		p.channels[ch.Fd()] = nil
	}

	if ch.Index() == pollerStateAdded {
		if err := p.ctl(unix.EPOLL_CTL_DEL, ch); err != nil {
			return err
		}
	}

	ch.SetIndex(pollerStateNew)
	return nil
}

func (p *poller) ctl(op int, ch *Channel) liberr.Error {
	ev := unix.EpollEvent{
		Events: uint32(ch.Events()),
		Fd:     int32(ch.Fd()),
	}

	if e := unix.EpollCtl(p.epfd, op, ch.Fd(), &ev); e != nil {
		return ErrorPollerCreate.ErrorParent(e)
	}

	return nil
}
