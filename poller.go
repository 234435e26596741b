// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"sync"
	"time"
)

// PollEvent is a bitmask of the conditions a Poller can wait for on a
// socket, mirroring ZMQ_POLLIN/ZMQ_POLLOUT.
type PollEvent int

const (
	PollIn  PollEvent = 1 << iota // socket has a message ready to Recv
	PollOut                       // socket has room to Send without blocking
)

// PollItem pairs a Socket with the events that were ready on it.
type PollItem struct {
	Socket Socket
	Events PollEvent
}

// pollable is implemented by sockets that can report, without blocking,
// whether a Recv or Send would currently succeed.
type pollable interface {
	hasIn() bool
	hasOut() bool
}

// pollEntry is what Poller tracks per registered socket: which events the
// caller asked about, and the callback to run when one fires.
type pollEntry struct {
	events  PollEvent
	onReady func(Socket, PollEvent)
}

// Poller multiplexes Recv/Send readiness and timers across several
// sockets without a file descriptor, the way the reference
// implementation's poller_t multiplexes sockets and its timers_t
// multiplexes deadlines: here, readiness is sampled through each socket's
// non-blocking hasIn/hasOut checks, re-taken at least every pollSpin,
// rather than by fd polling,
// since Go's own runtime already multiplexes net.Conn for us, and the
// tickless wait in Run is computed from an embedded timerSet exactly as
// timers_t.timeout feeds a reactor's poll call.
type Poller struct {
	mu      sync.Mutex
	items   map[Socket]*pollEntry
	timers  *timerSet
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPoller returns an empty Poller. Use Add to register sockets and
// AddTimer/AddRecurring to schedule deadlines alongside them.
func NewPoller() *Poller {
	return &Poller{
		items:  make(map[Socket]*pollEntry),
		timers: newTimerSet(),
	}
}

// Add registers a socket, the events to watch for on it, and the
// callback Run or Poll invokes once one of those events becomes ready.
// onReady may be nil if the caller only wants Poll's returned PollItems.
func (p *Poller) Add(sck Socket, events PollEvent, onReady func(Socket, PollEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[sck] = &pollEntry{events: events, onReady: onReady}
}

// Remove unregisters a socket.
func (p *Poller) Remove(sck Socket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, sck)
}

// AddTimer schedules fn to run once after d, the way the reference
// implementation's timers_t.add_timer feeds a one-shot deadline into the
// reactor's poll call.
func (p *Poller) AddTimer(d time.Duration, fn func()) int {
	return p.timers.AddTimer(d, fn)
}

// AddRecurring schedules fn to run every d until cancelled via CancelTimer.
func (p *Poller) AddRecurring(d time.Duration, fn func()) int {
	return p.timers.AddRecurring(d, fn)
}

// CancelTimer cancels a pending timer previously scheduled with AddTimer
// or AddRecurring.
func (p *Poller) CancelTimer(id int) {
	p.timers.Cancel(id)
}

// sample takes one non-blocking pass over every registered socket,
// returning the items that are ready and firing each one's callback.
func (p *Poller) sample() []PollItem {
	p.mu.Lock()
	var ready []PollItem
	type fire struct {
		item PollItem
		cb   func(Socket, PollEvent)
	}
	var fires []fire
	for sck, e := range p.items {
		s, ok := sck.(pollable)
		if !ok {
			continue
		}
		var ev PollEvent
		if e.events&PollIn != 0 && s.hasIn() {
			ev |= PollIn
		}
		if e.events&PollOut != 0 && s.hasOut() {
			ev |= PollOut
		}
		if ev == 0 {
			continue
		}
		item := PollItem{Socket: sck, Events: ev}
		ready = append(ready, item)
		fires = append(fires, fire{item: item, cb: e.onReady})
	}
	p.mu.Unlock()

	for _, f := range fires {
		if f.cb != nil {
			f.cb(f.item.Socket, f.item.Events)
		}
	}
	return ready
}

// nextWait bounds how long Run or Poll should sleep before re-sampling:
// never past base, and never past the next timer's deadline.
func (p *Poller) nextWait(now time.Time, base time.Duration) time.Duration {
	wait := base
	if deadline, ok := p.timers.NextDeadline(); ok {
		if d := deadline.Sub(now); d < wait {
			if d < 0 {
				d = 0
			}
			wait = d
		}
	}
	return wait
}

// Poll blocks until at least one registered socket becomes ready, the
// timeout elapses (timeout < 0 means wait forever), or ctx is cancelled.
// It returns the subset of items that were ready, having already fired
// their ReceiveReady/SendReady callbacks.
func (p *Poller) Poll(ctx context.Context, timeout time.Duration) ([]PollItem, error) {
	if timeout >= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		now := time.Now()
		p.timers.Fire(now)
		if ready := p.sample(); len(ready) > 0 {
			return ready, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.nextWait(now, pollSpin)):
		}
	}
}

// Run drives the poller, tickless, until ctx is cancelled or Stop/
// StopWait is called: each iteration fires due timers, samples every
// registered socket and dispatches its ReceiveReady/SendReady callback,
// then sleeps no longer than min(next timer deadline, pollSpin) before
// sampling again. It returns ctx.Err() on cancellation, nil on Stop.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return newError("Run", EINVAL, nil)
	}
	p.running = true
	stop := make(chan struct{})
	done := make(chan struct{})
	p.stopCh, p.doneCh = stop, done
	p.mu.Unlock()

	defer close(done)
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	for {
		now := time.Now()
		p.timers.Fire(now)
		p.sample()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-time.After(p.nextWait(now, pollSpin)):
		}
	}
}

// Stop asks a running Run loop to exit without blocking for it to do so.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
}

// StopWait asks a running Run loop to exit and blocks until it has.
func (p *Poller) StopWait() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	done := p.doneCh
	p.mu.Unlock()

	p.Stop()
	<-done
}

// pollSpin bounds how often Run/Poll re-samples readiness when nothing
// is immediately ready and no timer is due sooner; sockets wake up a
// blocked Recv/Send far sooner than this via their own doorbell channels,
// so this only governs the poller's own sampling cadence.
const pollSpin = 5 * time.Millisecond
