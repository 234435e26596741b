// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"sync"

	"github.com/eapache/queue"
)

// pipeState tracks a pipe's position in the termination handshake used by
// the reference implementation's pipe_t: a delimiter frame is pushed ahead
// of a close so the reader drains everything sent before agreeing to tear
// down, then both ends exchange a term/term-ack pair.
type pipeState int

const (
	pipeActive pipeState = iota
	pipeDelimiterSent
	pipePending
	pipeTerminating
	pipeTerminated
)

// defaultHWM is the default high-water mark: the number of outstanding
// messages a pipe will buffer before Push starts returning EAGAIN.
const defaultHWM = 1000

// defaultLWM is computed as a fraction of the HWM: once the queue has
// drained back down to this level, a blocked writer is allowed to resume.
func defaultLWM(hwm int) int {
	lwm := hwm / 2
	if lwm < 1 {
		lwm = 1
	}
	return lwm
}

// Pipe is a bounded, single-producer/single-consumer message queue
// connecting a socket to one of its peer connections. It enforces
// high-water/low-water mark flow control and participates in the
// ownership/termination protocol via its delimiter/term handshake.
//
// The queue storage is a ring buffer (github.com/eapache/queue) rather
// than the reference implementation's intrusive linked list: Go's GC makes
// the list's custom allocator unnecessary, and a ring buffer gives better
// cache behaviour for the common case of a steadily draining queue.
type Pipe struct {
	mu  sync.Mutex
	q   *queue.Queue
	hwm int
	lwm int

	state pipeState

	readSig  chan struct{} // signalled when a message becomes available
	writeSig chan struct{} // signalled when the queue drops back to the LWM

	bytes int // running total of buffered payload, reported by Bytes
}

// NewPipe returns a Pipe with the given high-water mark. A hwm of zero
// means unbounded (Push never blocks).
func NewPipe(hwm int) *Pipe {
	if hwm < 0 {
		hwm = 0
	}
	return &Pipe{
		q:        queue.New(),
		hwm:      hwm,
		lwm:      defaultLWM(hwm),
		readSig:  make(chan struct{}, 1),
		writeSig: make(chan struct{}, 1),
	}
}

// ReadyRead returns a channel that becomes readable when the pipe is
// non-empty; used by the Poller to multiplex many pipes without spinning.
func (p *Pipe) ReadyRead() <-chan struct{} { return p.readSig }

// ReadyWrite returns a channel that becomes readable when Pop has drained
// the queue down to the low-water mark or below.
func (p *Pipe) ReadyWrite() <-chan struct{} { return p.writeSig }

// Push enqueues msg. It returns EAGAIN immediately if the pipe is at its
// high-water mark; callers wanting to block should first receive from
// ReadyWrite.
func (p *Pipe) Push(msg Msg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != pipeActive {
		return newError("Push", ETERM, nil)
	}
	if p.hwm > 0 && p.q.Length() >= p.hwm {
		return newError("Push", EAGAIN, nil)
	}

	p.q.Add(msg)
	p.bytes += msg.size()
	p.signal(p.readSig)
	return nil
}

// Pop dequeues the oldest message. ok is false if the pipe was empty.
func (p *Pipe) Pop() (Msg, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.q.Length() == 0 {
		return Msg{}, false
	}
	v := p.q.Peek()
	p.q.Remove()
	msg := v.(Msg)
	p.bytes -= msg.size()

	if p.state == pipeDelimiterSent && p.q.Length() == 0 {
		// Everything queued ahead of the delimiter has been read out;
		// the handshake's other half is Terminated() observing this.
		p.state = pipePending
	}
	if p.q.Length() > 0 {
		p.signal(p.readSig)
	}
	if p.q.Length() <= p.lwm {
		p.signal(p.writeSig)
	}
	return msg, true
}

// Len returns the number of messages currently buffered.
func (p *Pipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Length()
}

// Bytes returns the number of payload bytes currently buffered.
func (p *Pipe) Bytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytes
}

// Terminate begins the pipe's termination handshake, mirroring the
// reference implementation's pipe_t.terminate(delay_). With delay=false
// (a dead connection: there is nothing left worth delivering) any
// buffered messages are discarded and the pipe is torn down immediately.
// With delay=true (the graceful ZMQ_LINGER path) a delimiter marks the
// end of the stream: every message already queued ahead of it still
// drains through Pop, and Terminated only starts reporting true once the
// delimiter itself has been popped. No further Push calls succeed either
// way.
func (p *Pipe) Terminate(delay bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != pipeActive {
		return
	}

	if !delay {
		p.state = pipeTerminating
		p.q = queue.New()
		p.bytes = 0
		p.signal(p.readSig)
		return
	}

	if p.q.Length() == 0 {
		p.state = pipeTerminated
	} else {
		p.state = pipeDelimiterSent
	}
	p.signal(p.readSig)
}

// Terminated reports whether the pipe has fully drained and completed
// its termination handshake.
func (p *Pipe) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == pipePending {
		p.state = pipeTerminated
	}
	return p.state == pipeTerminated || p.state == pipeTerminating
}

// signal performs a non-blocking send, coalescing bursts of activity into
// a single wakeup the way a doorbell (the reference implementation's
// semaphore/signaler) does.
func (p *Pipe) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
