// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"io"
	"sync"
	"time"
)

// rpool is the interface a socket uses to read ZMQ messages out of a pool
// of connections, applying whatever fan-in discipline (fair-queue,
// broadcast, ...) its socket type requires.
type rpool interface {
	io.Closer
	addConn(c *Conn, hwm int)
	rmConn(c *Conn)
	read(ctx context.Context, msg *Msg) error
}

// wpool is the interface a socket uses to write ZMQ messages across a
// pool of connections, applying whatever fan-out discipline (load-balance,
// broadcast, ...) its socket type requires. dropped reports whether msg
// (or, for a broadcast, some copy of it) was discarded rather than queued,
// so the caller can account for it in its drop counter.
type wpool interface {
	io.Closer
	addConn(c *Conn, hwm int)
	rmConn(c *Conn)
	write(ctx context.Context, msg Msg) (dropped bool, err error)
}

// pumpRead drains wire messages off conn into p until the connection
// fails or ctx is cancelled.
func pumpRead(ctx context.Context, conn *Conn, p *Pipe) {
	for {
		msg, err := conn.RecvMsg()
		if err != nil {
			msg.err = err
			_ = p.Push(msg)
			p.Terminate(true) // drain the error frame just pushed before reporting done
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		for {
			if err := p.Push(msg); err == nil {
				break
			}
			select {
			case <-p.ReadyWrite():
			case <-ctx.Done():
				return
			}
		}
	}
}

// pumpWrite drains p onto conn's wire until the connection fails or ctx
// is cancelled.
func pumpWrite(ctx context.Context, conn *Conn, p *Pipe) {
	for {
		msg, ok := p.Pop()
		if !ok {
			select {
			case <-p.ReadyRead():
				continue
			case <-ctx.Done():
				return
			}
		}
		if msg.err != nil {
			return
		}
		if err := conn.SendMsg(msg); err != nil {
			p.Terminate(false) // conn is dead, discard whatever is still queued
			return
		}
	}
}

// qreader is a fair-queued reader across every attached connection.
type qreader struct {
	ctx context.Context
	fq  *fairQueue

	mu  sync.Mutex
	all map[*Conn]*Pipe
}

func newQReader(ctx context.Context) *qreader {
	return &qreader{ctx: ctx, fq: newFairQueue(), all: make(map[*Conn]*Pipe)}
}

func (q *qreader) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var err error
	for c := range q.all {
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (q *qreader) addConn(c *Conn, hwm int) {
	p := NewPipe(hwm)
	q.mu.Lock()
	q.all[c] = p
	q.mu.Unlock()
	q.fq.attach(p)
	go pumpRead(q.ctx, c, p)
}

func (q *qreader) rmConn(c *Conn) {
	q.mu.Lock()
	p, ok := q.all[c]
	if ok {
		delete(q.all, c)
	}
	q.mu.Unlock()
	if ok {
		q.fq.detach(p)
	}
}

func (q *qreader) read(ctx context.Context, msg *Msg) error {
	m, err := q.fq.Recv(ctx)
	*msg = m
	return err
}

// hasIn reports whether a Recv would currently return without blocking.
func (q *qreader) hasIn() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.all {
		if p.Len() > 0 {
			return true
		}
	}
	return false
}

// qdepth sums the queued message count across every attached pipe.
func (q *qreader) qdepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, p := range q.all {
		n += p.Len()
	}
	return n
}

// mwriter writes messages to the pipes of its attached connections. Built
// by newMWriter (the default writer of PAIR, SUB, XSUB and REP) it
// broadcasts every message to all of them; built by newLBWriter (PUSH,
// REQ, DEALER) it load-balances each message to one of them.
type mwriter struct {
	ctx context.Context
	lb  *loadBalance

	mu  sync.RWMutex
	all map[*Conn]*Pipe

	broadcast bool
}

func newMWriter(ctx context.Context) *mwriter {
	return &mwriter{ctx: ctx, lb: newLoadBalance(), all: make(map[*Conn]*Pipe), broadcast: true}
}

func newLBWriter(ctx context.Context) *mwriter {
	return &mwriter{ctx: ctx, lb: newLoadBalance(), all: make(map[*Conn]*Pipe), broadcast: false}
}

func (w *mwriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var err error
	for c := range w.all {
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (w *mwriter) addConn(c *Conn, hwm int) {
	p := NewPipe(hwm)
	w.mu.Lock()
	w.all[c] = p
	w.mu.Unlock()
	w.lb.attach(p)
	go pumpWrite(w.ctx, c, p)
}

func (w *mwriter) rmConn(c *Conn) {
	w.mu.Lock()
	p, ok := w.all[c]
	if ok {
		delete(w.all, c)
	}
	w.mu.Unlock()
	if ok {
		w.lb.detach(p)
	}
}

// write queues msg for delivery. In broadcast mode (PUB-like fan-out) a
// slow subscriber is skipped rather than blocked, so the publisher never
// stalls; in load-balance mode (PUSH/REQ/DEALER) a full pipe set suspends the caller on ReadyWrite until a reader
// drains below the low-water mark, matching a blocking ZMQ_SNDTIMEO send.
func (w *mwriter) write(ctx context.Context, msg Msg) (bool, error) {
	w.mu.RLock()
	n := len(w.all)
	w.mu.RUnlock()
	if n == 0 {
		return false, newError("Send", EAGAIN, nil)
	}
	if w.broadcast {
		return w.lb.broadcast(msg), nil
	}
	for {
		if w.lb.trySend(msg) {
			return false, nil
		}
		ch, cancel := merge(w.lb.readySignals())
		select {
		case <-ctx.Done():
			cancel()
			return false, ctx.Err()
		case <-ch:
			cancel()
		case <-time.After(idlePoll):
			cancel()
		}
	}
}

// hasOut reports whether a Send would currently queue without blocking.
func (w *mwriter) hasOut() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, p := range w.all {
		if p.hwm == 0 || p.Len() < p.hwm {
			return true
		}
	}
	return false
}

// qdepth sums the queued message count across every attached pipe.
func (w *mwriter) qdepth() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, p := range w.all {
		n += p.Len()
	}
	return n
}

var (
	_ rpool = (*qreader)(nil)
	_ wpool = (*mwriter)(nil)
)
