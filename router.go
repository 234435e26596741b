// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"sync"
	"time"
)

// NewRouter returns a new ROUTER ZeroMQ socket.
// The returned socket value is initially unbound.
func NewRouter(ctx context.Context, opts ...Option) Socket {
	router := &RouterSocket{socket: newSocket(ctx, Router, opts...)}
	router.socket.r = newRouterReader(router.socket.ctx)
	router.socket.w = newRouterWriter(router.socket.ctx, &router.socket.routerMandatory)
	return router
}

// Router is a ROUTER ZeroMQ socket. Every message Recv returns is
// prefixed with a frame carrying the identity of the peer it arrived
// from; Send's first frame selects the destination peer by that same
// identity, and the remainder is forwarded as-is. An unknown identity is
// silently dropped unless WithRouterMandatory(true) was set, in which
// case Send fails with EHOSTUNREACH.
type RouterSocket struct {
	*socket
}

// routerReader fair-queues across attached connections, prefixing every
// returned message with the connection's identity frame.
type routerReader struct {
	ctx context.Context

	mu    sync.Mutex
	pipes map[*Conn]*Pipe
	order []*Conn
	cur   int
}

func newRouterReader(ctx context.Context) *routerReader {
	return &routerReader{ctx: ctx, pipes: make(map[*Conn]*Pipe)}
}

func (r *routerReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for c := range r.pipes {
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (r *routerReader) addConn(c *Conn, hwm int) {
	p := NewPipe(hwm)
	r.mu.Lock()
	r.pipes[c] = p
	r.order = append(r.order, c)
	r.mu.Unlock()
	go pumpRead(r.ctx, c, p)
}

func (r *routerReader) rmConn(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pipes, c)
	for i, cc := range r.order {
		if cc == c {
			r.order = append(r.order[:i], r.order[i+1:]...)
			if r.cur >= len(r.order) {
				r.cur = 0
			}
			break
		}
	}
}

func (r *routerReader) tryRecv() (Msg, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.order)
	for i := 0; i < n; i++ {
		idx := (r.cur + i) % n
		c := r.order[idx]
		if msg, ok := r.pipes[c].Pop(); ok {
			r.cur = (idx + 1) % n
			id := []byte(c.Identity())
			msg.Frames = append([][]byte{id}, msg.Frames...)
			return msg, true
		}
	}
	return Msg{}, false
}

func (r *routerReader) readySignals() []<-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]<-chan struct{}, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, r.pipes[c].ReadyRead())
	}
	return out
}

func (r *routerReader) read(ctx context.Context, msg *Msg) error {
	for {
		if m, ok := r.tryRecv(); ok {
			*msg = m
			return nil
		}
		ready := r.readySignals()
		if len(ready) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idlePoll):
				continue
			}
		}
		ch, cancel := merge(ready)
		select {
		case <-ctx.Done():
			cancel()
			return ctx.Err()
		case <-ch:
			cancel()
		case <-time.After(idlePoll):
			cancel()
		}
	}
}

// hasIn reports whether a Recv would currently return without blocking.
func (r *routerReader) hasIn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pipes {
		if p.Len() > 0 {
			return true
		}
	}
	return false
}

// routerWriter routes each Send by the identity carried in its first
// frame, forwarding the rest to that connection's pipe.
type routerWriter struct {
	ctx       context.Context
	mandatory *bool

	mu  sync.Mutex
	ids map[string]*Conn
	all map[*Conn]*Pipe
}

func newRouterWriter(ctx context.Context, mandatory *bool) *routerWriter {
	return &routerWriter{ctx: ctx, mandatory: mandatory, ids: make(map[string]*Conn), all: make(map[*Conn]*Pipe)}
}

func (w *routerWriter) Close() error {
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

func (w *routerWriter) addConn(c *Conn, hwm int) {
	p := NewPipe(hwm)
	w.mu.Lock()
	w.all[c] = p
	w.ids[c.Identity()] = c
	w.mu.Unlock()
	go pumpWrite(w.ctx, c, p)
}

func (w *routerWriter) rmConn(c *Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.all, c)
	delete(w.ids, c.Identity())
}

func (w *routerWriter) write(ctx context.Context, msg Msg) (bool, error) {
	if len(msg.Frames) == 0 {
		return false, newError("Send", EINVAL, nil)
	}
	id := string(msg.Frames[0])
	rest := msg.Frames[1:]

	w.mu.Lock()
	c, ok := w.ids[id]
	var p *Pipe
	if ok {
		p = w.all[c]
	}
	w.mu.Unlock()

	if !ok {
		if w.mandatory != nil && *w.mandatory {
			return true, newError("Send", EHOSTUNREACH, nil)
		}
		return true, nil // silently drop, per the non-mandatory default
	}

	out := Msg{Frames: rest, Type: msg.Type}
	for {
		if err := p.Push(out); err == nil {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-p.ReadyWrite():
		case <-time.After(idlePoll):
		}
	}
}

// hasOut reports whether a Send would currently queue without blocking
// for at least one attached peer.
func (w *routerWriter) hasOut() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.all {
		if p.hwm == 0 || p.Len() < p.hwm {
			return true
		}
	}
	return false
}

var (
	_ rpool  = (*routerReader)(nil)
	_ wpool  = (*routerWriter)(nil)
	_ Socket = (*RouterSocket)(nil)
)
