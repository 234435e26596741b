// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"sync"
	"time"
)

// repState tracks where a REP socket sits in the recv-request/send-reply
// cycle the ZMTP REQ/REP pattern enforces.
type repState int

const (
	repStateRecv repState = iota
	repStateSend
)

// NewRep returns a new REP ZeroMQ socket.
// The returned socket value is initially unbound.
func NewRep(ctx context.Context, opts ...Option) Socket {
	rep := &RepSocket{socket: newSocket(ctx, Rep, opts...)}
	rep.socket.r = newRepReader(rep.socket.ctx)
	return rep
}

// Rep is a REP ZeroMQ socket. Each Recv accumulates the routing labels up
// to and including the empty delimiter frame that prefixed the request,
// and the matching Send replays that prefix ahead of the reply, routed
// back to the connection the request arrived on.
type RepSocket struct {
	*socket

	mu     sync.Mutex
	state  repState
	conn   *Conn
	prefix [][]byte
}

// Recv returns the next request's body, stripping and remembering the
// routing prefix (every frame up to and including the empty delimiter)
// so the matching Send can replay it. A request with no delimiter frame
// is malformed and is silently discarded; Recv keeps waiting.
func (s *RepSocket) Recv() (Msg, error) {
	s.mu.Lock()
	if s.state != repStateRecv {
		s.mu.Unlock()
		return Msg{}, newError("Recv", EFSM, nil)
	}
	s.mu.Unlock()

	r := s.socket.r.(*repReader)
	for {
		var msg Msg
		ctx, cancel := context.WithTimeout(s.socket.ctx, s.socket.rcvTimeout)
		err := r.read(ctx, &msg)
		cancel()
		if err != nil {
			return Msg{}, err
		}

		i := 0
		for i < len(msg.Frames) && len(msg.Frames[i]) != 0 {
			i++
		}
		if i == len(msg.Frames) {
			continue // malformed backtrace: no delimiter, roll back and keep receiving
		}

		prefix := append([][]byte(nil), msg.Frames[:i+1]...)
		body := msg.Frames[i+1:]

		s.mu.Lock()
		s.state = repStateSend
		s.conn = r.lastConn()
		s.prefix = prefix
		s.mu.Unlock()

		return Msg{Frames: body, Type: msg.Type}, nil
	}
}

// Send replies to whichever peer the last Recv's request came from,
// replaying the routing prefix it captured. Calling Send before Recv (or
// twice in a row) fails with EFSM.
func (s *RepSocket) Send(msg Msg) error {
	s.mu.Lock()
	if s.state != repStateSend {
		s.mu.Unlock()
		return newError("Send", EFSM, nil)
	}
	conn, prefix := s.conn, s.prefix
	s.state = repStateRecv
	s.conn, s.prefix = nil, nil
	s.mu.Unlock()

	out := Msg{Frames: append(append([][]byte(nil), prefix...), msg.Frames...), Type: msg.Type}
	return conn.SendMsg(out)
}

// SendMulti behaves like Send.
func (s *RepSocket) SendMulti(msg Msg) error {
	return s.Send(msg)
}

// repReader fair-queues across attached connections like qreader, but
// additionally remembers which Conn produced the most recently returned
// message, so Rep.Send knows where to route the reply.
type repReader struct {
	ctx context.Context

	mu    sync.Mutex
	pipes map[*Conn]*Pipe
	order []*Conn
	cur   int
	last  *Conn
}

func newRepReader(ctx context.Context) *repReader {
	return &repReader{ctx: ctx, pipes: make(map[*Conn]*Pipe)}
}

func (r *repReader) Close() error {
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

func (r *repReader) addConn(c *Conn, hwm int) {
	p := NewPipe(hwm)
	r.mu.Lock()
	r.pipes[c] = p
	r.order = append(r.order, c)
	r.mu.Unlock()
	go pumpRead(r.ctx, c, p)
}

func (r *repReader) rmConn(c *Conn) {
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

func (r *repReader) lastConn() *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *repReader) tryRecv() (Msg, *Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.order)
	for i := 0; i < n; i++ {
		idx := (r.cur + i) % n
		c := r.order[idx]
		if msg, ok := r.pipes[c].Pop(); ok {
			r.cur = (idx + 1) % n
			r.last = c
			return msg, c, true
		}
	}
	return Msg{}, nil, false
}

// hasIn reports whether a Recv would currently return without blocking.
func (r *repReader) hasIn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pipes {
		if p.Len() > 0 {
			return true
		}
	}
	return false
}

func (r *repReader) readySignals() []<-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]<-chan struct{}, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, r.pipes[c].ReadyRead())
	}
	return out
}

func (r *repReader) read(ctx context.Context, msg *Msg) error {
	for {
		if m, _, ok := r.tryRecv(); ok {
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
		}
	}
}

var (
	_ rpool  = (*repReader)(nil)
	_ Socket = (*RepSocket)(nil)
)
