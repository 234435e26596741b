// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"sync"
)

// Topics is an interface that wraps the basic Topics method.
type Topics interface {
	// Topics returns the sorted list of topics a socket is subscribed to.
	Topics() []string
}

// NewPub returns a new PUB ZeroMQ socket.
// The returned socket value is initially unbound.
func NewPub(ctx context.Context, opts ...Option) Socket {
	pub := &PubSocket{socket: newSocket(ctx, Pub, opts...)}
	pub.socket.w = newPubWriter(pub.socket.ctx)
	pub.socket.r = newSubCmdReader(pub.socket.ctx)
	return pub
}

// Pub is a PUB ZeroMQ socket: it broadcasts every Send to the subset of
// attached pipes whose peer has subscribed to a matching topic, and
// absorbs the subscribe/unsubscribe control frames XSUB peers send
// upstream instead of surfacing them to the user.
type PubSocket struct {
	*socket
}

// Recv is unsupported on a PUB socket.
func (*PubSocket) Recv() (Msg, error) {
	return Msg{}, newError("Recv", ENOTSUP, nil)
}

// Topics returns the sorted list of topics a socket is subscribed to.
func (pub *PubSocket) Topics() []string {
	return pub.socket.topics()
}

// pubWriter broadcasts to every attached pipe whose peer connection has
// subscribed to the message's topic prefix.
type pubWriter struct {
	ctx context.Context
	mu  sync.RWMutex
	all map[*Conn]*Pipe
}

func newPubWriter(ctx context.Context) *pubWriter {
	return &pubWriter{ctx: ctx, all: make(map[*Conn]*Pipe)}
}

func (w *pubWriter) Close() error {
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

func (w *pubWriter) addConn(c *Conn, hwm int) {
	p := NewPipe(hwm)
	w.mu.Lock()
	w.all[c] = p
	w.mu.Unlock()
	go pumpWrite(w.ctx, c, p)
}

func (w *pubWriter) rmConn(c *Conn) {
	w.mu.Lock()
	delete(w.all, c)
	w.mu.Unlock()
}

func (w *pubWriter) write(ctx context.Context, msg Msg) (bool, error) {
	topic := ""
	if len(msg.Frames) > 0 {
		topic = string(msg.Frames[0])
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	dropped := false
	for c, p := range w.all {
		if !c.subscribed(topic) {
			continue
		}
		// best-effort: a slow subscriber drops rather than blocks the publisher
		if err := p.Push(msg); err != nil {
			dropped = true
		}
	}
	return dropped, nil
}

// hasOut reports whether a Send would currently queue without blocking
// for at least one attached subscriber.
func (w *pubWriter) hasOut() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, p := range w.all {
		if p.hwm == 0 || p.Len() < p.hwm {
			return true
		}
	}
	return false
}

// subCmdReader absorbs the subscribe/unsubscribe control frames a peer
// sends upstream, applying them to the Conn's topic set instead of
// surfacing them through socket.Recv. Used by PUB.
type subCmdReader struct {
	ctx context.Context
	mu  sync.Mutex
	all map[*Conn]struct{}
}

func newSubCmdReader(ctx context.Context) *subCmdReader {
	return &subCmdReader{ctx: ctx, all: make(map[*Conn]struct{})}
}

func (r *subCmdReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for c := range r.all {
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (r *subCmdReader) addConn(c *Conn, hwm int) {
	r.mu.Lock()
	r.all[c] = struct{}{}
	r.mu.Unlock()
	go r.listen(c)
}

func (r *subCmdReader) rmConn(c *Conn) {
	r.mu.Lock()
	delete(r.all, c)
	r.mu.Unlock()
}

func (r *subCmdReader) read(ctx context.Context, msg *Msg) error {
	<-ctx.Done()
	return ctx.Err()
}

func (r *subCmdReader) listen(c *Conn) {
	for {
		msg, err := c.RecvMsg()
		if err != nil {
			return
		}
		c.subscribe(msg)
	}
}

var (
	_ rpool  = (*subCmdReader)(nil)
	_ wpool  = (*pubWriter)(nil)
	_ Socket = (*PubSocket)(nil)
	_ Topics = (*PubSocket)(nil)
)
