// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"sync"
)

// NewXPub returns a new XPUB ZeroMQ socket.
// The returned socket value is initially unbound.
func NewXPub(ctx context.Context, opts ...Option) Socket {
	xpub := &XPubSocket{socket: newSocket(ctx, XPub, opts...)}
	xpub.socket.w = newPubWriter(xpub.socket.ctx)
	xpub.socket.r = newXPubReader(xpub.socket.ctx, xpub.socket.xpubVerbose)
	return xpub
}

// XPub is an XPUB ZeroMQ socket: like Pub, it broadcasts Send to
// subscribed pipes, but unlike Pub it surfaces subscribe/unsubscribe
// control frames to the user via Recv instead of absorbing them. By
// default only the first subscribe and last unsubscribe for a given
// topic are delivered; WithXPubVerbose(true) delivers every one.
type XPubSocket struct {
	*socket
}

// Topics returns the sorted list of topics currently subscribed to by at
// least one attached peer.
func (xpub *XPubSocket) Topics() []string {
	return xpub.socket.topics()
}

// xpubReader tracks, per topic, how many attached peers are currently
// subscribed, so a non-verbose XPUB can collapse duplicate notifications.
type xpubReader struct {
	ctx     context.Context
	verbose bool

	mu      sync.Mutex
	refs    map[string]int
	all     map[*Conn]struct{}
	notices chan Msg
}

func newXPubReader(ctx context.Context, verbose bool) *xpubReader {
	return &xpubReader{
		ctx:     ctx,
		verbose: verbose,
		refs:    make(map[string]int),
		all:     make(map[*Conn]struct{}),
		notices: make(chan Msg, 64),
	}
}

func (r *xpubReader) Close() error {
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

func (r *xpubReader) addConn(c *Conn, hwm int) {
	r.mu.Lock()
	r.all[c] = struct{}{}
	r.mu.Unlock()
	go r.listen(c)
}

func (r *xpubReader) rmConn(c *Conn) {
	r.mu.Lock()
	delete(r.all, c)
	r.mu.Unlock()
}

// hasIn reports whether a Recv would currently return without blocking.
func (r *xpubReader) hasIn() bool {
	return len(r.notices) > 0
}

func (r *xpubReader) read(ctx context.Context, msg *Msg) error {
	select {
	case *msg = <-r.notices:
		return msg.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *xpubReader) listen(c *Conn) {
	for {
		msg, err := c.RecvMsg()
		if err != nil {
			return
		}
		if len(msg.Frames) != 1 || len(msg.Frames[0]) == 0 {
			continue
		}
		c.subscribe(msg)

		frame := msg.Frames[0]
		topic := string(frame[1:])
		notify := r.verbose
		r.mu.Lock()
		switch frame[0] {
		case 1:
			r.refs[topic]++
			if r.refs[topic] == 1 {
				notify = true
			}
		case 0:
			if r.refs[topic] > 0 {
				r.refs[topic]--
			}
			if r.refs[topic] == 0 {
				notify = true
			}
		}
		r.mu.Unlock()

		if notify {
			select {
			case r.notices <- msg:
			default: // drop if the user isn't draining fast enough
			}
		}
	}
}

var (
	_ rpool  = (*xpubReader)(nil)
	_ Socket = (*XPubSocket)(nil)
	_ Topics = (*XPubSocket)(nil)
)
