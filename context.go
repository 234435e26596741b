// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"sync"
	"time"
)

// Context is the top-level handle a process uses to create sockets and
// devices. It owns them via Own: Terminate asks every socket and device
// it created to shut down and blocks until they have, generalizing the
// reference implementation's ctx_t. It counts its live sockets against
// MAX_SOCKETS but keeps no I/O-thread pool: IO_THREADS is stored and
// returned by GetOption and has no other effect.
type Context struct {
	mu         sync.Mutex
	own        *Own
	ctx        context.Context
	cancel     context.CancelFunc
	linger     time.Duration
	ioThreads  int
	maxSockets int
	nsockets   int
	term       bool
	defaults   []Option
}

// defaultMaxSockets mirrors the reference implementation's ZMQ_MAX_SOCKETS
// default; a process rarely needs this many live sockets on one Context,
// so hitting it almost always indicates a socket leak rather than a
// legitimate need for more.
const defaultMaxSockets = 1023

// NewContext returns a Context ready to build sockets and devices.
// defaults, if given, are applied ahead of every socket-specific Option
// passed to a New* constructor built from this Context.
func NewContext(defaults ...Option) *Context {
	ctx, cancel := context.WithCancel(context.Background())
	return &Context{
		own:        NewOwn(nil),
		ctx:        ctx,
		cancel:     cancel,
		maxSockets: defaultMaxSockets,
		defaults:   defaults,
	}
}

// SetOption configures a context-wide option (IO_THREADS, MAX_SOCKETS).
func (c *Context) SetOption(name string, value interface{}) error {
	switch name {
	case OptionIOThreads:
		n, ok := value.(int)
		if !ok {
			return ErrBadProperty
		}
		c.mu.Lock()
		c.ioThreads = n
		c.mu.Unlock()
		return nil
	case OptionMaxSockets:
		n, ok := value.(int)
		if !ok {
			return ErrBadProperty
		}
		c.mu.Lock()
		c.maxSockets = n
		c.mu.Unlock()
		return nil
	default:
		return ErrBadProperty
	}
}

// GetOption retrieves a context-wide option previously set with SetOption.
func (c *Context) GetOption(name string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch name {
	case OptionIOThreads:
		return c.ioThreads, nil
	case OptionMaxSockets:
		return c.maxSockets, nil
	default:
		return nil, ErrBadProperty
	}
}

// WithLinger sets how long Terminate waits for a socket's queued
// outbound messages to drain before forcing it closed.
func (c *Context) WithLinger(linger time.Duration) *Context {
	c.mu.Lock()
	c.linger = linger
	c.mu.Unlock()
	return c
}

func (c *Context) opts(opts []Option) []Option {
	out := make([]Option, 0, len(c.defaults)+len(opts)+1)
	out = append(out, c.defaults...)
	out = append(out, opts...)
	out = append(out, WithLinger(c.linger))
	return out
}

// track registers a Terminator (a socket or device) as a child of this
// Context, so Terminate will ask it to shut down, and releases its
// MAX_SOCKETS slot once it reports done.
func (c *Context) track(t Terminator) {
	c.own.LaunchChild(t)
	go func() {
		<-t.done()
		c.mu.Lock()
		c.nsockets--
		c.mu.Unlock()
	}()
}

// acquireSocketSlot enforces MAX_SOCKETS, reporting EMTHREAD (the
// reference implementation's code for "too many open sockets") once the
// limit is hit.
func (c *Context) acquireSocketSlot() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nsockets >= c.maxSockets {
		return newError("NewSocket", EMTHREAD, nil)
	}
	c.nsockets++
	return nil
}

func (c *Context) releaseSocketSlot() {
	c.mu.Lock()
	c.nsockets--
	c.mu.Unlock()
}

// NewSocket builds a socket of the given type, owned by this Context.
func (c *Context) NewSocket(typ SocketType, opts ...Option) (Socket, error) {
	if err := c.acquireSocketSlot(); err != nil {
		return nil, err
	}

	opts = c.opts(opts)
	switch typ {
	case Req:
		s := NewReq(c.ctx, opts...)
		c.track(s.socket)
		return s, nil
	case Rep:
		s := NewRep(c.ctx, opts...)
		c.track(s.(*RepSocket).socket)
		return s, nil
	case Dealer:
		s := NewDealer(c.ctx, opts...)
		c.track(s.(*DealerSocket).socket)
		return s, nil
	case Router:
		s := NewRouter(c.ctx, opts...)
		c.track(s.(*RouterSocket).socket)
		return s, nil
	case Pub:
		s := NewPub(c.ctx, opts...)
		c.track(s.(*PubSocket).socket)
		return s, nil
	case Sub:
		s := NewSub(c.ctx, opts...)
		c.track(s.(*SubSocket).socket)
		return s, nil
	case XPub:
		s := NewXPub(c.ctx, opts...)
		c.track(s.(*XPubSocket).socket)
		return s, nil
	case XSub:
		s := NewXSub(c.ctx, opts...)
		c.track(s.(*XSubSocket).socket)
		return s, nil
	case Push:
		s := NewPush(c.ctx, opts...)
		c.track(s.(*PushSocket).socket)
		return s, nil
	case Pull:
		s := NewPull(c.ctx, opts...)
		c.track(s.(*PullSocket).socket)
		return s, nil
	case Pair:
		s := NewPair(c.ctx, opts...)
		c.track(s.(*PairSocket).socket)
		return s, nil
	default:
		c.releaseSocketSlot()
		return nil, newError("NewSocket", EINVAL, nil)
	}
}

// NewDevice builds a device owned by this Context. See NewQueueDevice,
// NewForwarderDevice and NewStreamerDevice for the three well-known
// frontend/backend pairings.
func (c *Context) NewDevice(front, back Socket, mode DeviceMode) *Device {
	d := NewDevice(c.ctx, front, back, mode)
	c.own.LaunchChild(d)
	return d
}

// Terminate asks every socket and device this Context owns to shut down
// and blocks until they have, or ctx is cancelled first. It is safe to
// call Terminate more than once.
func (c *Context) Terminate(ctx context.Context) error {
	c.mu.Lock()
	if c.term {
		c.mu.Unlock()
		return nil
	}
	c.term = true
	c.mu.Unlock()

	err := c.own.Terminate(ctx, c.linger)
	c.cancel()
	return err
}

// Done returns a channel closed once Terminate has completed.
func (c *Context) Done() <-chan struct{} {
	return c.own.done()
}
