// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"log"
	"time"

	"github.com/wireq/zmq/transport"
)

// Option configures some aspect of a ZeroMQ socket.
// (e.g. SocketIdentity, Security, HWM, ...)
type Option func(s *socket)

// WithID configures a ZeroMQ socket identity.
func WithID(id SocketIdentity) Option {
	return func(s *socket) {
		s.id = id
	}
}

// WithSecurity configures a ZeroMQ socket to use the given security mechanism.
// If the security mechanism is nil, the NULL mechanism is used.
func WithSecurity(sec Security) Option {
	return func(s *socket) {
		s.sec = sec
	}
}

// WithDialerRetry configures the time to wait before two failed attempts
// at dialing an endpoint.
func WithDialerRetry(retry time.Duration) Option {
	return func(s *socket) {
		s.retry = retry
	}
}

// WithDialerTimeout sets the maximum amount of time a dial will wait
// for a connect to complete.
func WithDialerTimeout(timeout time.Duration) Option {
	return func(s *socket) {
		s.dialer.Timeout = timeout
	}
}

// WithLogger sets a dedicated log.Logger for the socket.
func WithLogger(msg *log.Logger) Option {
	return func(s *socket) {
		s.log = msg
	}
}

// WithDialerMaxRetries configures the maximum number of retries
// when dialing an endpoint (-1 means infinite retries).
func WithDialerMaxRetries(maxRetries int) Option {
	return func(s *socket) {
		s.maxRetries = maxRetries
	}
}

// WithAutomaticReconnect allows to configure a socket to automatically
// reconnect on connection loss.
func WithAutomaticReconnect(automaticReconnect bool) Option {
	return func(s *socket) {
		s.autoReconnect = automaticReconnect
	}
}

// WithHWM sets the high-water mark applied to every pipe the socket
// attaches to a connection, in both directions. A value of zero means
// unbounded. The default is defaultHWM.
func WithHWM(hwm int) Option {
	return func(s *socket) {
		s.hwm = hwm
	}
}

// WithSendTimeout bounds how long Send blocks; when the bound expires Send
// returns context.DeadlineExceeded.
func WithSendTimeout(timeout time.Duration) Option {
	return func(s *socket) {
		s.sndTimeout = timeout
	}
}

// WithRecvTimeout bounds how long Recv blocks; when the bound expires Recv
// returns context.DeadlineExceeded.
func WithRecvTimeout(timeout time.Duration) Option {
	return func(s *socket) {
		s.rcvTimeout = timeout
	}
}

// WithLinger sets how long Close waits for queued outbound messages to
// drain before tearing the socket's connections down. Only sockets that
// send through the shared pipe pool (PUSH, REQ, DEALER, PAIR, SUB, XSUB)
// wait; PUB, XPUB and ROUTER queues and REP replies are not waited for.
func WithLinger(linger time.Duration) Option {
	return func(s *socket) {
		s.linger = linger
	}
}

// WithRouterMandatory makes a ROUTER socket's Send fail with EHOSTUNREACH
// instead of silently dropping the message when the addressed peer is not
// connected. It has no effect on other socket types.
func WithRouterMandatory(mandatory bool) Option {
	return func(s *socket) {
		s.routerMandatory = mandatory
	}
}

// WithXPubVerbose makes an XPUB socket pass every subscribe/unsubscribe
// message upstream, including duplicates, rather than only the first
// subscriber and last unsubscriber for a given topic.
func WithXPubVerbose(verbose bool) Option {
	return func(s *socket) {
		s.xpubVerbose = verbose
	}
}

// WithMetrics attaches a metrics recorder that the socket reports its
// sent, received and dropped message counts, connection count and receive
// queue depth to. A nil recorder disables metrics (the default).
func WithMetrics(m *SocketMetrics) Option {
	return func(s *socket) {
		s.metrics = m
	}
}

// WithSNDBUF sets the kernel socket send buffer size (SO_SNDBUF) applied
// to every TCP listener this process opens from this point on, mirroring
// ZMQ_SNDBUF. Like the reference implementation's socket options it is a
// process-wide tuning knob rather than a per-connection one: Go hands back
// an fd to tune only at listen(2) time, via transport.SndBuf, not per
// accepted connection. A value of 0 leaves the OS default in place. Linux
// only; a no-op elsewhere.
func WithSNDBUF(n int) Option {
	return func(s *socket) {
		transport.SndBuf = n
	}
}

// WithRCVBUF sets the kernel socket receive buffer size (SO_RCVBUF)
// applied to every TCP listener this process opens from this point on,
// mirroring ZMQ_RCVBUF. See WithSNDBUF for the same process-wide caveat.
// Linux only; a no-op elsewhere.
func WithRCVBUF(n int) Option {
	return func(s *socket) {
		transport.RcvBuf = n
	}
}

const (
	OptionSubscribe   = "SUBSCRIBE"
	OptionUnsubscribe = "UNSUBSCRIBE"
	OptionHWM         = "HWM"

	// OptionIOThreads configures a Context's ZMQ_IO_THREADS equivalent.
	// It is accepted but otherwise a no-op: Go's own scheduler already
	// multiplexes every socket's goroutines across the available OS
	// threads, so there is no fixed-size I/O thread pool to size here.
	OptionIOThreads = "IO_THREADS"
	// OptionMaxSockets configures a Context's ZMQ_MAX_SOCKETS equivalent:
	// NewSocket fails with EMTHREAD once this many sockets created by the
	// Context are simultaneously open.
	OptionMaxSockets = "MAX_SOCKETS"
)
