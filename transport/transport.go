// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport abstracts the network transports a socket can Dial or
// Listen on (tcp, ipc, inproc, ...).
package transport

import (
	"context"
	"net"
)

// SndBuf and RcvBuf mirror the reference implementation's
// ZMQ_SNDBUF/ZMQ_RCVBUF socket options: set from WithSNDBUF/WithRCVBUF,
// applied by tuneListener to every TCP listener opened from that point
// on. They have no effect outside Linux, where tuneListener is a no-op,
// and (like every setsockopt tuned via net.ListenConfig.Control) they are
// process-wide rather than per-socket, since Go only exposes the raw fd
// to tune at listen(2) time. A value of 0 leaves the OS default in place.
var (
	SndBuf = 0
	RcvBuf = 0
)

// Dialer is the subset of net.Dialer used by a Transport.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Transport is the zmq transport interface wrapping Dial and Listen.
type Transport interface {
	Dial(ctx context.Context, dialer Dialer, addr string) (net.Conn, error)
	Listen(ctx context.Context, addr string) (net.Listener, error)
	// Addr normalizes an endpoint's address portion (after "proto://")
	// into the form this transport's Dial/Listen expect.
	Addr(ep string) (string, error)
}

type netTransport struct {
	prot string
}

// New returns a new net-based transport for the given network (e.g. "tcp").
func New(network string) Transport {
	return netTransport{prot: network}
}

func (trans netTransport) Dial(ctx context.Context, dialer Dialer, addr string) (net.Conn, error) {
	return dialer.DialContext(ctx, trans.prot, addr)
}

func (trans netTransport) Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	lc.Control = tuneListener
	return lc.Listen(ctx, trans.prot, addr)
}

func (netTransport) Addr(ep string) (string, error) {
	return ep, nil
}

var _ Transport = (*netTransport)(nil)
