// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
)

// NewDealer returns a new DEALER ZeroMQ socket.
// The returned socket value is initially unbound.
func NewDealer(ctx context.Context, opts ...Option) Socket {
	dealer := &DealerSocket{socket: newSocket(ctx, Dealer, opts...)}
	dealer.socket.w = newLBWriter(dealer.socket.ctx)
	return dealer
}

// Dealer is a DEALER ZeroMQ socket: an unrestricted, asynchronous REQ.
// Unlike Req/Rep it injects no delimiter frame and enforces no send/recv
// alternation. Send load-balances across attached pipes; Recv fair-queues.
type DealerSocket struct {
	*socket
}

var (
	_ Socket = (*DealerSocket)(nil)
)
