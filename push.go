// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
)

// NewPush returns a new PUSH ZeroMQ socket.
// The returned socket value is initially unbound.
func NewPush(ctx context.Context, opts ...Option) Socket {
	push := &PushSocket{socket: newSocket(ctx, Push, opts...)}
	push.socket.w = newLBWriter(push.socket.ctx)
	return push
}

// Push is a PUSH ZeroMQ socket. It load-balances Send across its attached
// pipes and does not support Recv.
type PushSocket struct {
	*socket
}

// Recv is unsupported on a PUSH socket.
func (*PushSocket) Recv() (Msg, error) {
	return Msg{}, newError("Recv", ENOTSUP, nil)
}

var (
	_ Socket = (*PushSocket)(nil)
)
