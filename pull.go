// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
)

// NewPull returns a new PULL ZeroMQ socket.
// The returned socket value is initially unbound.
func NewPull(ctx context.Context, opts ...Option) Socket {
	pull := &PullSocket{socket: newSocket(ctx, Pull, opts...)}
	pull.socket.w = nil
	return pull
}

// Pull is a PULL ZeroMQ socket. It fair-queues Recv across its attached
// pipes and does not support Send.
type PullSocket struct {
	*socket
}

// Send is unsupported on a PULL socket.
func (*PullSocket) Send(msg Msg) error {
	return newError("Send", ENOTSUP, nil)
}

// SendMulti is unsupported on a PULL socket.
func (*PullSocket) SendMulti(msg Msg) error {
	return newError("Send", ENOTSUP, nil)
}

var (
	_ Socket = (*PullSocket)(nil)
)
