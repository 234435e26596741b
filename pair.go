// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
)

// NewPair returns a new PAIR ZeroMQ socket.
// The returned socket value is initially unbound.
func NewPair(ctx context.Context, opts ...Option) Socket {
	return &PairSocket{socket: newSocket(ctx, Pair, opts...)}
}

// Pair is a PAIR ZeroMQ socket: a bidirectional, unrouted connection to
// one peer. A second connection is not refused: Send copies each message
// to every attached connection and Recv fair-queues across all of them.
type PairSocket struct {
	*socket
}

var (
	_ Socket = (*PairSocket)(nil)
)
