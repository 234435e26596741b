// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
)

// NewXSub returns a new XSUB ZeroMQ socket.
// The returned socket value is initially unbound.
func NewXSub(ctx context.Context, opts ...Option) Socket {
	return &XSubSocket{socket: newSocket(ctx, XSub, opts...)}
}

// XSub is an XSUB ZeroMQ socket. Unlike Sub, it does not maintain a local
// topic filter or intercept subscribe/unsubscribe options: the caller
// sends the raw "\x01topic"/"\x00topic" control frames itself via Send,
// and every message from upstream is handed back unfiltered by Recv.
type XSubSocket struct {
	*socket
}

var (
	_ Socket = (*XSubSocket)(nil)
)
