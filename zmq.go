// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zmq implements a brokerless, ZMTP-compatible message-passing
// library: REQ/REP, DEALER/ROUTER, PUB/SUB, XPUB/XSUB, PUSH/PULL and PAIR
// sockets exchanging messages over TCP, IPC, in-process, or any other
// registered transport, without a central broker process.
//
// For more information on the wire protocol, see
// https://rfc.zeromq.org/spec:23/ZMTP/.
package zmq

import "net"

// Socket represents a ZeroMQ socket.
type Socket interface {
	// Close closes the open Socket.
	Close() error

	// Send puts the message on the outbound send queue.
	// Send blocks until the message can be queued or the send deadline expires.
	Send(msg Msg) error

	// SendMulti puts the message on the outbound send queue as a multipart
	// message. SendMulti blocks until the message can be queued or the send
	// deadline expires.
	SendMulti(msg Msg) error

	// Recv receives a complete message.
	Recv() (Msg, error)

	// Listen connects a local endpoint to the Socket.
	Listen(ep string) error

	// Dial connects a remote endpoint to the Socket.
	Dial(ep string) error

	// Type returns the type of this Socket (PUB, SUB, ...).
	Type() SocketType

	// Addr returns the listener's address, or nil if the socket isn't a
	// listener.
	Addr() net.Addr

	// GetOption is used to retrieve an option for a socket.
	GetOption(name string) (interface{}, error)

	// SetOption is used to set an option for a socket.
	SetOption(name string, value interface{}) error
}
