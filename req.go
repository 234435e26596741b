// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"sync"
)

// reqState tracks where a REQ socket sits in the send-request/recv-reply
// cycle the ZMTP REQ/REP pattern enforces.
type reqState int

const (
	reqStateSend reqState = iota
	reqStateRecv
)

// NewReq returns a new REQ ZeroMQ socket.
// The returned socket value is initially unbound.
func NewReq(ctx context.Context, opts ...Option) *ReqSocket {
	req := &ReqSocket{socket: newSocket(ctx, Req, opts...)}
	req.socket.w = newLBWriter(req.socket.ctx)
	return req
}

// Req is a REQ ZeroMQ socket. A REQ socket strictly alternates Send and
// Recv: each Send prepends an empty delimiter frame marking the bottom of
// the backtrace stack, and the matching Recv strips leading frames up to
// and including the delimiter reply.
type ReqSocket struct {
	*socket

	mu    sync.Mutex
	state reqState
}

// Send transitions the socket from send-request to recv-reply. Calling
// Send while a reply is still outstanding fails with EFSM.
func (s *ReqSocket) Send(msg Msg) error {
	s.mu.Lock()
	if s.state != reqStateSend {
		s.mu.Unlock()
		return newError("Send", EFSM, nil)
	}
	s.state = reqStateRecv
	s.mu.Unlock()

	out := Msg{Frames: append([][]byte{nil}, msg.Frames...), Type: msg.Type, multipart: true}
	if err := s.socket.Send(out); err != nil {
		s.mu.Lock()
		s.state = reqStateSend
		s.mu.Unlock()
		return err
	}
	return nil
}

// SendMulti behaves like Send but always frames the payload as a
// multipart message.
func (s *ReqSocket) SendMulti(msg Msg) error {
	msg.multipart = true
	return s.Send(msg)
}

// Recv returns the next reply, stripping every frame up to and including
// the first empty delimiter frame. Calling Recv before a request has been sent fails with EFSM.
func (s *ReqSocket) Recv() (Msg, error) {
	s.mu.Lock()
	if s.state != reqStateRecv {
		s.mu.Unlock()
		return Msg{}, newError("Recv", EFSM, nil)
	}
	s.mu.Unlock()

	msg, err := s.socket.Recv()
	if err != nil {
		return msg, err
	}

	i := 0
	for i < len(msg.Frames) && len(msg.Frames[i]) != 0 {
		i++
	}
	if i < len(msg.Frames) {
		msg.Frames = msg.Frames[i+1:]
	}

	s.mu.Lock()
	s.state = reqStateSend
	s.mu.Unlock()
	return msg, nil
}

var (
	_ Socket = (*ReqSocket)(nil)
)
