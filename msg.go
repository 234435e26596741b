// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"bytes"
	"fmt"
	"sync/atomic"
)

// MsgType distinguishes user-data messages from protocol command messages
// on the wire.
type MsgType byte

const (
	UsrMsg MsgType = 0
	CmdMsg MsgType = 1
)

// inlineCap is the largest payload size a Frame stores directly,
// avoiding the allocation and refcount bookkeeping of a shared buffer.
const inlineCap = 29

// sharedBuf is a heap-backed frame payload shared by zero or more Frame
// values. refs reaches zero exactly when the last referencing Frame is
// dropped via Frame.Close, at which point the backing array may be reused.
type sharedBuf struct {
	data []byte
	refs atomic.Int32
}

// Frame is a single ZMTP wire frame with copy-on-write semantics: Copy
// shares the backing storage and bumps a refcount, while Clone deep-copies
// it. Small frames are stored inline and never allocate a sharedBuf.
type Frame struct {
	small  [inlineCap]byte
	slen   int8
	shared *sharedBuf
	more   bool
}

// NewFrame builds a Frame from p, copying it into the inline buffer when it
// is small enough, or wrapping it in a refcounted sharedBuf otherwise.
func NewFrame(p []byte) Frame {
	var f Frame
	if len(p) <= inlineCap {
		copy(f.small[:], p)
		f.slen = int8(len(p))
		return f
	}
	sb := &sharedBuf{data: p}
	sb.refs.Store(1)
	f.shared = sb
	f.slen = -1
	return f
}

// Bytes returns the frame's payload. The returned slice must not be
// retained past a call to Close if the frame may still be shared.
func (f Frame) Bytes() []byte {
	if f.shared != nil {
		return f.shared.data
	}
	return f.small[:f.slen]
}

func (f Frame) Len() int {
	if f.shared != nil {
		return len(f.shared.data)
	}
	return int(f.slen)
}

// Copy returns a shallow copy of f: for large frames this bumps the
// refcount on the shared buffer instead of copying bytes.
func (f Frame) Copy() Frame {
	if f.shared != nil {
		f.shared.refs.Add(1)
	}
	return f
}

// Clone returns a deep copy of f, always allocating fresh storage.
func (f Frame) Clone() Frame {
	return NewFrame(append([]byte(nil), f.Bytes()...))
}

// Move transfers ownership of f's storage to the returned Frame and zeroes
// f, so the caller can no longer observe or release the payload.
func (f *Frame) Move() Frame {
	o := *f
	*f = Frame{}
	return o
}

// Close releases f's reference on its shared buffer, if any.
func (f *Frame) Close() {
	if f.shared == nil {
		return
	}
	f.shared.refs.Add(-1)
	f.shared = nil
	f.slen = 0
}

// Msg is a ZMTP message, possibly composed of multiple frames.
type Msg struct {
	Frames    [][]byte
	Type      MsgType
	multipart bool
	err       error
}

func NewMsg(frame []byte) Msg {
	return Msg{Frames: [][]byte{frame}}
}

func NewMsgFrom(frames ...[]byte) Msg {
	return Msg{Frames: frames}
}

func NewMsgString(frame string) Msg {
	return NewMsg([]byte(frame))
}

func NewMsgFromString(frames []string) Msg {
	msg := Msg{Frames: make([][]byte, len(frames))}
	for i, frame := range frames {
		msg.Frames[i] = append(msg.Frames[i], []byte(frame)...)
	}
	return msg
}

func (msg Msg) isCmd() bool {
	return msg.Type == CmdMsg
}

func (msg Msg) Err() error {
	return msg.err
}

// Bytes returns the concatenated content of all its frames.
func (msg Msg) Bytes() []byte {
	buf := make([]byte, 0, msg.size())
	for _, frame := range msg.Frames {
		buf = append(buf, frame...)
	}
	return buf
}

func (msg Msg) size() int {
	n := 0
	for _, frame := range msg.Frames {
		n += len(frame)
	}
	return n
}

func (msg Msg) String() string {
	buf := new(bytes.Buffer)
	buf.WriteString("Msg{Frames:{")
	for i, frame := range msg.Frames {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(buf, "%q", frame)
	}
	buf.WriteString("}}")
	return buf.String()
}

// Clone returns a deep copy of msg: every frame's bytes are duplicated.
func (msg Msg) Clone() Msg {
	o := Msg{Frames: make([][]byte, len(msg.Frames)), Type: msg.Type, multipart: msg.multipart}
	for i, frame := range msg.Frames {
		o.Frames[i] = append([]byte(nil), frame...)
	}
	return o
}
