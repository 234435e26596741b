// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"bytes"
	"testing"
)

func TestFrameInline(t *testing.T) {
	f := NewFrame([]byte("hello"))
	if got, want := f.Bytes(), []byte("hello"); !bytes.Equal(got, want) {
		t.Fatalf("got=%q, want=%q", got, want)
	}
	if got, want := f.Len(), 5; got != want {
		t.Fatalf("got=%d, want=%d", got, want)
	}
}

func TestFrameShared(t *testing.T) {
	big := bytes.Repeat([]byte("x"), inlineCap+1)
	f := NewFrame(big)
	if f.shared == nil {
		t.Fatalf("expected a frame larger than inlineCap to allocate a sharedBuf")
	}

	cp := f.Copy()
	if got, want := f.shared.refs.Load(), int32(2); got != want {
		t.Fatalf("Copy did not bump refcount: got=%d, want=%d", got, want)
	}

	cp.Close()
	if got, want := f.shared.refs.Load(), int32(1); got != want {
		t.Fatalf("Close on the copy did not drop refcount: got=%d, want=%d", got, want)
	}
}

func TestFrameClone(t *testing.T) {
	big := bytes.Repeat([]byte("y"), inlineCap+1)
	f := NewFrame(big)
	clone := f.Clone()

	if !bytes.Equal(f.Bytes(), clone.Bytes()) {
		t.Fatalf("clone payload mismatch: got=%q, want=%q", clone.Bytes(), f.Bytes())
	}
	if f.shared == clone.shared {
		t.Fatalf("Clone must not share storage with the original")
	}
}

func TestFrameMove(t *testing.T) {
	f := NewFrame([]byte("move-me"))
	moved := f.Move()

	if got, want := moved.Bytes(), []byte("move-me"); !bytes.Equal(got, want) {
		t.Fatalf("got=%q, want=%q", got, want)
	}
	if f.Len() != 0 {
		t.Fatalf("Move did not zero the source frame: len=%d", f.Len())
	}
}

func TestMsgBytesAndClone(t *testing.T) {
	msg := NewMsgFrom([]byte("foo"), []byte("bar"))
	if got, want := msg.Bytes(), []byte("foobar"); !bytes.Equal(got, want) {
		t.Fatalf("got=%q, want=%q", got, want)
	}

	clone := msg.Clone()
	clone.Frames[0][0] = 'F'
	if msg.Frames[0][0] == 'F' {
		t.Fatalf("Clone must deep-copy frame storage")
	}
}

func TestMsgFromString(t *testing.T) {
	msg := NewMsgFromString([]string{"a", "b", "c"})
	if got, want := len(msg.Frames), 3; got != want {
		t.Fatalf("got=%d frames, want=%d", got, want)
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := string(msg.Frames[i]); got != want {
			t.Fatalf("frame[%d]: got=%q, want=%q", i, got, want)
		}
	}
}
