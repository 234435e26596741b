// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"testing"
	"time"
)

func TestPipePushPop(t *testing.T) {
	p := NewPipe(0)
	if err := p.Push(NewMsgString("one")); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	msg, ok := p.Pop()
	if !ok {
		t.Fatalf("expected a message")
	}
	if got, want := string(msg.Frames[0]), "one"; got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}

	if _, ok := p.Pop(); ok {
		t.Fatalf("expected Pop on an empty pipe to report ok=false")
	}
}

func TestPipeHWM(t *testing.T) {
	p := NewPipe(2)
	for i := 0; i < 2; i++ {
		if err := p.Push(NewMsgString("x")); err != nil {
			t.Fatalf("push %d: unexpected error: %+v", i, err)
		}
	}

	err := p.Push(NewMsgString("overflow"))
	if kind, ok := KindOf(err); !ok || kind != EAGAIN {
		t.Fatalf("expected EAGAIN at HWM, got %+v", err)
	}

	if _, ok := p.Pop(); !ok {
		t.Fatalf("expected a message to drain")
	}

	select {
	case <-p.ReadyWrite():
	case <-time.After(time.Second):
		t.Fatalf("ReadyWrite did not signal after draining below LWM")
	}

	if err := p.Push(NewMsgString("fits-again")); err != nil {
		t.Fatalf("unexpected error after drain: %+v", err)
	}
}

func TestPipeTerminateDelayed(t *testing.T) {
	p := NewPipe(1)
	if err := p.Push(NewMsgString("pending")); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	p.Terminate(true)
	if p.Terminated() {
		t.Fatalf("pipe must stay non-terminated while messages remain buffered")
	}

	if _, ok := p.Pop(); !ok {
		t.Fatalf("expected to drain the buffered message after Terminate")
	}
	if !p.Terminated() {
		t.Fatalf("pipe should be terminated once drained")
	}

	if err := p.Push(NewMsgString("too-late")); err == nil {
		t.Fatalf("expected Push after termination to fail")
	} else if kind, ok := KindOf(err); !ok || kind != ETERM {
		t.Fatalf("expected ETERM, got %+v", err)
	}
}

func TestPipeTerminateImmediate(t *testing.T) {
	p := NewPipe(1)
	if err := p.Push(NewMsgString("discarded")); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	p.Terminate(false)
	if !p.Terminated() {
		t.Fatalf("pipe should report terminated immediately without delay")
	}
	if _, ok := p.Pop(); ok {
		t.Fatalf("expected the buffered message to be discarded, not drained")
	}
}

func TestFairQueueRoundRobin(t *testing.T) {
	fq := newFairQueue()
	p1, p2 := NewPipe(0), NewPipe(0)
	fq.attach(p1)
	fq.attach(p2)

	p1.Push(NewMsgString("a1"))
	p2.Push(NewMsgString("b1"))
	p1.Push(NewMsgString("a2"))

	var got []string
	for i := 0; i < 3; i++ {
		msg, ok := fq.tryRecv()
		if !ok {
			t.Fatalf("tryRecv %d: expected a message", i)
		}
		got = append(got, string(msg.Frames[0]))
	}

	want := []string{"a1", "b1", "a2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: got=%q, want=%q (order %q)", i, got[i], want[i], got)
		}
	}
}

func TestLoadBalanceSkipsFullPipes(t *testing.T) {
	lb := newLoadBalance()
	full, open := NewPipe(1), NewPipe(1)
	full.Push(NewMsgString("already-full"))
	lb.attach(full)
	lb.attach(open)

	if !lb.trySend(NewMsgString("payload")) {
		t.Fatalf("expected trySend to succeed by skipping the full pipe")
	}

	if _, ok := open.Pop(); !ok {
		t.Fatalf("expected the payload to land on the open pipe")
	}
	if n := full.Len(); n != 1 {
		t.Fatalf("full pipe should be untouched: len=%d", n)
	}
}
