// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"testing"
	"time"
)

// fakeTerminator is a leaf Terminator with no children of its own: its
// Own completes as soon as it is told to terminate.
type fakeTerminator struct {
	own        *Own
	terminated bool
}

func newFakeTerminator() *fakeTerminator {
	f := &fakeTerminator{}
	f.own = NewOwn(func() error {
		f.terminated = true
		return nil
	})
	return f
}

func (f *fakeTerminator) mailbox() *Mailbox     { return f.own.mailbox() }
func (f *fakeTerminator) done() <-chan struct{} { return f.own.done() }

func TestOwnTerminateWaitsForChildren(t *testing.T) {
	own := NewOwn(nil)
	c1, c2 := newFakeTerminator(), newFakeTerminator()
	own.LaunchChild(c1)
	own.LaunchChild(c2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := own.Terminate(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	if !c1.terminated || !c2.terminated {
		t.Fatalf("expected both children to be terminated: c1=%v c2=%v", c1.terminated, c2.terminated)
	}

	select {
	case <-own.Done():
	default:
		t.Fatalf("expected Own.Done to be closed after Terminate")
	}
}

func TestOwnTerminateIsIdempotent(t *testing.T) {
	own := NewOwn(nil)
	c := newFakeTerminator()
	own.LaunchChild(c)

	ctx := context.Background()
	if err := own.Terminate(ctx, 0); err != nil {
		t.Fatalf("first Terminate: unexpected error: %+v", err)
	}
	if err := own.Terminate(ctx, 0); err != nil {
		t.Fatalf("second Terminate: unexpected error: %+v", err)
	}
}

func TestOwnTermChildRemovesOnlyThatChild(t *testing.T) {
	own := NewOwn(nil)
	c1, c2 := newFakeTerminator(), newFakeTerminator()
	own.LaunchChild(c1)
	own.LaunchChild(c2)

	own.TermChild(c1, 0)

	select {
	case <-c1.done():
	case <-time.After(time.Second):
		t.Fatalf("c1 did not report done after TermChild")
	}

	if !c1.terminated {
		t.Fatalf("expected c1 to be terminated")
	}
	if c2.terminated {
		t.Fatalf("TermChild must not affect other children")
	}
}

// hangingTerminator never completes its Own, simulating a child that
// ignores the termination request.
type hangingTerminator struct {
	mb     *Mailbox
	doneCh chan struct{}
}

func newHangingTerminator() *hangingTerminator {
	return &hangingTerminator{mb: newMailbox(), doneCh: make(chan struct{})}
}

func (h *hangingTerminator) mailbox() *Mailbox     { return h.mb }
func (h *hangingTerminator) done() <-chan struct{} { return h.doneCh }

func TestOwnTerminateRespectsContextCancellation(t *testing.T) {
	own := NewOwn(nil)
	own.LaunchChild(newHangingTerminator())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := own.Terminate(ctx, 0); err == nil {
		t.Fatalf("expected Terminate to report the context deadline")
	}
}
