// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/wireq/zmq"
	"golang.org/x/sync/errgroup"
)

// TestPollerReceiveReady dispatches a ReceiveReady callback once a PULL
// socket actually has a message queued, and never calls it while the
// socket is empty.
func TestPollerReceiveReady(t *testing.T) {
	ctx, timeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeout()

	ep := tcpEndpoint(t)

	push := zmq.NewPush(ctx, zmq.WithLogger(zmq.Devnull))
	defer push.Close()
	pull := zmq.NewPull(ctx, zmq.WithLogger(zmq.Devnull))
	defer pull.Close()

	if err := push.Listen(ep); err != nil {
		t.Fatalf("could not listen: %+v", err)
	}
	if err := pull.Dial(ep); err != nil {
		t.Fatalf("could not dial: %+v", err)
	}
	time.Sleep(100 * time.Millisecond)

	var got int32
	var gotOnce sync.Once
	done := make(chan struct{})

	poller := zmq.NewPoller()
	poller.Add(pull, zmq.PollIn, func(sck zmq.Socket, ev zmq.PollEvent) {
		if ev&zmq.PollIn == 0 {
			return
		}
		msg, err := sck.Recv()
		if err != nil {
			t.Errorf("could not recv: %+v", err)
			return
		}
		if string(msg.Frames[0]) != "hello" {
			t.Errorf("got %q, want %q", msg.Frames[0], "hello")
		}
		atomic.AddInt32(&got, 1)
		gotOnce.Do(func() { close(done) })
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var grp errgroup.Group
	grp.Go(func() error {
		return poller.Run(runCtx)
	})

	if err := push.Send(zmq.NewMsgString("hello")); err != nil {
		t.Fatalf("could not send: %+v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("ReceiveReady callback never fired")
	}

	poller.StopWait()
	if err := grp.Wait(); err != nil {
		t.Fatalf("Run returned error: %+v", err)
	}

	if atomic.LoadInt32(&got) != 1 {
		t.Fatalf("got %d deliveries, want 1", got)
	}
}

// TestPollerSendReadyAndBalance exercises the poller against a real
// PUSH/PULL balance: every message published while the PULL side is
// registered must be delivered exactly once, with SendReady gating the
// publisher so it never blocks inside a poll callback.
func TestPollerSendReadyAndBalance(t *testing.T) {
	ctx, timeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeout()

	const nMsgs = 50

	ep := tcpEndpoint(t)

	push := zmq.NewPush(ctx, zmq.WithLogger(zmq.Devnull), zmq.WithHWM(4))
	defer push.Close()
	pull := zmq.NewPull(ctx, zmq.WithLogger(zmq.Devnull), zmq.WithHWM(4))
	defer pull.Close()

	if err := push.Listen(ep); err != nil {
		t.Fatalf("could not listen: %+v", err)
	}
	if err := pull.Dial(ep); err != nil {
		t.Fatalf("could not dial: %+v", err)
	}
	time.Sleep(100 * time.Millisecond)

	recvPoller := zmq.NewPoller()
	var mu sync.Mutex
	seen := make(map[int]bool)
	recvDone := make(chan struct{})

	recvPoller.Add(pull, zmq.PollIn, func(sck zmq.Socket, ev zmq.PollEvent) {
		msg, err := sck.Recv()
		if err != nil {
			return
		}
		n, err := strconv.Atoi(string(msg.Frames[0]))
		if err != nil {
			t.Errorf("bad payload %q", msg.Frames[0])
			return
		}
		mu.Lock()
		seen[n] = true
		n = len(seen)
		mu.Unlock()
		if n == nMsgs {
			close(recvDone)
		}
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var grp errgroup.Group
	grp.Go(func() error {
		return recvPoller.Run(runCtx)
	})

	sendPoller := zmq.NewPoller()
	sendPoller.Add(push, zmq.PollOut, nil)
	for i := 0; i < nMsgs; i++ {
		if _, err := sendPoller.Poll(ctx, time.Second); err != nil {
			t.Fatalf("push never became SendReady: %+v", err)
		}
		if err := push.Send(zmq.NewMsgString(strconv.Itoa(i))); err != nil {
			t.Fatalf("could not send %d: %+v", i, err)
		}
	}

	select {
	case <-recvDone:
	case <-time.After(5 * time.Second):
		t.Fatalf("did not receive all %d messages, got %d", nMsgs, len(seen))
	}

	recvPoller.StopWait()
	if err := grp.Wait(); err != nil {
		t.Fatalf("Run returned error: %+v", err)
	}
}

// TestPollerRunRespectsContext confirms Run returns the context's error
// once the context is cancelled, rather than hanging forever.
func TestPollerRunRespectsContext(t *testing.T) {
	poller := zmq.NewPoller()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := poller.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got error %v, want context.DeadlineExceeded", err)
	}
}

// TestPollerStopWait confirms StopWait blocks until a running Run loop
// has actually exited, and is a harmless no-op when nothing is running.
func TestPollerStopWait(t *testing.T) {
	poller := zmq.NewPoller()
	poller.StopWait() // no-op: nothing running yet

	var running int32
	done := make(chan struct{})
	go func() {
		atomic.StoreInt32(&running, 1)
		_ = poller.Run(context.Background())
		atomic.StoreInt32(&running, 0)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	poller.StopWait()

	select {
	case <-done:
	default:
		t.Fatalf("StopWait returned before Run's loop exited")
	}
	if atomic.LoadInt32(&running) != 0 {
		t.Fatalf("Run loop still marked running after StopWait")
	}
}

// TestPollerTimer confirms AddTimer's callback fires on its own, even
// with no socket registered, driven by Run's tickless deadline.
func TestPollerTimer(t *testing.T) {
	poller := zmq.NewPoller()

	fired := make(chan struct{})
	poller.AddTimer(10*time.Millisecond, func() { close(fired) })

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	var grp errgroup.Group
	grp.Go(func() error { return poller.Run(runCtx) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never fired")
	}

	poller.StopWait()
	if err := grp.Wait(); err != nil {
		t.Fatalf("Run returned error: %+v", err)
	}
}
