// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/wireq/zmq"
	"golang.org/x/sync/errgroup"
)

// TestForwarderDevice is the literal "forwarder device" scenario: a PUB
// talks to an XSUB/XPUB forwarder, and a SUB subscribed to "T" receives
// the "T" message but not the "U" one.
func TestForwarderDevice(t *testing.T) {
	ctx, timeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeout()

	frontEP := "inproc://forwarder-front"
	backEP := "inproc://forwarder-back"

	xsub := zmq.NewXSub(ctx, zmq.WithLogger(zmq.Devnull))
	xpub := zmq.NewXPub(ctx, zmq.WithLogger(zmq.Devnull))
	defer xsub.Close()
	defer xpub.Close()

	dev := zmq.NewForwarderDevice(ctx, xsub, xpub, zmq.InProc)

	pub := zmq.NewPub(ctx, zmq.WithLogger(zmq.Devnull))
	sub := zmq.NewSub(ctx, zmq.WithLogger(zmq.Devnull))
	defer pub.Close()
	defer sub.Close()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return errors.Wrapf(xsub.Listen(frontEP), "could not listen frontend")
	})
	grp.Go(func() error {
		return errors.Wrapf(xpub.Listen(backEP), "could not listen backend")
	})
	grp.Go(dev.Run)

	ready := make(chan struct{})
	grp.Go(func() error {
		if err := pub.Dial(frontEP); err != nil {
			return errors.Wrapf(err, "pub: could not dial")
		}
		<-ready
		time.Sleep(150 * time.Millisecond) // give the subscribe frame time to propagate through the device
		if err := pub.Send(zmq.NewMsgFrom([]byte("T"), []byte("msg"))); err != nil {
			return errors.Wrapf(err, "pub: could not send T")
		}
		if err := pub.Send(zmq.NewMsgFrom([]byte("U"), []byte("msg"))); err != nil {
			return errors.Wrapf(err, "pub: could not send U")
		}
		return nil
	})
	grp.Go(func() error {
		if err := sub.Dial(backEP); err != nil {
			return errors.Wrapf(err, "sub: could not dial")
		}
		if err := sub.SetOption(zmq.OptionSubscribe, "T"); err != nil {
			return errors.Wrapf(err, "sub: could not subscribe")
		}
		close(ready)

		msg, err := sub.Recv()
		if err != nil {
			return errors.Wrapf(err, "sub: could not recv")
		}
		want := zmq.NewMsgFrom([]byte("T"), []byte("msg"))
		if !reflect.DeepEqual(msg, want) {
			return errors.Errorf("got=%v, want=%v", msg, want)
		}
		dev.Stop(false)
		return nil
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("error: %+v", err)
	}
}

// TestTerminateWhileIdle is the regression scenario for a device that
// hangs when its Context is torn down without an explicit Stop: a SUB
// subscribed to "x" sits idle behind a forwarder and Context.Terminate
// must return well within the linger budget.
func TestTerminateWhileIdle(t *testing.T) {
	ctx := zmq.NewContext()

	front, err := ctx.NewSocket(zmq.XSub)
	if err != nil {
		t.Fatalf("could not create xsub: %+v", err)
	}
	back, err := ctx.NewSocket(zmq.XPub)
	if err != nil {
		t.Fatalf("could not create xpub: %+v", err)
	}

	if err := back.Listen("inproc://terminate-while-idle"); err != nil {
		t.Fatalf("could not listen: %+v", err)
	}

	ctx.NewDevice(front, back, zmq.InProc)

	sub, err := ctx.NewSocket(zmq.Sub)
	if err != nil {
		t.Fatalf("could not create sub: %+v", err)
	}
	if err := sub.Dial("inproc://terminate-while-idle"); err != nil {
		t.Fatalf("could not dial: %+v", err)
	}
	if err := sub.SetOption(zmq.OptionSubscribe, "x"); err != nil {
		t.Fatalf("could not subscribe: %+v", err)
	}

	done := make(chan error, 1)
	go func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- ctx.Terminate(termCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Terminate did not complete cleanly: %+v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Terminate hung with an idle device and subscriber")
	}

	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected Context.Done to be closed after Terminate")
	}
}
