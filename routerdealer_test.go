// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/wireq/zmq"
	"golang.org/x/sync/errgroup"
)

// TestRouterIdentity is the literal "ROUTER identity" scenario: a ROUTER
// observes each DEALER's "hi" prefixed with that DEALER's identity frame,
// and a reply addressed by identity reaches the matching DEALER.
func TestRouterIdentity(t *testing.T) {
	ctx, timeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeout()
	ep := "inproc://router-identity"

	router := zmq.NewRouter(ctx, zmq.WithLogger(zmq.Devnull))
	dealerA := zmq.NewDealer(ctx, zmq.WithID(zmq.SocketIdentity("A")), zmq.WithLogger(zmq.Devnull))
	dealerB := zmq.NewDealer(ctx, zmq.WithID(zmq.SocketIdentity("B")), zmq.WithLogger(zmq.Devnull))
	defer router.Close()
	defer dealerA.Close()
	defer dealerB.Close()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := router.Listen(ep); err != nil {
			return errors.Wrapf(err, "could not listen")
		}

		replies := map[string][]byte{"A": []byte("1"), "B": []byte("2")}
		seen := map[string]bool{}

		for len(seen) < 2 {
			msg, err := router.Recv()
			if err != nil {
				return errors.Wrapf(err, "could not recv")
			}
			id := string(msg.Frames[0])
			if got, want := string(msg.Frames[1]), "hi"; got != want {
				return errors.Errorf("id=%q: got=%q, want=%q", id, got, want)
			}
			seen[id] = true

			reply, ok := replies[id]
			if !ok {
				return errors.Errorf("unexpected identity %q", id)
			}
			if err := router.Send(zmq.NewMsgFrom([]byte(id), reply)); err != nil {
				return errors.Wrapf(err, "could not reply to %q", id)
			}
		}
		if !seen["A"] || !seen["B"] {
			return errors.Errorf("did not see both identities: %v", seen)
		}
		return nil
	})

	grp.Go(func() error {
		if err := dealerA.Dial(ep); err != nil {
			return errors.Wrapf(err, "A: could not dial")
		}
		if err := dealerA.Send(zmq.NewMsgString("hi")); err != nil {
			return errors.Wrapf(err, "A: could not send")
		}
		msg, err := dealerA.Recv()
		if err != nil {
			return errors.Wrapf(err, "A: could not recv")
		}
		if got, want := string(msg.Frames[0]), "1"; got != want {
			return errors.Errorf("A: got=%q, want=%q", got, want)
		}
		return nil
	})
	grp.Go(func() error {
		if err := dealerB.Dial(ep); err != nil {
			return errors.Wrapf(err, "B: could not dial")
		}
		if err := dealerB.Send(zmq.NewMsgString("hi")); err != nil {
			return errors.Wrapf(err, "B: could not send")
		}
		msg, err := dealerB.Recv()
		if err != nil {
			return errors.Wrapf(err, "B: could not recv")
		}
		if got, want := string(msg.Frames[0]), "2"; got != want {
			return errors.Errorf("B: got=%q, want=%q", got, want)
		}
		return nil
	})

	if err := grp.Wait(); err != nil {
		t.Fatalf("error: %+v", err)
	}
}

func TestRouterMandatoryUnknownIdentity(t *testing.T) {
	ctx := context.Background()
	router := zmq.NewRouter(ctx, zmq.WithRouterMandatory(true), zmq.WithLogger(zmq.Devnull))
	defer router.Close()

	err := router.Send(zmq.NewMsgFrom([]byte("nobody"), []byte("hi")))
	if kind, ok := zmq.KindOf(err); !ok || kind != zmq.EHOSTUNREACH {
		t.Fatalf("got=%+v, want EHOSTUNREACH", err)
	}
}

func TestRouterNonMandatoryUnknownIdentityDrops(t *testing.T) {
	ctx := context.Background()
	router := zmq.NewRouter(ctx, zmq.WithLogger(zmq.Devnull))
	defer router.Close()

	if err := router.Send(zmq.NewMsgFrom([]byte("nobody"), []byte("hi"))); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
}
