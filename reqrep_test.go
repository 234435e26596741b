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

// TestReqRepEcho exercises the REQ/REP "Hello"/"World" exchange, then
// checks that a second Send without an intervening Recv fails with EFSM.
func TestReqRepEcho(t *testing.T) {
	ctx, timeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeout()

	ep := "inproc://reqrep-echo"

	rep := zmq.NewRep(ctx, zmq.WithLogger(zmq.Devnull))
	req := zmq.NewReq(ctx, zmq.WithLogger(zmq.Devnull))
	defer rep.Close()
	defer req.Close()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := rep.Listen(ep); err != nil {
			return errors.Wrapf(err, "could not listen")
		}
		msg, err := rep.Recv()
		if err != nil {
			return errors.Wrapf(err, "could not recv request")
		}
		if got, want := string(msg.Frames[0]), "Hello"; got != want {
			return errors.Errorf("got=%q, want=%q", got, want)
		}
		return rep.Send(zmq.NewMsgString("World"))
	})
	grp.Go(func() error {
		if err := req.Dial(ep); err != nil {
			return errors.Wrapf(err, "could not dial")
		}
		if err := req.Send(zmq.NewMsgString("Hello")); err != nil {
			return errors.Wrapf(err, "could not send request")
		}
		msg, err := req.Recv()
		if err != nil {
			return errors.Wrapf(err, "could not recv reply")
		}
		if got, want := string(msg.Frames[0]), "World"; got != want {
			return errors.Errorf("got=%q, want=%q", got, want)
		}
		return nil
	})
	if err := grp.Wait(); err != nil {
		t.Fatalf("error: %+v", err)
	}

	if err := req.Send(zmq.NewMsgString("again")); err == nil {
		t.Fatalf("expected EFSM on a second Send without an intervening Recv")
	} else if kind, ok := zmq.KindOf(err); !ok || kind != zmq.EFSM {
		t.Fatalf("got=%+v, want EFSM", err)
	}
}

func TestReqRepNameLang(t *testing.T) {
	var (
		reqName = zmq.NewMsgString("NAME")
		reqLang = zmq.NewMsgString("LANG")
		reqQuit = zmq.NewMsgString("QUIT")
		repName = zmq.NewMsgString("wireq")
		repLang = zmq.NewMsgString("Go")
		repQuit = zmq.NewMsgString("bye")
	)

	ctx, timeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeout()
	ep := "inproc://reqrep-namelang"

	rep := zmq.NewRep(ctx, zmq.WithLogger(zmq.Devnull))
	req := zmq.NewReq(ctx, zmq.WithLogger(zmq.Devnull))
	defer rep.Close()
	defer req.Close()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := rep.Listen(ep); err != nil {
			return errors.Wrapf(err, "could not listen")
		}
		for {
			msg, err := rep.Recv()
			if err != nil {
				return errors.Wrapf(err, "could not recv")
			}
			var reply zmq.Msg
			done := false
			switch string(msg.Frames[0]) {
			case "NAME":
				reply = repName
			case "LANG":
				reply = repLang
			case "QUIT":
				reply, done = repQuit, true
			}
			if err := rep.Send(reply); err != nil {
				return errors.Wrapf(err, "could not send reply")
			}
			if done {
				return nil
			}
		}
	})
	grp.Go(func() error {
		if err := req.Dial(ep); err != nil {
			return errors.Wrapf(err, "could not dial")
		}
		for _, pair := range []struct{ req, want zmq.Msg }{
			{reqName, repName},
			{reqLang, repLang},
			{reqQuit, repQuit},
		} {
			if err := req.Send(pair.req); err != nil {
				return errors.Wrapf(err, "could not send %v", pair.req)
			}
			got, err := req.Recv()
			if err != nil {
				return errors.Wrapf(err, "could not recv")
			}
			if !reflect.DeepEqual(got, pair.want) {
				return errors.Errorf("got=%v, want=%v", got, pair.want)
			}
		}
		return nil
	})
	if err := grp.Wait(); err != nil {
		t.Fatalf("error: %+v", err)
	}
}
