// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// DeviceMode records how a Device was requested to be scheduled. The
// value is stored on the Device but does not change its scheduling: in
// either mode NewDevice starts the pump goroutines and Run blocks until
// they have exited.
type DeviceMode int

const (
	// InProc is the in-process mode value.
	InProc DeviceMode = iota
	// Threaded is the threaded mode value.
	Threaded
)

// Device connects a frontend socket to a backend socket and pumps
// messages between them, the way the reference implementation's
// Queue/Forwarder/Streamer devices do. Data flows conceptually from
// frontend to backend and back, but the pump is fully symmetric.
type Device struct {
	ctx    context.Context
	cancel context.CancelFunc
	mode   DeviceMode
	grp    *errgroup.Group
	own    *Own
}

// NewDevice creates a Device pumping messages between front and back.
// Before creating a Device, the caller must set any socket options and
// Listen or Dial both sockets.
func NewDevice(ctx context.Context, front, back Socket, mode DeviceMode) *Device {
	grp, gctx := errgroup.WithContext(ctx)
	dctx, cancel := context.WithCancel(gctx)
	d := &Device{
		ctx:    dctx,
		cancel: cancel,
		mode:   mode,
		grp:    grp,
	}
	d.own = NewOwn(d.teardown)
	d.init(front, back)
	return d
}

// NewQueueDevice builds a Queue device: frontend=ROUTER, backend=DEALER,
// preserving the identity prefix in both directions. front must have been
// built with NewRouter and back with NewDealer.
func NewQueueDevice(ctx context.Context, front, back Socket, mode DeviceMode) *Device {
	return NewDevice(ctx, front, back, mode)
}

// NewForwarderDevice builds a Forwarder device: frontend=XSUB,
// backend=XPUB, forwarding published messages and propagating
// subscriptions from the backend back to the frontend. front must have
// been built with NewXSub and back with NewXPub.
func NewForwarderDevice(ctx context.Context, front, back Socket, mode DeviceMode) *Device {
	return NewDevice(ctx, front, back, mode)
}

// NewStreamerDevice builds a Streamer device: frontend=PULL,
// backend=PUSH. front must have been built with NewPull and back with
// NewPush.
func NewStreamerDevice(ctx context.Context, front, back Socket, mode DeviceMode) *Device {
	return NewDevice(ctx, front, back, mode)
}

// Run waits for the device's pump loop, which NewDevice already started,
// to finish, and returns the first error it reported. It blocks until the
// device is stopped, in either mode.
func (d *Device) Run() error {
	return d.grp.Wait()
}

// Stop asks the device to stop pumping and, if wait is true, blocks until
// its pump loop has fully exited.
func (d *Device) Stop(wait bool) {
	if wait {
		d.own.SelfTerminate(0)
		return
	}
	go d.own.SelfTerminate(0)
}

// mailbox and done implement Terminator so a Device can be registered as
// an owned child of a Context; the ownership/termination protocol runs
// through d.own, posted to and read from this mailbox.
func (d *Device) mailbox() *Mailbox {
	return d.own.mailbox()
}

func (d *Device) done() <-chan struct{} {
	return d.own.done()
}

// teardown physically destroys the device: it cancels the pump loop and
// waits for every leg goroutine to exit, so a device blocked in Recv
// unblocks as soon as its sockets' contexts are torn down.
func (d *Device) teardown() error {
	d.cancel()
	return d.grp.Wait()
}

func (d *Device) init(front, back Socket) {
	canRecv := func(sck Socket) bool {
		return sck.Type() != Push
	}
	canSend := func(sck Socket) bool {
		return sck.Type() != Pull
	}

	type leg struct {
		name string
		dst  Socket
		src  Socket
	}

	legs := []leg{
		{name: "backend", dst: back, src: front},
		{name: "frontend", dst: front, src: back},
	}

	for i := range legs {
		l := legs[i]
		if l.src == nil || !canRecv(l.src) {
			continue
		}
		d.grp.Go(func() error {
			send := canSend(l.dst)
			for {
				msg, err := l.src.Recv()
				select {
				case <-d.ctx.Done():
					return d.ctx.Err()
				default:
				}
				if err != nil {
					return err
				}
				if send {
					if err := l.dst.Send(msg); err != nil {
						log.Printf("zmq: device could not forward to %s: %+v", l.name, err)
					}
				}
			}
		})
	}
}

var (
	_ Terminator = (*Device)(nil)
)
