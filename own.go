// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Terminator is anything that can be registered as a child in an ownership
// tree: it exposes the Mailbox its owner posts termination commands to,
// and a channel that closes once it has fully unwound. Sockets and
// Devices both implement it so a Context can track them as owned children.
type Terminator interface {
	// mailbox returns the command queue this node's Own reads from.
	mailbox() *Mailbox
	// done returns a channel closed once the node has fully unwound.
	done() <-chan struct{}
}

// Own implements the ownership and termination protocol used throughout
// the package, generalizing the reference implementation's own_t to Go's
// garbage-collected memory model: there is no arena to reclaim, only
// goroutines and channels to unwind. Unlike own_t's direct virtual calls,
// every state transition here arrives as a command on the node's own
// Mailbox, processed one at a time by a single run loop, so no mutex ever
// needs to be held across a child's reaction to a command.
//
// A node completes — runs its teardown and notifies its owner — only once
// every command ever posted to its mailbox has been processed
// (processedSeqnum == mb.Sent()), every term_ack it is owed has arrived
// (pendingTermAcks == 0), and it owns no more children.
type Own struct {
	mb       *Mailbox
	teardown func() error

	mu       sync.Mutex
	parent   *Mailbox
	children map[Terminator]*Mailbox

	processedSeqnum atomic.Int64
	pendingTermAcks atomic.Int64
	terminating     atomic.Bool

	errMu sync.Mutex
	errs  []error

	closed chan struct{}
	once   sync.Once
}

// NewOwn returns an Own ready to track children and starts its run loop.
// teardown, if non-nil, runs exactly once, after every child has acked
// termination and every posted command has been processed, to physically
// destroy the owning socket or device; its error is reported back to the
// owner's Terminate/TermChild caller via a term_ack.
func NewOwn(teardown func() error) *Own {
	o := &Own{
		mb:       newMailbox(),
		teardown: teardown,
		children: make(map[Terminator]*Mailbox),
		closed:   make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Own) mailbox() *Mailbox     { return o.mb }
func (o *Own) done() <-chan struct{} { return o.closed }

// Done returns a channel closed once this node has fully unwound.
func (o *Own) Done() <-chan struct{} { return o.closed }

// run is the node's single command-processing loop: every state
// transition happens here, on one goroutine, so no lock is needed to
// serialize against commands arriving concurrently from several owners
// or children.
func (o *Own) run() {
	for cmd := range o.mb.c {
		switch cmd.kind {
		case cmdOwn:
			o.mu.Lock()
			o.parent = cmd.from
			o.mu.Unlock()
		case cmdTermReq, cmdTerm:
			o.handleTerm(cmd.linger)
		case cmdTermAck:
			o.handleTermAck(cmd.from, cmd.err)
		case cmdPlug, cmdSeqnum:
			// markers only; processedSeqnum below is what matters.
		}
		o.processedSeqnum.Add(1)
		if o.maybeFinish() {
			return
		}
	}
}

// LaunchChild registers child as owned and tells it so, via its own
// mailbox, mirroring own_t's plug/own handshake.
func (o *Own) LaunchChild(child Terminator) {
	mb := child.mailbox()
	o.mu.Lock()
	o.children[child] = mb
	o.mu.Unlock()
	mb.post(command{kind: cmdPlug})
	mb.post(command{kind: cmdOwn, from: o.mb})
}

// TermChild asks a single owned child to begin termination; it does not
// block on the child's completion, only on handing off the request.
func (o *Own) TermChild(child Terminator, linger time.Duration) {
	o.mu.Lock()
	mb, ok := o.children[child]
	if ok {
		o.pendingTermAcks.Add(1)
	}
	o.mu.Unlock()
	if !ok {
		return
	}
	mb.post(command{kind: cmdTerm, from: o.mb, linger: linger})
}

// Terminate asks every owned child to terminate and blocks until this
// node itself has fully unwound — which cannot happen before every child
// has acked — or ctx is cancelled first. It is safe to call more than
// once; later calls observe the same completion.
func (o *Own) Terminate(ctx context.Context, linger time.Duration) error {
	o.mb.post(command{kind: cmdTermReq, linger: linger})
	select {
	case <-o.closed:
		return o.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelfTerminate asks this node to terminate (fanning cmdTerm out to its
// own children first, if any) and blocks until it has fully unwound.
func (o *Own) SelfTerminate(linger time.Duration) error {
	o.mb.post(command{kind: cmdTermReq, linger: linger})
	<-o.closed
	return o.Err()
}

// Err returns the aggregate error, if any, recorded by this node's own
// teardown or reported by a child's term_ack.
func (o *Own) Err() error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	if len(o.errs) == 0 {
		return nil
	}
	return errors.Errorf("zmq: %d owned child(ren) failed to terminate cleanly: %v", len(o.errs), o.errs[0])
}

// handleTerm begins termination: idempotent, so a node that is both told
// to terminate by its owner and asked to terminate itself only fans out
// to its children once.
func (o *Own) handleTerm(linger time.Duration) {
	if !o.terminating.CompareAndSwap(false, true) {
		return
	}

	o.mu.Lock()
	children := make([]*Mailbox, 0, len(o.children))
	for _, mb := range o.children {
		children = append(children, mb)
	}
	o.mu.Unlock()

	o.pendingTermAcks.Add(int64(len(children)))
	for _, mb := range children {
		mb.post(command{kind: cmdTerm, from: o.mb, linger: linger})
	}
}

// handleTermAck removes the acking child from the ownership set and
// records any error it reported.
func (o *Own) handleTermAck(from *Mailbox, err error) {
	o.mu.Lock()
	for child, mb := range o.children {
		if mb == from {
			delete(o.children, child)
			break
		}
	}
	o.mu.Unlock()

	if err != nil {
		o.errMu.Lock()
		o.errs = append(o.errs, err)
		o.errMu.Unlock()
	}
	o.pendingTermAcks.Add(-1)
}

// maybeFinish reports whether this node is fully unwound — terminating,
// owns no more children, owes no more term_acks, and has processed every
// command ever posted to it — and finishes it if so.
func (o *Own) maybeFinish() bool {
	if !o.terminating.Load() {
		return false
	}
	o.mu.Lock()
	n := len(o.children)
	o.mu.Unlock()
	if n != 0 || o.pendingTermAcks.Load() != 0 {
		return false
	}
	if o.processedSeqnum.Load() != o.mb.Sent() {
		return false
	}
	o.finish()
	return true
}

// finish physically destroys the node via teardown and notifies its
// parent, exactly once.
func (o *Own) finish() {
	o.once.Do(func() {
		if o.teardown != nil {
			if err := o.teardown(); err != nil {
				o.errMu.Lock()
				o.errs = append(o.errs, err)
				o.errMu.Unlock()
			}
		}
		close(o.closed)

		o.mu.Lock()
		parent := o.parent
		o.mu.Unlock()
		if parent != nil {
			parent.post(command{kind: cmdTermAck, from: o.mb, err: o.Err()})
		}
	})
}
