// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"sync/atomic"
	"time"
)

// cmdKind enumerates the ownership/termination protocol commands exchanged
// between a node and its parent, the same roles own_t's plug/own/term_req/
// term/term_ack/seqnum commands play in the reference implementation.
type cmdKind int

const (
	// cmdPlug tells a freshly launched child it has been attached.
	cmdPlug cmdKind = iota
	// cmdOwn tells a child which mailbox is its owner, so it knows where
	// to post its eventual cmdTermAck.
	cmdOwn
	// cmdTermReq is a self-directed request to begin termination, posted
	// by a node asking itself (or its owner) to shut it down.
	cmdTermReq
	// cmdTerm is an owner's command for a child to begin termination.
	cmdTerm
	// cmdTermAck is a child's notice to its owner that it has fully
	// unwound and physically torn itself down.
	cmdTermAck
	// cmdSeqnum is a bookkeeping no-op that only advances processedSeqnum,
	// used to flush the mailbox when a node needs to know it has caught
	// up with every command posted to it so far.
	cmdSeqnum
)

// command is one entry posted to a Mailbox.
type command struct {
	kind   cmdKind
	from   *Mailbox
	linger time.Duration
	err    error
}

// Mailbox is the single-reader, multi-writer command queue a node's Own
// reads its ownership/termination traffic from, playing the role of the
// reference implementation's mailbox_t. Every cross-goroutine control
// message in the ownership protocol — plug, own, term, term_ack — travels
// through one of these rather than through a direct method call, so a
// node's own run loop is the only thing that ever mutates its state.
type Mailbox struct {
	c    chan command
	sent atomic.Int64
}

func newMailbox() *Mailbox {
	return &Mailbox{c: make(chan command, 64)}
}

// post enqueues cmd and records it against the sent sequence number; a
// node's processedSeqnum must reach this count before it may consider
// itself caught up with everything ever posted to it.
func (mb *Mailbox) post(cmd command) {
	mb.sent.Add(1)
	mb.c <- cmd
}

// Sent returns the number of commands posted to this mailbox so far.
func (mb *Mailbox) Sent() int64 { return mb.sent.Load() }
