// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"reflect"
	"sync"
	"time"
)

// idlePoll bounds how long Recv waits before re-checking for newly
// attached pipes when none are currently registered.
const idlePoll = 50 * time.Millisecond

// fairQueue round-robins Pop across a set of pipes, the same "drift"
// cursor scheme the reference implementation's fq_t uses to keep one busy
// producer from starving its siblings.
type fairQueue struct {
	mu    sync.Mutex
	pipes []*Pipe
	cur   int
}

func newFairQueue() *fairQueue { return &fairQueue{} }

func (fq *fairQueue) attach(p *Pipe) {
	fq.mu.Lock()
	fq.pipes = append(fq.pipes, p)
	fq.mu.Unlock()
}

func (fq *fairQueue) detach(p *Pipe) {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	for i, pp := range fq.pipes {
		if pp == p {
			fq.pipes = append(fq.pipes[:i], fq.pipes[i+1:]...)
			if fq.cur >= len(fq.pipes) {
				fq.cur = 0
			}
			return
		}
	}
}

// tryRecv attempts one non-blocking round-robin pass over the attached
// pipes, starting just after the last pipe that yielded a message.
func (fq *fairQueue) tryRecv() (Msg, bool) {
	fq.mu.Lock()
	defer fq.mu.Unlock()

	n := len(fq.pipes)
	for i := 0; i < n; i++ {
		idx := (fq.cur + i) % n
		if msg, ok := fq.pipes[idx].Pop(); ok {
			fq.cur = (idx + 1) % n
			return msg, true
		}
	}
	return Msg{}, false
}

// Recv blocks until a message is available on any attached pipe, or ctx
// is done.
func (fq *fairQueue) Recv(ctx context.Context) (Msg, error) {
	for {
		if msg, ok := fq.tryRecv(); ok {
			return msg, nil
		}

		ready := fq.readySignals()
		if len(ready) == 0 {
			select {
			case <-ctx.Done():
				return Msg{}, ctx.Err()
			case <-time.After(idlePoll):
				continue
			}
		}

		ch, cancel := merge(ready)
		select {
		case <-ctx.Done():
			cancel()
			return Msg{}, ctx.Err()
		case <-ch:
			cancel()
		}
	}
}

func (fq *fairQueue) readySignals() []<-chan struct{} {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	out := make([]<-chan struct{}, len(fq.pipes))
	for i, p := range fq.pipes {
		out[i] = p.ReadyRead()
	}
	return out
}

// loadBalance round-robins Push across a set of pipes, skipping any pipe
// currently at its high-water mark, mirroring lb_t's write-side cursor.
type loadBalance struct {
	mu    sync.Mutex
	pipes []*Pipe
	cur   int
}

func newLoadBalance() *loadBalance { return &loadBalance{} }

func (lb *loadBalance) attach(p *Pipe) {
	lb.mu.Lock()
	lb.pipes = append(lb.pipes, p)
	lb.mu.Unlock()
}

func (lb *loadBalance) detach(p *Pipe) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	for i, pp := range lb.pipes {
		if pp == p {
			lb.pipes = append(lb.pipes[:i], lb.pipes[i+1:]...)
			if lb.cur >= len(lb.pipes) {
				lb.cur = 0
			}
			return
		}
	}
}

func (lb *loadBalance) trySend(msg Msg) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	n := len(lb.pipes)
	for i := 0; i < n; i++ {
		idx := (lb.cur + i) % n
		if err := lb.pipes[idx].Push(msg); err == nil {
			lb.cur = (idx + 1) % n
			return true
		}
	}
	return false
}

// broadcast pushes msg to every attached pipe, best-effort (used by PUB).
// It reports whether any pipe was at its high-water mark and so did not
// receive the copy meant for it.
func (lb *loadBalance) broadcast(msg Msg) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	dropped := false
	for _, p := range lb.pipes {
		if err := p.Push(msg); err != nil {
			dropped = true
		}
	}
	return dropped
}

// readySignals returns the ReadyWrite channel of every attached pipe, so
// a blocking write can suspend until any one of them drains below its
// low-water mark.
func (lb *loadBalance) readySignals() []<-chan struct{} {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	out := make([]<-chan struct{}, len(lb.pipes))
	for i, p := range lb.pipes {
		out[i] = p.ReadyWrite()
	}
	return out
}

func (lb *loadBalance) size() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return len(lb.pipes)
}

// merge fans multiple receive-only channels into one, using a single
// helper goroutine (via reflect.Select) instead of one per channel. The
// returned cancel func must be called once the caller stops selecting on
// out, whether or not out ever fired, so the helper goroutine exits
// immediately instead of blocking until some unrelated channel in chans
// eventually fires on its own and leaking until then.
func merge(chans []<-chan struct{}) (out <-chan struct{}, cancel func()) {
	ch := make(chan struct{})
	stop := make(chan struct{})
	if len(chans) == 0 {
		close(stop)
		return ch, func() {}
	}

	cases := make([]reflect.SelectCase, len(chans)+1)
	for i, c := range chans {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(c)}
	}
	cases[len(chans)] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(stop)}

	go func() {
		chosen, _, _ := reflect.Select(cases)
		if chosen != len(chans) {
			close(ch)
		}
	}()

	var once sync.Once
	return ch, func() { once.Do(func() { close(stop) }) }
}
