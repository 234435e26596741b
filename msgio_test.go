// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// TestQReaderConcurrentAccess hammers addConn/rmConn against hasIn/qdepth
// from separate goroutines with no shared lock held by the caller, the
// same shape as the Poller loop racing a socket's accept/Dial path. It
// exists to catch a regression of the concurrent map read+write this
// pool's all map was once exposed to.
func TestQReaderConcurrentAccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := newQReader(ctx)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					q.hasIn()
					q.qdepth()
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		a, b := net.Pipe()
		c := &Conn{rw: a}
		q.addConn(c, 8)
		q.rmConn(c)
		b.Close()
	}

	close(stop)
	wg.Wait()

	if err := q.Close(); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
}

// TestMWriterConcurrentAccess is TestQReaderConcurrentAccess's counterpart
// for the write-side pool.
func TestMWriterConcurrentAccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	w := newMWriter(ctx)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					w.hasOut()
					w.qdepth()
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		a, b := net.Pipe()
		c := &Conn{rw: a}
		w.addConn(c, 8)
		w.rmConn(c)
		b.Close()
	}

	close(stop)
	wg.Wait()

	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
}
