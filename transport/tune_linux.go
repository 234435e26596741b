// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// tuneListener applies SndBuf/RcvBuf (if set) and SO_REUSEADDR to a
// listening TCP socket's raw fd before the Go runtime hands it back.
// Go's listen(2) backlog is fixed by the runtime and not user-tunable
// here, unlike libzmq's ZMQ_BACKLOG.
func tuneListener(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if SndBuf > 0 {
			opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, SndBuf)
			if opErr != nil {
				return
			}
		}
		if RcvBuf > 0 {
			opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, RcvBuf)
			if opErr != nil {
				return
			}
		}
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
