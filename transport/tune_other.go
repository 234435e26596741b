// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package transport

import "syscall"

// tuneListener is a no-op outside Linux: golang.org/x/sys/unix's
// socket-option constants used by tune_linux.go are not portable across
// every platform this module might build for.
func tuneListener(network, address string, c syscall.RawConn) error {
	return nil
}
