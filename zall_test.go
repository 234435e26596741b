// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"io"
	"log"
)

// Devnull is a logger that discards everything, for tests that want to
// silence a socket's diagnostic output.
var Devnull = log.New(io.Discard, "zmq: ", 0)
