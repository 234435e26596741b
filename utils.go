// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// splitAddr returns the (network, addr) pair decoded from a "proto://addr"
// endpoint string.
func splitAddr(v string) (network, addr string, err error) {
	ep := strings.SplitN(v, "://", 2)
	if len(ep) != 2 {
		err = errInvalidAddress
		return network, addr, err
	}
	network = ep[0]

	trans, ok := drivers.get(network)
	if !ok {
		err = fmt.Errorf("zmq: unknown transport %q", network)
		return network, addr, err
	}

	addr, err = trans.Addr(ep[1])
	return network, addr, err
}

// newUUID returns a random v4 UUID string, used as the default socket
// identity when none is configured via WithID.
func newUUID() string {
	return uuid.New().String()
}
