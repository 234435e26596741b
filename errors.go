// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"github.com/pkg/errors"
	"golang.org/x/xerrors"
)

// Kind classifies the well-known failure modes a socket operation can
// report, mirroring the errno taxonomy of the reference ZeroMQ implementation.
type Kind string

const (
	// EAGAIN is returned by non-blocking operations that would otherwise block.
	EAGAIN Kind = "EAGAIN"
	// EFSM is returned when an operation is invalid given the socket's
	// current request/reply state (e.g. calling Send twice on a REQ socket).
	EFSM Kind = "EFSM"
	// EHOSTUNREACH is returned by a ROUTER socket in mandatory-routing mode
	// when the addressed peer is not connected.
	EHOSTUNREACH Kind = "EHOSTUNREACH"
	// ETERM is returned by Pipe.Push once the pipe has begun termination.
	// A socket call interrupted by Context.Terminate returns the context's
	// cancellation error, not ETERM.
	ETERM Kind = "ETERM"
	// EINVAL is returned for malformed arguments (bad endpoint, bad option).
	EINVAL Kind = "EINVAL"
	// EADDRINUSE classifies a bind to an endpoint that is already bound.
	// Listen does not report this Kind: a bind collision is returned as the
	// transport's own error, wrapped.
	EADDRINUSE Kind = "EADDRINUSE"
	// EADDRNOTAVAIL classifies an endpoint that cannot be resolved. Listen
	// and Dial do not report this Kind; resolution failures are returned as
	// the transport's own error.
	EADDRNOTAVAIL Kind = "EADDRNOTAVAIL"
	// ENOTSUP is returned for an operation the socket type does not support.
	ENOTSUP Kind = "ENOTSUP"
	// EMTHREAD is returned by Context.NewSocket once MAX_SOCKETS sockets
	// created by that Context are live. IO_THREADS is not checked.
	EMTHREAD Kind = "EMTHREAD"
)

// Error is a typed zmq error. Op names the failing operation (e.g. "Send"),
// Kind classifies the failure, and Err optionally wraps the underlying cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "zmq: " + e.Op + ": " + string(e.Kind)
	}
	return "zmq: " + e.Op + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err carries the given Kind.
func (e *Error) Is(kind Kind) bool { return e.Kind == kind }

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the Kind of err, if it (or something it wraps) is an *Error.
func KindOf(err error) (Kind, bool) {
	var zerr *Error
	if xerrors.As(err, &zerr) {
		return zerr.Kind, true
	}
	return "", false
}

var (
	errGreeting      = errors.New("zmq: invalid greeting received")
	errSecMech       = errors.New("zmq: invalid security mechanism")
	errBadSec        = errors.New("zmq: invalid or unsupported security mechanism")
	ErrBadCmd        = errors.New("zmq: invalid command name")
	ErrBadFrame      = errors.New("zmq: invalid frame")
	errOverflow      = errors.New("zmq: overflow")
	errEmptyAppMDKey = errors.New("zmq: empty application metadata key")
	errDupAppMDKey   = errors.New("zmq: duplicate application metadata key")
	errBoolCnv       = errors.New("zmq: invalid byte to bool conversion")

	errInvalidAddress = newError("splitAddr", EINVAL, errors.New("invalid endpoint address"))
	ErrBadProperty     = newError("SetOption", EINVAL, errors.New("bad property"))
)
