// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package null provides the ZeroMQ NULL security mechanism.
package null

import (
	"io"

	"github.com/wireq/zmq"
	"golang.org/x/xerrors"
)

// security implements the NULL security mechanism.
type security struct{}

// Security returns a value that implements the NULL security mechanism.
func Security() zmq.Security {
	return security{}
}

func (security) Type() zmq.SecurityType {
	return zmq.NullSecurity
}

func (security) Handshake(conn *zmq.Conn, server bool) error {
	raw, err := conn.Meta.MarshalZMTP()
	if err != nil {
		return xerrors.Errorf("security/null: could not marshal metadata: %w", err)
	}

	if err := conn.SendCmd(zmq.CmdReady, raw); err != nil {
		return xerrors.Errorf("security/null: could not send metadata to peer: %w", err)
	}

	cmd, err := conn.RecvCmd()
	if err != nil {
		return xerrors.Errorf("security/null: could not recv metadata from peer: %w", err)
	}
	if cmd.Name != zmq.CmdReady {
		return zmq.ErrBadCmd
	}

	if err := conn.Peer.Meta.UnmarshalZMTP(cmd.Body); err != nil {
		return xerrors.Errorf("security/null: could not unmarshal peer metadata: %w", err)
	}
	return nil
}

func (security) Encrypt(w io.Writer, data []byte) (int, error) { return w.Write(data) }
func (security) Decrypt(w io.Writer, data []byte) (int, error) { return w.Write(data) }

var _ zmq.Security = (*security)(nil)
