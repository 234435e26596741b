// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"fmt"
	"io"
)

// Security is an interface for ZMTP security mechanisms.
type Security interface {
	// Type returns the security mechanism type.
	Type() SecurityType

	// Handshake implements the ZMTP security handshake according to
	// this security mechanism.
	// see:
	//  https://rfc.zeromq.org/spec:23/ZMTP/
	//  https://rfc.zeromq.org/spec:24/ZMTP-PLAIN/
	Handshake(conn *Conn, server bool) error

	// Encrypt writes the encrypted form of data to w.
	Encrypt(w io.Writer, data []byte) (int, error)

	// Decrypt writes the decrypted form of data to w.
	Decrypt(w io.Writer, data []byte) (int, error)
}

// SecurityType denotes types of ZMTP security mechanisms.
type SecurityType string

const (
	// NullSecurity is an empty security mechanism that does no
	// authentication nor encryption.
	NullSecurity SecurityType = "NULL"

	// PlainSecurity is a security mechanism that uses plaintext
	// passwords. It is a reference implementation and should not be
	// used for anything important.
	PlainSecurity SecurityType = "PLAIN"
)

// nullSecurity implements the NULL security mechanism.
type nullSecurity struct{}

func (nullSecurity) Type() SecurityType { return NullSecurity }

func (nullSecurity) Handshake(conn *Conn, server bool) error {
	raw, err := conn.Meta.MarshalZMTP()
	if err != nil {
		return fmt.Errorf("zmq: could not marshal metadata: %w", err)
	}

	if err := conn.SendCmd(CmdReady, raw); err != nil {
		return fmt.Errorf("zmq: could not send metadata to peer: %w", err)
	}

	cmd, err := conn.RecvCmd()
	if err != nil {
		return fmt.Errorf("zmq: could not recv metadata from peer: %w", err)
	}
	if cmd.Name != CmdReady {
		return ErrBadCmd
	}

	if err := conn.Peer.Meta.UnmarshalZMTP(cmd.Body); err != nil {
		return fmt.Errorf("zmq: could not unmarshal peer metadata: %w", err)
	}
	return nil
}

func (nullSecurity) Encrypt(w io.Writer, data []byte) (int, error) { return w.Write(data) }
func (nullSecurity) Decrypt(w io.Writer, data []byte) (int, error) { return w.Write(data) }

var _ Security = (*nullSecurity)(nil)
