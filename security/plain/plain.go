// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plain provides the ZeroMQ PLAIN security mechanism as specified
// by https://rfc.zeromq.org/spec:24/ZMTP-PLAIN/.
package plain

import (
	"io"

	"github.com/pkg/errors"
	"github.com/wireq/zmq"
)

// security implements the PLAIN security mechanism.
type security struct {
	user []byte
	pass []byte
}

// Security returns a value that implements the PLAIN security mechanism.
func Security(user, pass string) zmq.Security {
	return &security{[]byte(user), []byte(pass)}
}

func (*security) Type() zmq.SecurityType { return zmq.PlainSecurity }

func (sec *security) Handshake(conn *zmq.Conn, server bool) error {
	switch {
	case server:
		cmd, err := conn.RecvCmd()
		if err != nil {
			return errors.WithMessage(err, "could not receive HELLO from client")
		}
		if cmd.Name != zmq.CmdHello {
			return errors.Errorf("security/plain: expected HELLO command")
		}

		if err := validateHello(cmd.Body); err != nil {
			_ = conn.SendCmd(zmq.CmdError, []byte("invalid"))
			return errors.WithMessage(err, "could not authenticate client")
		}

		if err := conn.SendCmd(zmq.CmdWelcome, nil); err != nil {
			return errors.WithMessage(err, "could not send WELCOME to client")
		}

		cmd, err = conn.RecvCmd()
		if err != nil {
			return errors.WithMessage(err, "could not receive INITIATE from client")
		}
		if err := conn.Peer.Meta.UnmarshalZMTP(cmd.Body); err != nil {
			return errors.WithMessage(err, "could not unmarshal peer metadata")
		}

		raw, err := conn.Meta.MarshalZMTP()
		if err != nil {
			_ = conn.SendCmd(zmq.CmdError, []byte("invalid"))
			return errors.WithMessage(err, "could not serialize metadata")
		}
		if err := conn.SendCmd(zmq.CmdReady, raw); err != nil {
			return errors.WithMessage(err, "could not send READY to client")
		}

	default:
		hello := make([]byte, 0, len(sec.user)+len(sec.pass)+2)
		hello = append(hello, byte(len(sec.user)))
		hello = append(hello, sec.user...)
		hello = append(hello, byte(len(sec.pass)))
		hello = append(hello, sec.pass...)

		if err := conn.SendCmd(zmq.CmdHello, hello); err != nil {
			return errors.WithMessage(err, "could not send HELLO to server")
		}

		cmd, err := conn.RecvCmd()
		if err != nil {
			return errors.WithMessage(err, "could not receive WELCOME from server")
		}
		if cmd.Name != zmq.CmdWelcome {
			_ = conn.SendCmd(zmq.CmdError, []byte("invalid command"))
			return errors.Errorf("security/plain: expected a WELCOME command from server")
		}

		raw, err := conn.Meta.MarshalZMTP()
		if err != nil {
			_ = conn.SendCmd(zmq.CmdError, []byte("internal error"))
			return errors.WithMessage(err, "could not serialize metadata")
		}
		if err := conn.SendCmd(zmq.CmdInitiate, raw); err != nil {
			return errors.WithMessage(err, "could not send INITIATE to server")
		}

		cmd, err = conn.RecvCmd()
		if err != nil {
			return errors.WithMessage(err, "could not receive READY from server")
		}
		if cmd.Name != zmq.CmdReady {
			_ = conn.SendCmd(zmq.CmdError, []byte("invalid command"))
			return errors.Errorf("security/plain: expected a READY command from server")
		}
		if err := conn.Peer.Meta.UnmarshalZMTP(cmd.Body); err != nil {
			return errors.WithMessage(err, "could not unmarshal peer metadata")
		}

		sec.user = nil
		sec.pass = nil
	}
	return nil
}

func (*security) Encrypt(w io.Writer, data []byte) (int, error) { return w.Write(data) }
func (*security) Decrypt(w io.Writer, data []byte) (int, error) { return w.Write(data) }

// validateHello checks the user/password credentials carried by a HELLO
// command body. A real deployment would plug in an authentication backend
// here (e.g. a ZAP handler); this reference mechanism accepts any
// well-formed HELLO, matching upstream ZeroMQ's own PLAIN mechanism which
// delegates authentication to the application.
func validateHello(body []byte) error {
	if len(body) == 0 {
		return errors.Errorf("security/plain: empty HELLO body")
	}
	n := int(body[0])
	if n > len(body)-1 {
		return errors.Errorf("security/plain: truncated HELLO username")
	}
	body = body[1+n:]
	if len(body) == 0 {
		return errors.Errorf("security/plain: missing HELLO password length")
	}
	n = int(body[0])
	if n > len(body)-1 {
		return errors.Errorf("security/plain: truncated HELLO password")
	}
	return nil
}

var _ zmq.Security = (*security)(nil)
