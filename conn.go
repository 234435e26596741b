// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Conn implements the ZeroMQ Message Transport Protocol as defined
// in https://rfc.zeromq.org/spec:23/ZMTP/.
type Conn struct {
	typ    SocketType
	id     SocketIdentity
	rw     io.ReadWriteCloser
	sec    Security
	server bool

	Meta Metadata
	Peer struct {
		Server bool
		Meta   Metadata
	}

	mu     sync.RWMutex
	topics map[string]struct{} // set of subscribed topics, for PUB/XPUB

	onClose func(*Conn)
}

func (c *Conn) Close() error {
	err := c.rw.Close()
	if c.onClose != nil {
		c.onClose(c)
	}
	return err
}

func (c *Conn) Read(p []byte) (int, error)  { return c.rw.Read(p) }
func (c *Conn) Write(p []byte) (int, error) { return c.rw.Write(p) }

// Identity returns the ZMTP identity the peer advertised, if any.
func (c *Conn) Identity() string { return c.Peer.Meta[sysSockID] }

// Open opens a ZMTP connection over rw with the given security, socket
// type and identity. Open performs a complete ZMTP handshake. onClose, if
// non-nil, is invoked each time Close is called on the connection.
func Open(rw io.ReadWriteCloser, sec Security, sockType SocketType, sockID SocketIdentity, server bool, onClose func(*Conn)) (*Conn, error) {
	if rw == nil {
		return nil, errors.Errorf("zmq: invalid nil read-writer")
	}
	if sec == nil {
		sec = nullSecurity{}
	}

	conn := &Conn{
		typ:     sockType,
		id:      sockID,
		rw:      rw,
		sec:     sec,
		server:  server,
		Meta:    make(Metadata),
		topics:  make(map[string]struct{}),
		onClose: onClose,
	}

	if err := conn.init(); err != nil {
		_ = rw.Close()
		return nil, err
	}
	return conn, nil
}

func (conn *Conn) init() error {
	if err := conn.greet(conn.server); err != nil {
		return errors.Wrapf(err, "zmq: could not exchange greetings")
	}

	if err := conn.sec.Handshake(conn, conn.server); err != nil {
		return errors.Wrapf(err, "zmq: could not perform security handshake")
	}

	// FIXME: if security mechanism does not define a client/server
	// topology, enforce that server == peer.server == false as per
	// https://rfc.zeromq.org/spec:23/ZMTP/#topology

	peer := SocketType(conn.Peer.Meta[sysSockType])
	if peer != "" && !peer.IsCompatible(conn.typ) {
		return errors.Errorf("zmq: peer=%q not compatible with %q", peer, conn.typ)
	}
	return nil
}

func (conn *Conn) greet(server bool) error {
	send := greeting{Version: defaultVersion}
	send.Sig.Header = sigHeader
	send.Sig.Footer = sigFooter
	kind := string(conn.sec.Type())
	if len(kind) > len(send.Mechanism) {
		return errSecMech
	}
	copy(send.Mechanism[:], kind)
	if server {
		send.Server = 1
	}

	if err := send.write(conn.rw); err != nil {
		return errors.Wrapf(err, "zmq: could not send greeting")
	}

	var recv greeting
	if err := recv.read(conn.rw); err != nil {
		return errors.Wrapf(err, "zmq: could not recv greeting")
	}

	peerKind := asString(recv.Mechanism[:])
	if peerKind != kind {
		return errBadSec
	}

	var err error
	conn.Peer.Server, err = asBool(recv.Server)
	if err != nil {
		return errors.Wrapf(err, "zmq: could not get peer server flag")
	}

	conn.Meta[sysSockType] = string(conn.typ)
	conn.Meta[sysSockID] = conn.id.String()
	return nil
}

// SendCmd sends a ZMTP command over the wire.
func (c *Conn) SendCmd(name string, body []byte) error {
	cmd := Cmd{Name: name, Body: body}
	buf, err := cmd.marshalZMTP()
	if err != nil {
		return err
	}
	return c.send(true, buf, 0)
}

// RecvCmd receives a single ZMTP command from the wire.
func (c *Conn) RecvCmd() (Cmd, error) {
	var cmd Cmd
	msg := c.read()
	if msg.err != nil {
		return cmd, errors.WithStack(msg.err)
	}
	if !msg.isCmd() {
		return cmd, ErrBadFrame
	}
	if len(msg.Frames) != 1 {
		return cmd, errors.Errorf("zmq: invalid length command")
	}
	err := cmd.unmarshalZMTP(msg.Frames[0])
	return cmd, err
}

// SendMsg sends a ZMTP message over the wire.
func (c *Conn) SendMsg(msg Msg) error {
	nframes := len(msg.Frames)
	for i, frame := range msg.Frames {
		var flag byte
		if i < nframes-1 {
			flag ^= hasMoreBitFlag
		}
		if err := c.send(false, frame, flag); err != nil {
			return errors.Wrapf(err, "zmq: error sending frame %d/%d", i+1, nframes)
		}
	}
	return nil
}

// RecvMsg receives a ZMTP message from the wire, transparently answering
// PING commands with PONG.
func (c *Conn) RecvMsg() (Msg, error) {
	msg := c.read()
	if msg.err != nil {
		return msg, errors.WithStack(msg.err)
	}
	if !msg.isCmd() {
		return msg, nil
	}

	switch len(msg.Frames) {
	case 0:
		msg.err = errors.Errorf("zmq: empty command")
		return msg, msg.err
	case 1:
	default:
		msg.err = errors.Errorf("zmq: invalid length command")
		return msg, msg.err
	}

	var cmd Cmd
	msg.err = cmd.unmarshalZMTP(msg.Frames[0])
	if msg.err != nil {
		return msg, errors.WithStack(msg.err)
	}

	if cmd.Name == CmdPing {
		if msg.err = c.SendCmd(CmdPong, nil); msg.err != nil {
			return msg, msg.err
		}
	}

	switch len(cmd.Body) {
	case 0:
		msg.Frames = nil
	default:
		msg.Frames = msg.Frames[:1]
		msg.Frames[0] = cmd.Body
	}
	return msg, nil
}

func (c *Conn) send(isCommand bool, body []byte, flag byte) error {
	size := len(body)
	isLong := size > 255
	if isLong {
		flag ^= isLongBitFlag
	}
	if isCommand {
		flag ^= isCommandBitFlag
	}

	var (
		hdr [9]byte
		hsz int
	)
	hdr[0] = flag
	if isLong {
		hsz = 9
		binary.BigEndian.PutUint64(hdr[1:], uint64(size))
	} else {
		hsz = 2
		hdr[1] = uint8(size)
	}
	if _, err := c.rw.Write(hdr[:hsz]); err != nil {
		return err
	}
	_, err := c.sec.Encrypt(c.rw, body)
	return err
}

// read returns the next complete (possibly multi-frame) message.
func (c *Conn) read() Msg {
	var (
		header  [2]byte
		longHdr [8]byte
		msg     Msg

		hasMore = true
		isCmd   = false
	)

	for hasMore {
		_, msg.err = io.ReadFull(c.rw, header[:])
		if msg.err != nil {
			return msg
		}

		fl := flag(header[0])
		hasMore = fl.hasMore()
		isCmd = isCmd || fl.isCommand()

		size := uint64(header[1])
		if fl.isLong() {
			longHdr[0] = header[1]
			_, msg.err = io.ReadFull(c.rw, longHdr[1:])
			if msg.err != nil {
				return msg
			}
			size = binary.BigEndian.Uint64(longHdr[:])
		}

		if size > uint64(maxInt64) {
			msg.err = errOverflow
			return msg
		}

		body := make([]byte, size)
		_, msg.err = io.ReadFull(c.rw, body)
		if msg.err != nil {
			return msg
		}

		if c.sec.Type() == NullSecurity {
			msg.Frames = append(msg.Frames, body)
			continue
		}

		buf := new(bytes.Buffer)
		if _, msg.err = c.sec.Decrypt(buf, body); msg.err != nil {
			return msg
		}
		msg.Frames = append(msg.Frames, buf.Bytes())
	}
	if isCmd {
		msg.Type = CmdMsg
	}
	return msg
}

func (conn *Conn) subscribe(msg Msg) {
	if len(msg.Frames) == 0 || len(msg.Frames[0]) == 0 {
		return
	}
	conn.mu.Lock()
	v := msg.Frames[0]
	k := string(v[1:])
	switch v[0] {
	case 0:
		delete(conn.topics, k)
	case 1:
		conn.topics[k] = struct{}{}
	}
	conn.mu.Unlock()
}

func (conn *Conn) subscribed(topic string) bool {
	conn.mu.RLock()
	defer conn.mu.RUnlock()
	for k := range conn.topics {
		switch {
		case k == "":
			return true
		case strings.HasPrefix(topic, k):
			return true
		}
	}
	return false
}
