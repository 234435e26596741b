// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultRetry   = 250 * time.Millisecond
	defaultTimeout = 5 * time.Minute
)

// socket implements the ZeroMQ socket interface shared by every pattern
// (REQ/REP, DEALER/ROUTER, PUB/SUB, ...): connection lifecycle, the
// ownership/termination protocol, and the pipe pools that give each
// socket its flow-controlled fan-in/fan-out discipline.
type socket struct {
	ep    string // socket end-point
	typ   SocketType
	id    SocketIdentity
	retry time.Duration
	sec   Security
	log   *log.Logger

	hwm             int
	sndTimeout      time.Duration
	rcvTimeout      time.Duration
	linger          time.Duration
	routerMandatory bool
	xpubVerbose     bool
	metrics         *SocketMetrics

	maxRetries    int
	autoReconnect bool

	mu    sync.RWMutex
	ids   map[string]*Conn // ZMTP connection IDs
	conns []*Conn           // ZMTP connections
	r     rpool
	w     wpool

	props map[string]interface{} // properties of this socket

	own      *Own
	ctx      context.Context // life-line of socket
	cancel   context.CancelFunc
	listener net.Listener
	dialer   net.Dialer

	closedConns []*Conn
	reaperCond  *sync.Cond
}

func newDefaultSocket(ctx context.Context, sockType SocketType) *socket {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	sck := &socket{
		typ:        sockType,
		retry:      defaultRetry,
		sec:        nullSecurity{},
		hwm:        defaultHWM,
		rcvTimeout: defaultTimeout,
		sndTimeout: defaultTimeout,
		ids:        make(map[string]*Conn),
		conns:      nil,
		r:          newQReader(ctx),
		w:          newMWriter(ctx),
		props:      make(map[string]interface{}),
		ctx:        ctx,
		cancel:     cancel,
		dialer:     net.Dialer{Timeout: defaultTimeout},
		reaperCond: sync.NewCond(&sync.Mutex{}),
	}
	sck.own = NewOwn(sck.teardown)
	return sck
}

func newSocket(ctx context.Context, sockType SocketType, opts ...Option) *socket {
	sck := newDefaultSocket(ctx, sockType)
	for _, opt := range opts {
		opt(sck)
	}
	if len(sck.id) == 0 {
		sck.id = SocketIdentity(newUUID())
	}
	if sck.log == nil {
		sck.log = log.New(os.Stderr, "zmq: ", 0)
	}

	return sck
}

func (sck *socket) topics() []string {
	var (
		keys   = make(map[string]struct{})
		topics []string
	)
	sck.mu.RLock()
	for _, con := range sck.conns {
		con.mu.RLock()
		for topic := range con.topics {
			if _, dup := keys[topic]; dup {
				continue
			}
			keys[topic] = struct{}{}
			topics = append(topics, topic)
		}
		con.mu.RUnlock()
	}
	sck.mu.RUnlock()
	sort.Strings(topics)
	return topics
}

// mailbox and done implement Terminator so a socket can be registered as
// an owned child of a Context; the ownership/termination protocol runs
// through sck.own, posted to and read from this mailbox.
func (sck *socket) mailbox() *Mailbox {
	return sck.own.mailbox()
}

func (sck *socket) done() <-chan struct{} {
	return sck.own.done()
}

// Close asks the socket's Own to terminate it and blocks until it has:
// when the socket sends through the shared pipe pool (see WithLinger),
// messages still queued on its pipes get up to linger to drain before the
// underlying connections are physically torn down.
func (sck *socket) Close() error {
	return sck.own.SelfTerminate(sck.linger)
}

// teardown physically destroys the socket: it is the Own's teardown hook,
// run exactly once, after the ownership protocol has confirmed nothing
// else still depends on this socket.
func (sck *socket) teardown() error {
	if sck.linger > 0 {
		deadline := time.After(sck.linger)
	drain:
		for {
			if sck.w == nil {
				break
			}
			mw, ok := sck.w.(*mwriter)
			if !ok || mw.qdepth() == 0 {
				break
			}
			select {
			case <-deadline:
				break drain
			case <-time.After(time.Millisecond):
			}
		}
	}

	sck.cancel()
	sck.reaperCond.Signal()

	if sck.listener != nil {
		defer sck.listener.Close()
	}

	sck.mu.RLock()
	conns := append([]*Conn(nil), sck.conns...)
	sck.mu.RUnlock()

	var err error
	for _, conn := range conns {
		e := conn.Close()
		if e != nil && err == nil {
			err = e
		}
	}

	// Remove the unix socket file if created by net.Listen
	if sck.listener != nil && strings.HasPrefix(sck.ep, "ipc://") {
		os.Remove(sck.ep[len("ipc://"):])
	}

	return err
}

// Send puts the message on the outbound send queue.
// Send blocks until the message can be queued or the send deadline expires.
func (sck *socket) Send(msg Msg) error {
	ctx, cancel := context.WithTimeout(sck.ctx, sck.sndTimeout)
	defer cancel()
	dropped, err := sck.w.write(ctx, msg)
	if err == nil {
		sck.metrics.observeSend()
	}
	if dropped {
		sck.metrics.observeDrop()
	}
	return err
}

// SendMulti puts the message on the outbound send queue.
// SendMulti blocks until the message can be queued or the send deadline expires.
// The message will be sent as a multipart message.
func (sck *socket) SendMulti(msg Msg) error {
	msg.multipart = true
	return sck.Send(msg)
}

// Recv receives a complete message.
func (sck *socket) Recv() (Msg, error) {
	ctx, cancel := context.WithTimeout(sck.ctx, sck.rcvTimeout)
	defer cancel()
	var msg Msg
	err := sck.r.read(ctx, &msg)
	if err == nil {
		sck.metrics.observeRecv()
		if q, ok := sck.r.(hasQDepth); ok {
			sck.metrics.observeQDepth(q.qdepth())
		}
	}
	return msg, err
}

// hasQDepth is implemented by the rpool types that can report their
// queued message count; not every custom reader tracks one.
type hasQDepth interface{ qdepth() int }

// readyForRecv and readyForSend are implemented by every rpool/wpool that
// can report readiness without blocking; not every pool can (subCmdReader
// never surfaces data through Recv at all), so the assertions below are
// allowed to fail.
type readyForRecv interface{ hasIn() bool }
type readyForSend interface{ hasOut() bool }

// hasIn and hasOut implement the pollable interface used by Poller. They
// dispatch to whichever concrete pool type sck.r/sck.w holds, so readiness
// is reported correctly for every socket pattern's custom pool (ROUTER,
// REP, PUB, XPUB, ...), not just the default qreader/mwriter pair.
func (sck *socket) hasIn() bool {
	r, ok := sck.r.(readyForRecv)
	return ok && r.hasIn()
}

func (sck *socket) hasOut() bool {
	w, ok := sck.w.(readyForSend)
	return ok && w.hasOut()
}

// Listen connects a local endpoint to the Socket.
func (sck *socket) Listen(endpoint string) error {
	sck.ep = endpoint
	network, addr, err := splitAddr(endpoint)
	if err != nil {
		return err
	}

	var l net.Listener

	trans, ok := drivers.get(network)
	if !ok {
		return newError("Listen", ENOTSUP, fmt.Errorf("zmq: unknown protocol %q", network))
	}
	l, err = trans.Listen(sck.ctx, addr)

	if err != nil {
		return fmt.Errorf("zmq: could not listen to %q: %w", endpoint, err)
	}
	sck.listener = l

	go sck.accept()
	go sck.connReaper()

	return nil
}

func (sck *socket) accept() {
	ctx, cancel := context.WithCancel(sck.ctx)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := sck.listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				continue
			}

			zconn, err := Open(conn, sck.sec, sck.typ, sck.id, true, sck.scheduleRmConn)
			if err != nil {
				sck.log.Printf("could not open a ZMTP connection with %q: %+v", sck.ep, err)
				continue
			}

			sck.addConn(zconn)
		}
	}
}

// Dial connects a remote endpoint to the Socket.
func (sck *socket) Dial(endpoint string) error {
	sck.ep = endpoint

	network, addr, err := splitAddr(endpoint)
	if err != nil {
		return err
	}

	trans, ok := drivers.get(network)
	if !ok {
		return newError("Dial", ENOTSUP, fmt.Errorf("zmq: unknown protocol %q", network))
	}

	var conn net.Conn
	retries := 0
connect:
	conn, err = trans.Dial(sck.ctx, &sck.dialer, addr)
	if err != nil {
		if sck.maxRetries < 0 || retries < sck.maxRetries {
			retries++
			time.Sleep(sck.retry)
			goto connect
		}
		return fmt.Errorf("zmq: could not dial to %q (retry=%v): %w", endpoint, sck.retry, err)
	}

	if conn == nil {
		return fmt.Errorf("zmq: got a nil dial-conn to %q", endpoint)
	}

	zconn, err := Open(conn, sck.sec, sck.typ, sck.id, false, sck.scheduleRmConn)
	if err != nil {
		return fmt.Errorf("zmq: could not open a ZMTP connection: %w", err)
	}
	if zconn == nil {
		return fmt.Errorf("zmq: got a nil ZMTP connection to %q", endpoint)
	}

	go sck.connReaper()
	sck.addConn(zconn)
	return nil
}

func (sck *socket) addConn(c *Conn) {
	sck.mu.Lock()
	sck.conns = append(sck.conns, c)
	uuid, ok := c.Peer.Meta[sysSockID]
	if !ok {
		uuid = newUUID()
		c.Peer.Meta[sysSockID] = uuid
	}
	sck.ids[uuid] = c
	if sck.w != nil {
		sck.w.addConn(c, sck.hwm)
	}
	if sck.r != nil {
		sck.r.addConn(c, sck.hwm)
	}
	n := len(sck.conns)
	sck.mu.Unlock()
	sck.metrics.observeConns(n)
}

func (sck *socket) rmConn(c *Conn) {
	sck.mu.Lock()
	defer sck.mu.Unlock()

	cur := -1
	for i := range sck.conns {
		if sck.conns[i] == c {
			cur = i
			break
		}
	}

	if cur == -1 {
		return
	}

	sck.conns = append(sck.conns[:cur], sck.conns[cur+1:]...)
	if sck.r != nil {
		sck.r.rmConn(c)
	}
	if sck.w != nil {
		sck.w.rmConn(c)
	}
	sck.metrics.observeConns(len(sck.conns))
}

func (sck *socket) scheduleRmConn(c *Conn) {
	sck.reaperCond.L.Lock()
	sck.closedConns = append(sck.closedConns, c)
	sck.reaperCond.Signal()
	sck.reaperCond.L.Unlock()
}

// connByIdentity resolves a routing identity (as used by ROUTER/DEALER) to
// the Conn it was assigned on attach.
func (sck *socket) connByIdentity(id string) (*Conn, bool) {
	sck.mu.RLock()
	defer sck.mu.RUnlock()
	c, ok := sck.ids[id]
	return c, ok
}

// Type returns the type of this Socket (PUB, SUB, ...)
func (sck *socket) Type() SocketType {
	return sck.typ
}

// Addr returns the listener's address.
// Addr returns nil if the socket isn't a listener.
func (sck *socket) Addr() net.Addr {
	if sck.listener == nil {
		return nil
	}
	return sck.listener.Addr()
}

// GetOption is used to retrieve an option for a socket.
func (sck *socket) GetOption(name string) (interface{}, error) {
	v, ok := sck.props[name]
	if !ok {
		return nil, ErrBadProperty
	}
	return v, nil
}

// SetOption is used to set an option for a socket.
func (sck *socket) SetOption(name string, value interface{}) error {
	sck.props[name] = value
	return nil
}

func (sck *socket) connReaper() {
	sck.reaperCond.L.Lock()
	defer sck.reaperCond.L.Unlock()

	for {
		for len(sck.closedConns) == 0 && sck.ctx.Err() == nil {
			sck.reaperCond.Wait()
		}

		if sck.ctx.Err() != nil {
			return
		}

		for _, c := range sck.closedConns {
			sck.rmConn(c)
		}
		sck.closedConns = nil
	}
}

var (
	_ Socket     = (*socket)(nil)
	_ pollable   = (*socket)(nil)
	_ Terminator = (*socket)(nil)
)
