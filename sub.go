// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// NewSub returns a new SUB ZeroMQ socket.
// The returned socket value is initially unbound.
func NewSub(ctx context.Context, opts ...Option) Socket {
	sub := &SubSocket{socket: newSocket(ctx, Sub, opts...)}
	sub.topics = make(map[string]struct{})
	return sub
}

// Sub is a SUB ZeroMQ socket. SetOption(OptionSubscribe/OptionUnsubscribe)
// sends a control frame upstream to every attached PUB/XPUB peer and
// maintains a local topic filter that Recv applies to incoming messages.
type SubSocket struct {
	*socket

	mu     sync.RWMutex
	topics map[string]struct{}
}

// Recv receives the next message matching a subscribed topic, discarding
// any non-matching messages a fair-queue hand-off surfaces first.
func (sub *SubSocket) Recv() (Msg, error) {
	for {
		msg, err := sub.socket.Recv()
		if err != nil {
			return msg, err
		}
		if sub.matches(msg) {
			return msg, nil
		}
	}
}

func (sub *SubSocket) matches(msg Msg) bool {
	topic := ""
	if len(msg.Frames) > 0 {
		topic = string(msg.Frames[0])
	}

	sub.mu.RLock()
	defer sub.mu.RUnlock()
	if len(sub.topics) == 0 {
		return true
	}
	for k := range sub.topics {
		if k == "" || strings.HasPrefix(topic, k) {
			return true
		}
	}
	return false
}

// SetOption supports OptionSubscribe and OptionUnsubscribe in addition to
// the base socket options.
func (sub *SubSocket) SetOption(name string, value interface{}) error {
	switch name {
	case OptionSubscribe, OptionUnsubscribe:
	default:
		return sub.socket.SetOption(name, value)
	}

	topic, ok := value.(string)
	if !ok {
		return ErrBadProperty
	}

	var ctrl []byte
	sub.mu.Lock()
	switch name {
	case OptionSubscribe:
		sub.topics[topic] = struct{}{}
		ctrl = append([]byte{1}, topic...)
	case OptionUnsubscribe:
		delete(sub.topics, topic)
		ctrl = append([]byte{0}, topic...)
	}
	sub.mu.Unlock()

	return sub.socket.Send(NewMsg(ctrl))
}

// Topics returns the sorted list of topics this socket is subscribed to.
func (sub *SubSocket) Topics() []string {
	sub.mu.RLock()
	defer sub.mu.RUnlock()
	out := make([]string, 0, len(sub.topics))
	for k := range sub.topics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	_ Socket = (*SubSocket)(nil)
	_ Topics = (*SubSocket)(nil)
)
