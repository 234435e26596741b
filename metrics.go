// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmq

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SocketMetrics exposes Prometheus counters and gauges for a single
// socket, registered under a caller-chosen name so a process running
// several sockets of the same type can tell them apart. Attach one with
// WithMetrics; a socket built without the option pays no Prometheus cost.
type SocketMetrics struct {
	sent    prometheus.Counter
	recvd   prometheus.Counter
	dropped prometheus.Counter
	conns   prometheus.Gauge
	qdepth  prometheus.Gauge
}

// NewSocketMetrics registers a SocketMetrics' vectors with reg under the
// given socket name and returns it. Passing a nil registry uses the
// default Prometheus registry.
func NewSocketMetrics(reg prometheus.Registerer, name string) *SocketMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	labels := prometheus.Labels{"socket": name}
	m := &SocketMetrics{
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "zmq",
			Name:        "messages_sent_total",
			Help:        "Number of messages sent on this socket.",
			ConstLabels: labels,
		}),
		recvd: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "zmq",
			Name:        "messages_received_total",
			Help:        "Number of messages received on this socket.",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "zmq",
			Name:        "messages_dropped_total",
			Help:        "Number of messages dropped because a pipe hit its high-water mark.",
			ConstLabels: labels,
		}),
		conns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "zmq",
			Name:        "connections",
			Help:        "Number of connections currently attached to this socket.",
			ConstLabels: labels,
		}),
		qdepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "zmq",
			Name:        "pipe_queue_depth",
			Help:        "Sum of queued message counts across this socket's pipes.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(m.sent, m.recvd, m.dropped, m.conns, m.qdepth)
	return m
}

func (m *SocketMetrics) onSend()         { m.sent.Inc() }
func (m *SocketMetrics) onRecv()         { m.recvd.Inc() }
func (m *SocketMetrics) onDrop()         { m.dropped.Inc() }
func (m *SocketMetrics) setConns(n int)  { m.conns.Set(float64(n)) }
func (m *SocketMetrics) setQDepth(n int) { m.qdepth.Set(float64(n)) }

// observe is a nil-receiver-safe helper so socket code can unconditionally
// call e.g. sck.metrics.observeSend() without checking for nil first. Every
// exported-from-socket entry point goes through one of these, since a
// socket built without WithMetrics leaves metrics nil.
func (m *SocketMetrics) observeSend() {
	if m != nil {
		m.onSend()
	}
}

func (m *SocketMetrics) observeRecv() {
	if m != nil {
		m.onRecv()
	}
}

func (m *SocketMetrics) observeDrop() {
	if m != nil {
		m.onDrop()
	}
}

func (m *SocketMetrics) observeConns(n int) {
	if m != nil {
		m.setConns(n)
	}
}

func (m *SocketMetrics) observeQDepth(n int) {
	if m != nil {
		m.setQDepth(n)
	}
}
