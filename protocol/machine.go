// File: protocol/machine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion-driven connection state machine.

package protocol

import (
	"errors"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/ackd/api"
	"github.com/momentics/ackd/control"
	"github.com/momentics/ackd/internal/appendlog"
	"github.com/momentics/ackd/internal/conntable"
	"github.com/momentics/ackd/internal/logging"
)

// Sink is the part of the reactor the machine drives.
type Sink interface {
	api.Submitter
	Release(fd int) error
}

// Config carries the protocol parameters.
type Config struct {
	ListenFd int
	AckDelay time.Duration
	Clock    func() time.Time
}

// Machine interprets completions for every connection. It must be used
// from a single goroutine.
type Machine struct {
	sink     Sink
	table    *conntable.Table
	log      *appendlog.Log
	metrics  *control.MetricsRegistry
	listenFd int
	ackDelay time.Duration
	clock    func() time.Time

	// backlog holds operations refused with api.ErrQueueFull, in issue order.
	backlog   *queue.Queue
	listening bool
}

// New builds a machine over the given sink, table and log. metrics may be nil.
func New(sink Sink, table *conntable.Table, log *appendlog.Log, metrics *control.MetricsRegistry, cfg Config) *Machine {
	if cfg.AckDelay <= 0 {
		cfg.AckDelay = api.DefaultAckDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if metrics == nil {
		metrics = control.NewMetricsRegistry()
	}
	return &Machine{
		sink:     sink,
		table:    table,
		log:      log,
		metrics:  metrics,
		listenFd: cfg.ListenFd,
		ackDelay: cfg.AckDelay,
		clock:    cfg.Clock,
		backlog:  queue.New(),
	}
}

// Arm issues the first accept on the listening socket.
func (m *Machine) Arm() error {
	m.listening = true
	return m.Submit(m.acceptOp())
}

// Submit forwards op to the sink, deferring it when the sink is at
// capacity. Deferred operations are retried by Flush in FIFO order.
func (m *Machine) Submit(op api.Op) error {
	if m.backlog.Length() > 0 {
		m.postpone(op)
		return nil
	}
	err := m.sink.Submit(op)
	if errors.Is(err, api.ErrQueueFull) {
		m.postpone(op)
		return nil
	}
	return err
}

func (m *Machine) postpone(op api.Op) {
	m.backlog.Add(op)
	m.metrics.Add(control.MetricDeferred, 1)
}

// Deferred returns the number of operations waiting for capacity.
func (m *Machine) Deferred() int { return m.backlog.Length() }

// Flush resubmits deferred operations until the sink pushes back again.
func (m *Machine) Flush() {
	for m.backlog.Length() > 0 {
		op := m.backlog.Peek().(api.Op)
		var conn *conntable.Conn
		if op.Tag != api.ListenerTag {
			c, ok := m.table.Lookup(op.Tag)
			if !ok && op.Kind != api.OpWrite {
				m.backlog.Remove()
				continue
			}
			conn = c
		}
		err := m.sink.Submit(op)
		if errors.Is(err, api.ErrQueueFull) {
			return
		}
		m.backlog.Remove()
		if err != nil {
			m.issueFailed(conn, op, err)
		}
	}
}

// Handle interprets one completion.
func (m *Machine) Handle(c api.Completion) {
	switch c.Kind {
	case api.OpAccept:
		m.onAccept(c)
		return
	case api.OpWrite:
		m.onAppend(c)
		return
	}

	conn, ok := m.table.Lookup(c.Tag)
	if !ok {
		m.metrics.Add(control.MetricStale, 1)
		logging.Debug("Stale completion dropped",
			zap.Stringer("op", c.Kind),
			zap.Stringer("tag", c.Tag),
		)
		return
	}

	switch c.Kind {
	case api.OpRecv:
		m.onRecv(conn, c)
	case api.OpTimeout:
		m.onTimer(conn)
	case api.OpSend:
		m.onSend(conn, c)
	}
}

// Shutdown stops re-arming accepts and closes every live connection.
func (m *Machine) Shutdown() {
	m.listening = false
	m.table.Range(func(c *conntable.Conn) {
		m.closeConn(c, "shutdown")
	})
}

func (m *Machine) acceptOp() api.Op {
	return api.Op{Kind: api.OpAccept, Fd: m.listenFd, Tag: api.ListenerTag}
}

func (m *Machine) rearm() {
	if !m.listening {
		return
	}
	if err := m.Submit(m.acceptOp()); err != nil {
		logging.Error("Failed to re-arm accept", zap.Error(err))
	}
}

func (m *Machine) onAccept(c api.Completion) {
	if c.Err != nil {
		if errors.Is(c.Err, api.ErrCanceled) {
			return
		}
		logging.Warn("Accept failed", zap.Error(c.Err))
		m.rearm()
		return
	}

	fd := c.Res
	if !m.listening {
		if err := m.sink.Release(fd); err != nil {
			logging.Warn("Close late socket", zap.Error(err))
		}
		return
	}
	conn, err := m.table.Allocate(fd)
	if err != nil {
		m.metrics.Add(control.MetricRefused, 1)
		logging.Warn("Connection refused",
			zap.String("remote_addr", c.Peer),
			zap.Int("capacity", m.table.Cap()),
			zap.Error(err),
		)
		if rerr := m.sink.Release(fd); rerr != nil {
			logging.Warn("Close refused socket", zap.Error(rerr))
		}
		m.rearm()
		return
	}
	conn.Remote = c.Peer
	m.metrics.Add(control.MetricAccepted, 1)
	logging.LogConnection(conn.Remote, conn.SessionID, "open")

	m.issue(conn, api.Op{Kind: api.OpRecv, Fd: conn.Fd, Buf: conn.ReadBuf(), Tag: conn.ID})
	m.rearm()
}

func (m *Machine) onRecv(conn *conntable.Conn, c api.Completion) {
	if conn.State != api.StateReading {
		m.unexpected(conn, c)
		return
	}
	if c.Err != nil {
		m.closeConn(conn, "recv error: "+c.Err.Error())
		return
	}
	if c.Res <= 0 {
		m.closeConn(conn, "peer closed")
		return
	}

	conn.SetMessage(c.Res, m.clock())
	m.metrics.Add(control.MetricMessages, 1)
	m.metrics.Add(control.MetricBytes, int64(c.Res))
	logging.LogRawBytes("Message received", conn.Message())

	if m.log != nil {
		if err := m.log.AppendAsync(m, conn.ID, conn.Message()); err != nil {
			m.metrics.Add(control.MetricLogErrors, 1)
			logging.Warn("Append not scheduled",
				zap.String("session", conn.SessionID),
				zap.Error(err),
			)
		}
	}

	conn.State = api.StatePendingAck
	m.issue(conn, api.Op{Kind: api.OpTimeout, Delay: m.ackDelay, Tag: conn.ID})
}

// onAppend drains a log write. Failures are diagnostics only.
func (m *Machine) onAppend(c api.Completion) {
	if c.Err != nil {
		m.metrics.Add(control.MetricLogErrors, 1)
		logging.Warn("Log append failed", zap.Stringer("tag", c.Tag), zap.Error(c.Err))
		return
	}
	if m.log != nil {
		m.log.Done(c.Res)
	}
	m.metrics.Add(control.MetricLogWrites, 1)
}

func (m *Machine) onTimer(conn *conntable.Conn) {
	if conn.State != api.StatePendingAck {
		m.unexpected(conn, api.Completion{Kind: api.OpTimeout, Tag: conn.ID})
		return
	}
	conn.State = api.StateAcknowledging
	m.issue(conn, api.Op{Kind: api.OpSend, Fd: conn.Fd, Buf: FormatAck(m.clock()), Tag: conn.ID})
}

func (m *Machine) onSend(conn *conntable.Conn, c api.Completion) {
	if conn.State != api.StateAcknowledging {
		m.unexpected(conn, c)
		return
	}
	if c.Err != nil {
		m.closeConn(conn, "send error: "+c.Err.Error())
		return
	}
	m.metrics.Add(control.MetricAcks, 1)
	conn.State = api.StateReading
	m.issue(conn, api.Op{Kind: api.OpRecv, Fd: conn.Fd, Buf: conn.ReadBuf(), Tag: conn.ID})
}

func (m *Machine) issue(conn *conntable.Conn, op api.Op) {
	if err := m.Submit(op); err != nil {
		m.issueFailed(conn, op, err)
	}
}

func (m *Machine) issueFailed(conn *conntable.Conn, op api.Op, err error) {
	logging.Warn("Submit failed", zap.Stringer("op", op.Kind), zap.Stringer("tag", op.Tag), zap.Error(err))
	if conn != nil && op.Kind != api.OpWrite {
		m.closeConn(conn, "submit failed")
	}
}

func (m *Machine) closeConn(conn *conntable.Conn, reason string) {
	fd, tag := conn.Fd, conn.ID
	remote, session := conn.Remote, conn.SessionID
	if err := m.sink.Release(fd); err != nil {
		logging.Warn("Close socket", zap.Int("fd", fd), zap.Error(err))
	}
	m.table.Release(tag)
	m.metrics.Add(control.MetricClosed, 1)
	logging.LogConnection(remote, session, "close: "+reason)
}

func (m *Machine) unexpected(conn *conntable.Conn, c api.Completion) {
	logging.Debug("Completion ignored in current state",
		zap.Stringer("op", c.Kind),
		zap.Stringer("state", conn.State),
		zap.String("session", conn.SessionID),
	)
}
