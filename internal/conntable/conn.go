// File: internal/conntable/conn.go
// Package conntable
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection state owned by the table.

package conntable

import (
	"time"

	"github.com/momentics/ackd/api"
)

// Conn is one active client session.
type Conn struct {
	ID        api.Tag
	Fd        int
	SessionID string
	Remote    string
	State     api.ConnState

	// Buf holds the most recent message followed by a zero terminator.
	Buf [api.MaxMessageLen + 1]byte
	N   int

	LastMessageAt time.Time
	OpenedAt      time.Time
	Messages      uint64
}

// ReadBuf returns the slice a receive operation fills.
func (c *Conn) ReadBuf() []byte {
	return c.Buf[:api.MaxMessageLen]
}

// Message returns the last received message.
func (c *Conn) Message() []byte {
	return c.Buf[:c.N]
}

// SetMessage records a receive of n bytes and terminates the buffer.
func (c *Conn) SetMessage(n int, at time.Time) {
	if n > api.MaxMessageLen {
		n = api.MaxMessageLen
	}
	c.N = n
	c.Buf[n] = 0
	c.LastMessageAt = at
	c.Messages++
}

func (c *Conn) reset() {
	*c = Conn{ID: c.ID}
}
