// File: internal/conntable/table.go
// Package conntable
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Generation-tagged slot allocator.

package conntable

import (
	"time"

	"github.com/google/uuid"

	"github.com/momentics/ackd/api"
)

type slot struct {
	gen  uint32
	used bool
	conn Conn
}

// Table maps tags to connections with a fixed capacity.
type Table struct {
	slots []slot
	free  []uint32 // LIFO of unused slot indices
	live  int
}

// New constructs a table with room for capacity connections.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = api.DefaultMaxConnections
	}
	t := &Table{
		slots: make([]slot, capacity),
		free:  make([]uint32, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		t.free = append(t.free, uint32(i))
	}
	return t
}

// Allocate registers fd in a free slot. The connection starts in the
// Reading state with a zeroed buffer.
func (t *Table) Allocate(fd int) (*Conn, error) {
	if len(t.free) == 0 {
		return nil, api.ErrTableFull
	}
	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	s := &t.slots[idx]
	s.gen++
	s.used = true
	s.conn.ID = api.Tag{Slot: idx, Gen: s.gen}
	s.conn.reset()
	s.conn.Fd = fd
	s.conn.SessionID = uuid.NewString()
	s.conn.State = api.StateReading
	s.conn.OpenedAt = time.Now()
	t.live++
	return &s.conn, nil
}

// Lookup resolves a tag. It fails for free slots and for tags issued
// under an older generation.
func (t *Table) Lookup(tag api.Tag) (*Conn, bool) {
	if int(tag.Slot) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[tag.Slot]
	if !s.used || s.gen != tag.Gen {
		return nil, false
	}
	return &s.conn, true
}

// Release frees the slot named by tag. Later lookups with the same tag
// fail. It reports whether a live connection was released.
func (t *Table) Release(tag api.Tag) bool {
	if int(tag.Slot) >= len(t.slots) {
		return false
	}
	s := &t.slots[tag.Slot]
	if !s.used || s.gen != tag.Gen {
		return false
	}
	s.used = false
	s.gen++
	s.conn.State = api.StateClosed
	s.conn.Fd = -1
	t.free = append(t.free, tag.Slot)
	t.live--
	return true
}

// Len returns the number of live connections.
func (t *Table) Len() int { return t.live }

// Cap returns the table capacity.
func (t *Table) Cap() int { return len(t.slots) }

// Full reports whether Allocate would fail.
func (t *Table) Full() bool { return len(t.free) == 0 }

// Range applies fn to every live connection.
func (t *Table) Range(fn func(*Conn)) {
	for i := range t.slots {
		if t.slots[i].used {
			fn(&t.slots[i].conn)
		}
	}
}
