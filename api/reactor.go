// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Operation and completion types shared by the reactor, the connection table
// and the protocol state machine.

package api

import (
	"fmt"
	"time"
)

// OpKind identifies an asynchronous operation.
type OpKind uint8

const (
	OpAccept OpKind = iota + 1
	OpRecv
	OpSend
	OpWrite
	OpTimeout
)

func (k OpKind) String() string {
	switch k {
	case OpAccept:
		return "accept"
	case OpRecv:
		return "recv"
	case OpSend:
		return "send"
	case OpWrite:
		return "write"
	case OpTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("op(%d)", uint8(k))
	}
}

// ListenerSlot is the reserved slot index carried by accept operations.
const ListenerSlot = ^uint32(0)

// Tag pairs a connection slot with the generation it had when the
// operation was issued. A completion whose generation no longer matches
// the slot is stale.
type Tag struct {
	Slot uint32
	Gen  uint32
}

// ListenerTag is the tag carried by accept operations.
var ListenerTag = Tag{Slot: ListenerSlot}

func (t Tag) String() string {
	if t.Slot == ListenerSlot {
		return "listener"
	}
	return fmt.Sprintf("%d/%d", t.Slot, t.Gen)
}

// Op describes one operation submitted to a Reactor.
type Op struct {
	Kind  OpKind
	Fd    int
	Buf   []byte        // destination for Recv, source for Send and Write
	Delay time.Duration // Timeout only
	Tag   Tag
}

// Completion reports the outcome of a previously submitted Op.
//
// Res is the accepted descriptor for OpAccept, the byte count for
// OpRecv/OpSend/OpWrite and zero for OpTimeout. Err is set when the
// operation failed; Res is then -1. Peer is the remote address of an
// accepted connection.
type Completion struct {
	Kind OpKind
	Tag  Tag
	Fd   int
	Res  int
	Err  error
	Peer string
}

// Submitter accepts operations without blocking.
type Submitter interface {
	Submit(op Op) error
}
