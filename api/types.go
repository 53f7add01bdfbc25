// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import "time"

const (
	// MaxMessageLen caps one client message.
	MaxMessageLen = 128
	// DefaultMaxConnections bounds the connection table.
	DefaultMaxConnections = 100
	// DefaultAckDelay separates message receipt from its acknowledgment.
	DefaultAckDelay = 3000 * time.Millisecond
	// DefaultQueueDepth bounds in-flight reactor operations.
	DefaultQueueDepth = 4096
	// DefaultBacklog is the listen(2) backlog.
	DefaultBacklog = 512
)

// ConnState enumerates the protocol state of one connection.
type ConnState int

const (
	StateReading ConnState = iota
	StatePendingAck
	StateAcknowledging
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StatePendingAck:
		return "pending-ack"
	case StateAcknowledging:
		return "acknowledging"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ServiceInfo exposes descriptive runtime info for diagnostics.
type ServiceInfo struct {
	Name      string
	Version   string
	StartedAt time.Time
}
