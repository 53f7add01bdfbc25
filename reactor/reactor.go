// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral completion reactor interface.

package reactor

import "github.com/momentics/ackd/api"

// Reactor multiplexes asynchronous operations over one OS polling facility.
type Reactor interface {
	// Submit queues op. It never blocks and fails with api.ErrQueueFull
	// when the number of in-flight operations reached the queue depth.
	api.Submitter

	// Wait blocks until at least one completion is available, then drains
	// up to len(out) of them. It returns (0, nil) when woken by Wake with
	// nothing to report.
	Wait(out []api.Completion) (int, error)

	// Poll is Wait without blocking: it starts queued submissions, checks
	// readiness once and returns whatever completed, possibly nothing.
	Poll(out []api.Completion) (int, error)

	// Release deregisters fd, cancels its parked operations and closes it.
	Release(fd int) error

	// Wake interrupts a blocked Wait. Safe to call from any goroutine.
	Wake() error

	// Inflight returns the number of submitted but not yet reaped operations.
	Inflight() int

	// Close releases the polling facility.
	Close() error
}
