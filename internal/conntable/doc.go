// Package conntable
// Author: momentics <momentics@gmail.com>
//
// Bounded registry of active connections keyed by generation-tagged slots.
// Every asynchronous operation carries the (slot, generation) pair of the
// connection that issued it; releasing a slot bumps its generation so
// completions that arrive afterwards are recognised as stale and never
// reach a connection that later reuses the slot or the descriptor.
//
// The table performs no I/O and takes no locks: it is owned by the single
// dispatch goroutine of the server.

package conntable
