// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the per-connection acknowledgment protocol as a finite-state
// machine driven by reactor completions.
//
// Per connection the machine runs a closed loop:
//
//	Reading --recv>0--> PendingAck --timer--> Acknowledging --send--> Reading
//
// A receive issues two operations at once: an append of the payload to the
// shared log and a timer of the acknowledgment delay. The append completion
// never changes state and may arrive before or after the timer. No new
// receive is issued until the acknowledgment is fully sent, so messages of
// one client are strictly serialized.
//
// Completions are resolved through generation-tagged slots; completions for
// released connections are dropped as stale.
package protocol
