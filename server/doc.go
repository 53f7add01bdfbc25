// File: server/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package server wires the listen socket, the shared append log, the
// completion reactor and the protocol machine into one dispatch loop.
//
// All connection state is owned by the goroutine running Run; Shutdown is
// safe to call from any goroutine.
package server
