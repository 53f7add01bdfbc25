// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides a completion-based event reactor.
//
// Callers submit operations (accept, recv, send, file write, timeout) that
// never block, then call Wait to collect completions in batches. On Linux
// the reactor emulates a submission/completion ring on top of epoll: every
// operation is attempted eagerly, parked on EAGAIN and retried on readiness.
// Timeouts live in a min-heap that bounds the epoll wait.
//
// A Reactor is not safe for concurrent use, except for Wake.
package reactor
