// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/momentics/ackd/control"
)

// Option customizes server initialization.
type Option func(*Server)

// WithAckDelay overrides the acknowledgment delay.
func WithAckDelay(d time.Duration) Option {
	return func(s *Server) {
		s.cfg.AckDelay = d
	}
}

// WithMaxConnections overrides the connection table capacity.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		s.cfg.MaxConnections = n
	}
}

// WithQueueDepth overrides the reactor queue depth.
func WithQueueDepth(n int) Option {
	return func(s *Server) {
		s.cfg.QueueDepth = n
	}
}

// WithLogDir sets the directory of the output file.
func WithLogDir(dir string) Option {
	return func(s *Server) {
		s.cfg.LogDir = dir
	}
}

// WithLogger installs l as the process diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics shares an external registry.
func WithMetrics(reg *control.MetricsRegistry) Option {
	return func(s *Server) {
		s.metrics = reg
	}
}
