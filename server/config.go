// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/ackd/api"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Host           string        // IPv4 bind address, empty means all interfaces
	Port           int           // TCP port, 0 picks an ephemeral one
	LogDir         string        // directory of the <port>.txt output file
	MaxConnections int           // connection table capacity
	AckDelay       time.Duration // delay between receipt and acknowledgment
	QueueDepth     int           // in-flight reactor operations
	Backlog        int           // listen(2) backlog
	BatchSize      int           // completions drained per Wait
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:           "",
		Port:           0,
		LogDir:         ".",
		MaxConnections: api.DefaultMaxConnections,
		AckDelay:       api.DefaultAckDelay,
		QueueDepth:     api.DefaultQueueDepth,
		Backlog:        api.DefaultBacklog,
		BatchSize:      64,
	}
}

// Validate checks the configuration. Every connection holds at most two
// operations in flight and the listener one more, so the queue must be
// deeper than that.
func (c *Config) Validate() error {
	invalid := func(field string, value any) error {
		return api.NewError(api.ErrCodeInvalidArgument, "invalid server config").
			WithContext("field", field).
			WithContext("value", value).
			Wrap(api.ErrInvalidArgument)
	}
	switch {
	case c.Port < 0 || c.Port > 65535:
		return invalid("Port", c.Port)
	case c.MaxConnections <= 0:
		return invalid("MaxConnections", c.MaxConnections)
	case c.AckDelay <= 0:
		return invalid("AckDelay", c.AckDelay)
	case c.QueueDepth <= c.MaxConnections*2+1:
		return invalid("QueueDepth", c.QueueDepth)
	case c.Backlog <= 0:
		return invalid("Backlog", c.Backlog)
	case c.BatchSize <= 0:
		return invalid("BatchSize", c.BatchSize)
	}
	return nil
}
