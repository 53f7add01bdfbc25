package server_test

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/ackd/api"
	"github.com/momentics/ackd/server"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := server.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.MaxConnections != 100 || cfg.AckDelay != 3*time.Second || cfg.Backlog != 512 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*server.Config)
		field  string
	}{
		{"port", func(c *server.Config) { c.Port = 70000 }, "Port"},
		{"conns", func(c *server.Config) { c.MaxConnections = 0 }, "MaxConnections"},
		{"delay", func(c *server.Config) { c.AckDelay = 0 }, "AckDelay"},
		{"depth", func(c *server.Config) { c.MaxConnections = 10; c.QueueDepth = 21 }, "QueueDepth"},
		{"backlog", func(c *server.Config) { c.Backlog = -1 }, "Backlog"},
		{"batch", func(c *server.Config) { c.BatchSize = 0 }, "BatchSize"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := server.DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, api.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			var apiErr *api.Error
			if !errors.As(err, &apiErr) || apiErr.Context["field"] != tc.field {
				t.Errorf("error context = %v", err)
			}
		})
	}
}

func TestNewServer_AppliesOptions(t *testing.T) {
	if _, err := server.NewServer(nil, server.WithQueueDepth(3)); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("shallow queue accepted: %v", err)
	}
	s, err := server.NewServer(nil, server.WithMaxConnections(4), server.WithQueueDepth(10), server.WithAckDelay(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if s.Addr() != "" || s.Port() != 0 {
		t.Errorf("address set before start: %q", s.Addr())
	}
}
