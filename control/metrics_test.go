// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// metrics_test.go — MetricsRegistry set/add/snapshot coverage.
package control_test

import (
	"sync"
	"testing"

	"github.com/momentics/ackd/control"
)

func TestMetricsRegistry_Basic(t *testing.T) {
	reg := control.NewMetricsRegistry()
	reg.Set(control.MetricActive, int64(42))
	reg.Set("bar.status", "ok")

	metrics := reg.GetSnapshot()
	if metrics[control.MetricActive] != int64(42) {
		t.Error("MetricsRegistry: value mismatch")
	}
	if metrics["bar.status"] != "ok" {
		t.Error("MetricsRegistry: string value mismatch")
	}
	if reg.Updated().IsZero() {
		t.Error("MetricsRegistry: update time not recorded")
	}
}

func TestMetricsRegistry_AddConcurrent(t *testing.T) {
	reg := control.NewMetricsRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Add(control.MetricMessages, 1)
			}
		}()
	}
	wg.Wait()
	if got := reg.Counter(control.MetricMessages); got != 800 {
		t.Errorf("counter = %d, want 800", got)
	}
	if reg.Counter("missing") != 0 {
		t.Error("missing counter should read zero")
	}
}
