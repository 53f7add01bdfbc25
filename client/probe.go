// File: client/probe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrent probe: N clients each send one message and wait for its ack.

package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/ackd/internal/logging"
)

// Result is the outcome of one probe client.
type Result struct {
	ID  int
	Ack Ack
	Err error
}

// Report summarizes a probe run.
type Report struct {
	Results []Result
	OK      int
	Failed  int
	Min     time.Duration
	Max     time.Duration
	Median  time.Duration
	Elapsed time.Duration
}

// Probe runs n concurrent clients against cfg.Addr, each sending msg once.
// Clients still waiting when ctx ends are closed and reported as failed.
func Probe(ctx context.Context, cfg *Config, n int, msg []byte) Report {
	start := time.Now()
	results := make([]Result, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer wg.Done()
			results[id] = probeOne(ctx, cfg, id, msg)
		}(i)
	}
	wg.Wait()
	return summarize(results, time.Since(start))
}

func probeOne(ctx context.Context, cfg *Config, id int, msg []byte) Result {
	c, err := Dial(cfg)
	if err != nil {
		return Result{ID: id, Err: err}
	}
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()
	defer c.Close()

	ack, err := c.Send(msg)
	if err != nil {
		logging.Debug("Probe client failed", zap.Int("id", id), zap.Error(err))
	}
	return Result{ID: id, Ack: ack, Err: err}
}

func summarize(results []Result, elapsed time.Duration) Report {
	rep := Report{Results: results, Elapsed: elapsed}
	lat := make([]time.Duration, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			rep.Failed++
			continue
		}
		rep.OK++
		lat = append(lat, r.Ack.Latency)
	}
	if len(lat) == 0 {
		return rep
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	rep.Min = lat[0]
	rep.Max = lat[len(lat)-1]
	rep.Median = lat[len(lat)/2]
	return rep
}
