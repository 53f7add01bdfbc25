// File: reactor/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Deadline-ordered timeout queue.

package reactor

import (
	"container/heap"
	"time"

	"github.com/momentics/ackd/api"
)

type timer struct {
	deadline time.Time
	seq      uint64
	op       api.Op
}

// timerHeap orders timers by deadline, FIFO among equal deadlines.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(*timer)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

type timerQueue struct {
	h   timerHeap
	seq uint64
}

func (q *timerQueue) add(now time.Time, op api.Op) {
	q.seq++
	heap.Push(&q.h, &timer{deadline: now.Add(op.Delay), seq: q.seq, op: op})
}

// expire pops every timer due at now.
func (q *timerQueue) expire(now time.Time, fn func(api.Op)) {
	for q.h.Len() > 0 && !q.h[0].deadline.After(now) {
		t := heap.Pop(&q.h).(*timer)
		fn(t.op)
	}
}

// timeoutMs returns the epoll timeout until the nearest deadline, -1 when
// no timer is pending.
func (q *timerQueue) timeoutMs(now time.Time) int {
	if q.h.Len() == 0 {
		return -1
	}
	d := q.h[0].deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > 1<<30 {
		ms = 1 << 30
	}
	return int(ms)
}

func (q *timerQueue) len() int { return q.h.Len() }
