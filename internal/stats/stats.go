// Package stats holds the process-wide request counters the Proxy
// Controller updates and /api/stats exposes (spec.md §4.I, §6).
package stats

import (
	"sync"
	"sync/atomic"
)

// Stats is a set of concurrency-safe counters. The zero value is not
// usable; construct with New.
type Stats struct {
	Total  atomic.Int64
	Errors atomic.Int64

	mu      sync.Mutex
	byLabel map[string]int64

	tokenSum atomic.Int64
	tokenN   atomic.Int64
}

// New returns a ready-to-use Stats.
func New() *Stats {
	return &Stats{byLabel: make(map[string]int64)}
}

// IncRequest records one inbound request under the given classification
// label.
func (s *Stats) IncRequest(label string) {
	s.Total.Add(1)

	s.mu.Lock()
	s.byLabel[label]++
	s.mu.Unlock()
}

// IncError records one request that resulted in a mapped error.
func (s *Stats) IncError() {
	s.Errors.Add(1)
}

// ObserveInputTokens folds an estimated input-token count into the running
// mean surfaced on /api/stats.
func (s *Stats) ObserveInputTokens(n int) {
	s.tokenSum.Add(int64(n))
	s.tokenN.Add(1)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	Total             int64
	Errors            int64
	ByLabel           map[string]int64
	MeanInputTokens   float64
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	byLabel := make(map[string]int64, len(s.byLabel))
	for k, v := range s.byLabel {
		byLabel[k] = v
	}
	s.mu.Unlock()

	mean := 0.0
	if n := s.tokenN.Load(); n > 0 {
		mean = float64(s.tokenSum.Load()) / float64(n)
	}

	return Snapshot{
		Total:           s.Total.Load(),
		Errors:          s.Errors.Load(),
		ByLabel:         byLabel,
		MeanInputTokens: mean,
	}
}
