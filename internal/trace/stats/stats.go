// Package stats tracks named anomaly counters for the import pipeline.
// Counters are cheap process-wide diagnostics: decode anomalies increment
// them and processing moves on. Values are kept in atomics so tests and the
// CLI can read them back directly, and mirrored to OTEL counters for
// deployments that export metrics.
package stats

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Counter names used by the ftrace importer.
const (
	FtraceBundleTokenizerErrors      = "ftrace_bundle_tokenizer_errors"
	CompactSchedParseErrors          = "compact_sched_has_parse_errors"
	CompactSchedCommIndexOutOfBounds = "compact_sched_comm_index_out_of_bounds"
	ClockSyncFailures                = "clock_sync_failures"
)

type counter struct {
	value atomic.Int64
	otel  metric.Int64Counter
}

// Stats is a set of named counters. Increment never fails; OTEL counter
// creation failure degrades to atomic-only counting.
type Stats struct {
	logger *zap.Logger
	meter  metric.Meter

	mu       sync.RWMutex
	counters map[string]*counter
}

func New(logger *zap.Logger) *Stats {
	s := &Stats{
		logger:   logger,
		meter:    otel.Meter("tracepipe_import"),
		counters: make(map[string]*counter),
	}
	for _, name := range []string{
		FtraceBundleTokenizerErrors,
		CompactSchedParseErrors,
		CompactSchedCommIndexOutOfBounds,
		ClockSyncFailures,
	} {
		s.counters[name] = s.newCounter(name)
	}
	return s
}

func (s *Stats) newCounter(name string) *counter {
	c := &counter{}
	oc, err := s.meter.Int64Counter(
		name+"_total",
		metric.WithDescription("Trace import anomaly counter"),
		metric.WithUnit("1"),
	)
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("Failed to create anomaly counter",
				zap.String("counter", name),
				zap.Error(err))
		}
	} else {
		c.otel = oc
	}
	return c
}

// Increment adds one to the named counter, creating it on first use.
func (s *Stats) Increment(name string) {
	s.mu.RLock()
	c, ok := s.counters[name]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if c, ok = s.counters[name]; !ok {
			c = s.newCounter(name)
			s.counters[name] = c
		}
		s.mu.Unlock()
	}
	c.value.Add(1)
	if c.otel != nil {
		c.otel.Add(context.Background(), 1)
	}
}

// Value returns the current count for name, zero if never incremented.
func (s *Stats) Value(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.counters[name]; ok {
		return c.value.Load()
	}
	return 0
}

// Snapshot returns a copy of all non-zero counters, for CLI reporting.
func (s *Stats) Snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.counters))
	for name, c := range s.counters {
		if v := c.value.Load(); v != 0 {
			out[name] = v
		}
	}
	return out
}
