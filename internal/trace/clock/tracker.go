// Package clock normalizes raw per-domain tick counts into trace time.
//
// Trace time is CLOCK_BOOTTIME. Other clock domains are converted using
// offsets derived from clock snapshots: simultaneous readings of several
// clocks emitted by the capture side. The tracker keeps snapshots in arrival
// order and converts against the most recent one that covers both the source
// clock and trace time.
package clock

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tracepipe/tracepipe/internal/trace/stats"
)

// ID identifies a clock domain. Values follow the kernel clockid_t numbers
// used on the wire.
type ID int32

const (
	Unknown   ID = 0
	Monotonic ID = 3
	Boottime  ID = 6
)

// TraceTimeClock is the canonical clock every emitted timestamp is
// normalized to.
const TraceTimeClock = Boottime

// ErrNoConversion is returned when no snapshot links the source clock to
// trace time.
var ErrNoConversion = errors.New("no conversion path to trace time")

// Tracker converts raw clock readings into trace time.
type Tracker struct {
	logger *zap.Logger
	stats  *stats.Stats

	snapshots []map[ID]int64
}

func NewTracker(st *stats.Stats, logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger, stats: st}
}

// AddSnapshot records a simultaneous reading of two or more clocks.
func (t *Tracker) AddSnapshot(readings map[ID]int64) error {
	if len(readings) < 2 {
		return fmt.Errorf("clock snapshot needs at least two clocks, got %d", len(readings))
	}
	snap := make(map[ID]int64, len(readings))
	for id, ts := range readings {
		snap[id] = ts
	}
	t.snapshots = append(t.snapshots, snap)
	return nil
}

// ToTraceTime converts ts from the given clock domain into trace time. The
// tracker owns its own failure diagnostics: an unresolvable conversion
// increments the clock_sync_failures counter before returning
// ErrNoConversion.
func (t *Tracker) ToTraceTime(id ID, ts int64) (int64, error) {
	if id == TraceTimeClock {
		return ts, nil
	}
	for i := len(t.snapshots) - 1; i >= 0; i-- {
		snap := t.snapshots[i]
		src, okSrc := snap[id]
		dst, okDst := snap[TraceTimeClock]
		if okSrc && okDst {
			return ts + (dst - src), nil
		}
	}
	if t.stats != nil {
		t.stats.Increment(stats.ClockSyncFailures)
	}
	if t.logger != nil {
		t.logger.Debug("No snapshot links clock to trace time",
			zap.Int32("clock_id", int32(id)))
	}
	return 0, fmt.Errorf("clock %d: %w", id, ErrNoConversion)
}
