package ftrace

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tracepipe/tracepipe/internal/trace/blob"
	"github.com/tracepipe/tracepipe/internal/trace/clock"
	"github.com/tracepipe/tracepipe/internal/trace/stats"
	"github.com/tracepipe/tracepipe/internal/trace/stringpool"
	"github.com/tracepipe/tracepipe/internal/wire"
)

// Tokenizer turns serialized ftrace bundles into individual timestamped
// events. It is a synchronous single-threaded stage: TokenizeBundle runs to
// completion on each bundle and keeps no cross-bundle state beyond the
// injected collaborators.
type Tokenizer struct {
	sink   EventSink
	clocks *clock.Tracker
	pool   *stringpool.Pool
	stats  *stats.Stats
	logger *zap.Logger
}

func NewTokenizer(sink EventSink, clocks *clock.Tracker, pool *stringpool.Pool, st *stats.Stats, logger *zap.Logger) *Tokenizer {
	return &Tokenizer{
		sink:   sink,
		clocks: clocks,
		pool:   pool,
		stats:  st,
		logger: logger,
	}
}

// TokenizeBundle processes one per-CPU bundle. Structural problems (missing
// or out-of-range CPU) drop the bundle and return nil; an unsupported clock
// domain is a hard error for the caller to handle.
func (t *Tokenizer) TokenizeBundle(bundle blob.View) error {
	var (
		cpu      uint64
		hasCPU   bool
		clockSel uint64
		compact  []byte
		events   []wire.Field
	)
	dec := wire.NewDecoder(bundle.Data())
	for {
		f, ok := dec.Next()
		if !ok {
			break
		}
		switch f.Num {
		case bundleFieldCPU:
			cpu = f.Varint
			hasCPU = true
		case bundleFieldClock:
			clockSel = f.Varint
		case bundleFieldCompactSched:
			compact = f.Bytes
		case bundleFieldEvent:
			events = append(events, f)
		}
	}

	if !hasCPU {
		t.logger.Warn("CPU field not found in ftrace bundle")
		t.stats.Increment(stats.FtraceBundleTokenizerErrors)
		return nil
	}
	if cpu >= MaxCPUs {
		t.logger.Warn("CPU index exceeds supported maximum, dropping bundle",
			zap.Uint64("cpu", cpu),
			zap.Int("max_cpus", MaxCPUs))
		return nil
	}

	var clockID clock.ID
	switch clockSel {
	case ftraceClockUnspecified:
		clockID = clock.Boottime
	case ftraceClockGlobal:
		clockID = clock.Monotonic
	case ftraceClockLocal:
		return fmt.Errorf("cannot parse ftrace bundle with local clock: %w", ErrUnsupportedClock)
	default:
		return fmt.Errorf("cannot parse ftrace bundle with clock selector %d: %w", clockSel, ErrUnsupportedClock)
	}

	if compact != nil {
		t.tokenizeCompactSched(uint32(cpu), clockID, compact)
	}

	// Events are forwarded in declaration order; it encodes capture order
	// on this CPU.
	for _, ef := range events {
		ev, err := bundle.Slice(bundle.Offset()+ef.Offset, len(ef.Bytes))
		if err != nil {
			t.stats.Increment(stats.FtraceBundleTokenizerErrors)
			continue
		}
		t.tokenizeEvent(uint32(cpu), clockID, ev)
	}
	return nil
}

// tokenizeEvent extracts the timestamp from one serialized event and
// forwards it. The timestamp is almost always the first field, so a tag-byte
// check selects a bounded direct varint decode; anything else falls back to
// a generic field scan.
func (t *Tokenizer) tokenizeEvent(cpu uint32, clockID clock.ID, event blob.View) {
	data := event.Data()

	var rawTS uint64
	var found bool
	if len(data) > wire.MaxVarintLen && data[0] == timestampTag {
		rawTS, found = fastPathTimestamp(data)
	} else {
		rawTS, found = slowPathTimestamp(data)
	}

	if !found {
		t.logger.Warn("Timestamp field not found in ftrace event")
		t.stats.Increment(stats.FtraceBundleTokenizerErrors)
		return
	}

	// The clock tracker counts its own conversion failures; an unresolved
	// timestamp just drops this event.
	ts, ok := t.resolveTraceTime(clockID, int64(rawTS))
	if !ok {
		return
	}
	t.sink.PushFtraceEvent(cpu, ts, event)
}

// fastPathTimestamp decodes the varint immediately after the timestamp tag
// byte. Callers have already checked the tag and minimum length.
func fastPathTimestamp(data []byte) (uint64, bool) {
	v, n := wire.ParseVarint(data[1 : 1+wire.MaxVarintLen])
	return v, n > 0
}

// slowPathTimestamp scans every field of the event for the timestamp field
// number.
func slowPathTimestamp(data []byte) (uint64, bool) {
	dec := wire.NewDecoder(data)
	f, ok := dec.FindField(eventFieldTimestamp)
	if !ok || f.Type != protowire.VarintType {
		return 0, false
	}
	return f.Varint, true
}

// resolveTraceTime applies the clock resolution policy: boottime timestamps
// are already trace time on most captures, so the tracker is consulted only
// for other domains.
func (t *Tokenizer) resolveTraceTime(clockID clock.ID, ts int64) (int64, bool) {
	if clockID == clock.Boottime {
		return ts, true
	}
	v, err := t.clocks.ToTraceTime(clockID, ts)
	if err != nil {
		return 0, false
	}
	return v, true
}
