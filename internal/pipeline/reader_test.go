package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tracepipe/tracepipe/internal/ftrace"
	"github.com/tracepipe/tracepipe/internal/trace/blob"
	"github.com/tracepipe/tracepipe/internal/trace/clock"
	"github.com/tracepipe/tracepipe/internal/trace/sorter"
	"github.com/tracepipe/tracepipe/internal/trace/stats"
	"github.com/tracepipe/tracepipe/internal/trace/stringpool"
)

type readerEnv struct {
	reader *Reader
	sorter *sorter.Sorter
	stats  *stats.Stats
	pool   *stringpool.Pool
}

func newReaderEnv(t *testing.T) *readerEnv {
	logger := zaptest.NewLogger(t)
	st := stats.New(logger)
	pool := stringpool.New()
	clocks := clock.NewTracker(st, logger)
	srt := sorter.New()
	tokenizer := ftrace.NewTokenizer(srt, clocks, pool, st, logger)
	return &readerEnv{
		reader: NewReader(tokenizer, clocks, logger),
		sorter: srt,
		stats:  st,
		pool:   pool,
	}
}

func bytesFld(num protowire.Number, payload []byte) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func varintFld(num protowire.Number, v uint64) []byte {
	b := protowire.AppendTag(nil, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func packet(payload []byte) []byte {
	return bytesFld(traceFieldPacket, payload)
}

func clockSnapshotPacket(readings map[clock.ID]int64) []byte {
	var snap []byte
	for id, ts := range readings {
		entry := append(varintFld(clockFieldID, uint64(id)), varintFld(clockFieldTimestamp, uint64(ts))...)
		snap = append(snap, bytesFld(snapshotFieldClock, entry)...)
	}
	return packet(bytesFld(packetFieldClockSnapshot, snap))
}

// fastPathEvent mirrors the event builder used by the ftrace tests: a
// timestamp-first record long enough for the tokenizer fast path.
func fastPathEvent(ts uint64) []byte {
	ev := varintFld(1, ts)
	return append(ev, bytesFld(11, []byte("event-payload-bytes"))...)
}

func bundlePacket(cpu uint64, clockSel uint64, events ...[]byte) []byte {
	bundle := varintFld(1, cpu)
	if clockSel != 0 {
		bundle = append(bundle, varintFld(5, clockSel)...)
	}
	for _, ev := range events {
		bundle = append(bundle, bytesFld(2, ev)...)
	}
	return packet(bytesFld(packetFieldFtraceEvents, bundle))
}

func TestReader_SnapshotThenBundle(t *testing.T) {
	env := newReaderEnv(t)

	trace := append(
		clockSnapshotPacket(map[clock.ID]int64{clock.Monotonic: 1000, clock.Boottime: 2000}),
		bundlePacket(1, 2, fastPathEvent(1))..., // global clock
	)

	require.NoError(t, env.reader.Read(blob.New(trace)))

	require.Equal(t, 1, env.sorter.Len())
	env.sorter.ExtractOrdered(func(ev sorter.Event) {
		assert.Equal(t, uint32(1), ev.CPU)
		assert.Equal(t, int64(1001), ev.Timestamp)
	})
}

func TestReader_MultiplePacketsOrdered(t *testing.T) {
	env := newReaderEnv(t)

	trace := append(
		bundlePacket(0, 0, fastPathEvent(300)),
		bundlePacket(1, 0, fastPathEvent(100), fastPathEvent(200))...,
	)

	require.NoError(t, env.reader.Read(blob.New(trace)))

	var got []int64
	env.sorter.ExtractOrdered(func(ev sorter.Event) {
		got = append(got, ev.Timestamp)
	})
	assert.Equal(t, []int64{100, 200, 300}, got)
}

func TestReader_UnsupportedClockPropagates(t *testing.T) {
	env := newReaderEnv(t)

	trace := bundlePacket(0, 3, fastPathEvent(1)) // local clock

	err := env.reader.Read(blob.New(trace))
	assert.ErrorIs(t, err, ftrace.ErrUnsupportedClock)
}

func TestReader_MalformedTrace(t *testing.T) {
	env := newReaderEnv(t)

	trace := append(bundlePacket(0, 0, fastPathEvent(1)), 0x0a, 0xff) // truncated packet
	assert.Error(t, env.reader.Read(blob.New(trace)))
}

func TestReader_SkipsUnknownPacketFields(t *testing.T) {
	env := newReaderEnv(t)

	// A packet carrying only a field this importer does not know.
	unknown := packet(bytesFld(42, []byte("opaque")))
	trace := append(unknown, bundlePacket(0, 0, fastPathEvent(7))...)

	require.NoError(t, env.reader.Read(blob.New(trace)))
	assert.Equal(t, 1, env.sorter.Len())
}
