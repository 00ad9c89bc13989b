package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func appendBytesField(dst []byte, num protowire.Number, payload []byte) []byte {
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	return protowire.AppendBytes(dst, payload)
}

func appendVarintField(dst []byte, num protowire.Number, v uint64) []byte {
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	return protowire.AppendVarint(dst, v)
}

// testTrace builds a one-packet trace: cpu 1, default clock, a single
// timestamp-first event plus a compact sched batch with one switch row.
func testTrace(t *testing.T) []byte {
	t.Helper()

	event := appendVarintField(nil, 1, 1000)
	event = appendBytesField(event, 11, []byte("raw-event-payload"))

	var deltas, states, pids, prios, comms []byte
	deltas = protowire.AppendVarint(deltas, 500)
	states = protowire.AppendVarint(states, 0)
	pids = protowire.AppendVarint(pids, 42)
	prios = protowire.AppendVarint(prios, 120)
	comms = protowire.AppendVarint(comms, 0)

	var compact []byte
	compact = appendBytesField(compact, 5, []byte("swapper")) // intern table
	compact = appendBytesField(compact, 1, deltas)
	compact = appendBytesField(compact, 2, states)
	compact = appendBytesField(compact, 3, pids)
	compact = appendBytesField(compact, 4, prios)
	compact = appendBytesField(compact, 6, comms)

	bundle := appendVarintField(nil, 1, 1) // cpu
	bundle = appendBytesField(bundle, 2, event)
	bundle = appendBytesField(bundle, 4, compact)

	packet := appendBytesField(nil, 1, bundle)
	return appendBytesField(nil, 1, packet)
}

func TestDecodeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.bin")
	require.NoError(t, os.WriteFile(path, testTrace(t), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"decode", path})

	require.NoError(t, rootCmd.Execute())

	lines := out.String()
	assert.Contains(t, lines, `sched_switch prev_state=0 next_pid=42 next_prio=120 next_comm="swapper"`)
	assert.Contains(t, lines, "ftrace_event")
	// sched_switch at ts=500 sorts before the raw event at ts=1000.
	assert.Less(t, bytes.Index(out.Bytes(), []byte("sched_switch")), bytes.Index(out.Bytes(), []byte("ftrace_event")))
}

func TestDecodeCommand_MissingFile(t *testing.T) {
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"decode", filepath.Join(t.TempDir(), "nope.bin")})

	assert.Error(t, rootCmd.Execute())
}
