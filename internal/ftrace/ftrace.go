// Package ftrace tokenizes per-CPU bundles of kernel ftrace data into
// timestamped events for the sorter. The wire shapes it consumes are the
// ftrace event bundle, the per-event records inside it, and the compact
// columnar encoding used for high-volume scheduler events.
package ftrace

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tracepipe/tracepipe/internal/trace/blob"
	"github.com/tracepipe/tracepipe/internal/trace/sorter"
	"github.com/tracepipe/tracepipe/internal/wire"
)

// MaxCPUs bounds the CPU index a bundle may carry. Bundles claiming a larger
// CPU are dropped.
const MaxCPUs = 128

// ErrUnsupportedClock is returned for bundles whose clock domain has no
// defined conversion to trace time.
var ErrUnsupportedClock = errors.New("unsupported ftrace clock")

// Field numbers of the ftrace event bundle.
const (
	bundleFieldCPU          = protowire.Number(1)
	bundleFieldEvent        = protowire.Number(2)
	bundleFieldLostEvents   = protowire.Number(3)
	bundleFieldCompactSched = protowire.Number(4)
	bundleFieldClock        = protowire.Number(5)
)

// The timestamp is field 1 of every ftrace event; its varint tag byte is the
// fast-path guard.
const eventFieldTimestamp = protowire.Number(1)

var timestampTag = wire.TagVarint(eventFieldTimestamp)

// Clock domain selector values on the wire.
const (
	ftraceClockUnspecified = 0
	ftraceClockUnknown     = 1
	ftraceClockGlobal      = 2
	ftraceClockLocal       = 3
)

// Field numbers of the compact scheduling sub-message. Switch and waking
// events are stored structure-of-arrays style as packed varint columns; the
// intern table is a repeated bytes field indexed by declaration order.
const (
	compactFieldSwitchTimestamp     = protowire.Number(1)
	compactFieldSwitchPrevState     = protowire.Number(2)
	compactFieldSwitchNextPID       = protowire.Number(3)
	compactFieldSwitchNextPrio      = protowire.Number(4)
	compactFieldInternTable         = protowire.Number(5)
	compactFieldSwitchNextCommIndex = protowire.Number(6)
	compactFieldWakingTimestamp     = protowire.Number(7)
	compactFieldWakingPID           = protowire.Number(8)
	compactFieldWakingTargetCPU     = protowire.Number(9)
	compactFieldWakingPrio          = protowire.Number(10)
	compactFieldWakingCommIndex     = protowire.Number(11)
)

// EventSink receives tokenized events tagged with CPU and trace time. The
// sorter implements it; tests substitute recorders.
type EventSink interface {
	PushFtraceEvent(cpu uint32, ts int64, ev blob.View)
	PushSchedSwitch(cpu uint32, ts int64, ev sorter.SchedSwitch)
	PushSchedWaking(cpu uint32, ts int64, ev sorter.SchedWaking)
}
