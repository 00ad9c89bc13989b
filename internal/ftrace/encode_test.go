package ftrace

// Wire-format builders for test payloads. Events and bundles are assembled
// field by field so tests can produce both well-formed and deliberately
// broken shapes.

import (
	"google.golang.org/protobuf/encoding/protowire"
)

func varintField(num protowire.Number, v uint64) []byte {
	b := protowire.AppendTag(nil, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func bytesField(num protowire.Number, payload []byte) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func packedField(num protowire.Number, vals ...uint64) []byte {
	var p []byte
	for _, v := range vals {
		p = protowire.AppendVarint(p, v)
	}
	return bytesField(num, p)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// fastPathEvent builds an event with the timestamp as its first field and
// enough trailing payload to satisfy the fast-path length guard.
func fastPathEvent(ts uint64) []byte {
	return concat(
		varintField(eventFieldTimestamp, ts),
		bytesField(11, []byte("sched_switch_payload")),
	)
}

// slowPathEvent builds an event whose timestamp is not the first field, so
// only the generic scan finds it.
func slowPathEvent(ts uint64) []byte {
	return concat(
		varintField(2, 77),
		varintField(eventFieldTimestamp, ts),
	)
}

func cpuField(cpu uint64) []byte {
	return varintField(bundleFieldCPU, cpu)
}

func clockField(sel uint64) []byte {
	return varintField(bundleFieldClock, sel)
}

func eventField(ev []byte) []byte {
	return bytesField(bundleFieldEvent, ev)
}

func compactField(compact []byte) []byte {
	return bytesField(bundleFieldCompactSched, compact)
}

func internTable(comms ...string) []byte {
	var out []byte
	for _, c := range comms {
		out = append(out, bytesField(compactFieldInternTable, []byte(c))...)
	}
	return out
}
