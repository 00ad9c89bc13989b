package ftrace

import (
	"github.com/tracepipe/tracepipe/internal/trace/clock"
	"github.com/tracepipe/tracepipe/internal/trace/sorter"
	"github.com/tracepipe/tracepipe/internal/trace/stats"
	"github.com/tracepipe/tracepipe/internal/trace/stringpool"
	"github.com/tracepipe/tracepipe/internal/wire"
)

// tokenizeCompactSched decodes the compact scheduling sub-message: an intern
// table shared by both event kinds, plus packed columns recovered into
// individual switch and waking events.
func (t *Tokenizer) tokenizeCompactSched(cpu uint32, clockID clock.ID, compact []byte) {
	// Build the interning table for comm fields. Index order is declaration
	// order; both decoders index into it.
	var table []stringpool.ID
	dec := wire.NewDecoder(compact)
	for {
		f, ok := dec.Next()
		if !ok {
			break
		}
		if f.Num == compactFieldInternTable {
			table = append(table, t.pool.Intern(f.Bytes))
		}
	}

	t.decodeCompactSwitch(cpu, clockID, compact, table)
	t.decodeCompactWaking(cpu, clockID, compact, table)
}

// decodeCompactSwitch walks the switch-event columns in lockstep. The
// timestamp column is delta-encoded; the accumulator starts at zero for
// every batch and is never carried across bundles.
func (t *Tokenizer) decodeCompactSwitch(cpu uint32, clockID clock.ID, compact []byte, table []stringpool.ID) {
	var parseErr bool
	tsIt := packedColumn(compact, compactFieldSwitchTimestamp, &parseErr)
	stateIt := packedColumn(compact, compactFieldSwitchPrevState, &parseErr)
	pidIt := packedColumn(compact, compactFieldSwitchNextPID, &parseErr)
	prioIt := packedColumn(compact, compactFieldSwitchNextPrio, &parseErr)
	commIt := packedColumn(compact, compactFieldSwitchNextCommIndex, &parseErr)

	var tsAcc int64
	for tsIt.Valid() && stateIt.Valid() && pidIt.Valid() && prioIt.Valid() && commIt.Valid() {
		tsAcc += int64(tsIt.Value())

		commIdx := commIt.Value()
		if commIdx >= uint64(len(table)) {
			// The encoding promises in-bounds indices but the input is
			// untrusted telemetry: skip the row instead of trusting it.
			t.stats.Increment(stats.CompactSchedCommIndexOutOfBounds)
			advanceAll(tsIt, stateIt, pidIt, prioIt, commIt)
			continue
		}

		ev := sorter.SchedSwitch{
			PrevState: int64(stateIt.Value()),
			NextPID:   int32(pidIt.Value()),
			NextPrio:  int32(prioIt.Value()),
			NextComm:  table[commIdx],
		}

		ts, ok := t.resolveTraceTime(clockID, tsAcc)
		if !ok {
			// An unresolvable clock aborts the remainder of the batch.
			return
		}
		t.sink.PushSchedSwitch(cpu, ts, ev)
		advanceAll(tsIt, stateIt, pidIt, prioIt, commIt)
	}

	// Every column must be decoded correctly and fully; leftovers in any
	// column mean the batch was inconsistent even though decoded rows have
	// already been forwarded.
	sizesMatch := !tsIt.Valid() && !stateIt.Valid() && !pidIt.Valid() && !prioIt.Valid() && !commIt.Valid()
	if parseErr || !sizesMatch {
		t.stats.Increment(stats.CompactSchedParseErrors)
	}
}

// decodeCompactWaking is the waking-event analogue of decodeCompactSwitch.
func (t *Tokenizer) decodeCompactWaking(cpu uint32, clockID clock.ID, compact []byte, table []stringpool.ID) {
	var parseErr bool
	tsIt := packedColumn(compact, compactFieldWakingTimestamp, &parseErr)
	pidIt := packedColumn(compact, compactFieldWakingPID, &parseErr)
	cpuIt := packedColumn(compact, compactFieldWakingTargetCPU, &parseErr)
	prioIt := packedColumn(compact, compactFieldWakingPrio, &parseErr)
	commIt := packedColumn(compact, compactFieldWakingCommIndex, &parseErr)

	var tsAcc int64
	for tsIt.Valid() && pidIt.Valid() && cpuIt.Valid() && prioIt.Valid() && commIt.Valid() {
		tsAcc += int64(tsIt.Value())

		commIdx := commIt.Value()
		if commIdx >= uint64(len(table)) {
			t.stats.Increment(stats.CompactSchedCommIndexOutOfBounds)
			advanceAll(tsIt, pidIt, cpuIt, prioIt, commIt)
			continue
		}

		ev := sorter.SchedWaking{
			PID:       int32(pidIt.Value()),
			TargetCPU: int32(cpuIt.Value()),
			Prio:      int32(prioIt.Value()),
			Comm:      table[commIdx],
		}

		ts, ok := t.resolveTraceTime(clockID, tsAcc)
		if !ok {
			return
		}
		t.sink.PushSchedWaking(cpu, ts, ev)
		advanceAll(tsIt, pidIt, cpuIt, prioIt, commIt)
	}

	sizesMatch := !tsIt.Valid() && !pidIt.Valid() && !cpuIt.Valid() && !prioIt.Valid() && !commIt.Valid()
	if parseErr || !sizesMatch {
		t.stats.Increment(stats.CompactSchedParseErrors)
	}
}

func advanceAll(cursors ...*packedCursor) {
	for _, c := range cursors {
		c.Advance()
	}
}
