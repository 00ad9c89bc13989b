// Package sorter is the stage downstream of the per-CPU tokenizers: it
// collects events tagged with CPU and trace time and hands them out in
// global timestamp order. Tokenizers push events in capture order per CPU;
// cross-CPU ordering happens only here.
package sorter

import (
	"sort"

	"github.com/tracepipe/tracepipe/internal/trace/blob"
	"github.com/tracepipe/tracepipe/internal/trace/stringpool"
)

// SchedSwitch is a scheduler context-switch event decoded from the compact
// columnar encoding.
type SchedSwitch struct {
	PrevState int64
	NextPID   int32
	NextPrio  int32
	NextComm  stringpool.ID
}

// SchedWaking is a scheduler wakeup event decoded from the compact columnar
// encoding.
type SchedWaking struct {
	PID       int32
	TargetCPU int32
	Prio      int32
	Comm      stringpool.ID
}

// EventType discriminates the payload carried by an Event.
type EventType int

const (
	EventFtraceRaw EventType = iota
	EventSchedSwitch
	EventSchedWaking
)

// Event is one sortable entry. Raw is set for EventFtraceRaw; Switch and
// Waking for their respective types.
type Event struct {
	CPU       uint32
	Timestamp int64
	Type      EventType
	Raw       blob.View
	Switch    SchedSwitch
	Waking    SchedWaking

	seq uint64
}

// Sorter buffers pushed events until drained. It is not safe for concurrent
// use; the import pipeline is single-threaded.
type Sorter struct {
	events  []Event
	nextSeq uint64
}

func New() *Sorter {
	return &Sorter{}
}

// PushFtraceEvent buffers a raw ftrace event. The view is retained until the
// sorter is drained.
func (s *Sorter) PushFtraceEvent(cpu uint32, ts int64, ev blob.View) {
	s.push(Event{CPU: cpu, Timestamp: ts, Type: EventFtraceRaw, Raw: ev})
}

// PushSchedSwitch buffers an inline scheduler switch event.
func (s *Sorter) PushSchedSwitch(cpu uint32, ts int64, ev SchedSwitch) {
	s.push(Event{CPU: cpu, Timestamp: ts, Type: EventSchedSwitch, Switch: ev})
}

// PushSchedWaking buffers an inline scheduler wakeup event.
func (s *Sorter) PushSchedWaking(cpu uint32, ts int64, ev SchedWaking) {
	s.push(Event{CPU: cpu, Timestamp: ts, Type: EventSchedWaking, Waking: ev})
}

func (s *Sorter) push(ev Event) {
	ev.seq = s.nextSeq
	s.nextSeq++
	s.events = append(s.events, ev)
}

// Len returns the number of buffered events.
func (s *Sorter) Len() int {
	return len(s.events)
}

// ExtractOrdered drains all buffered events to emit in timestamp order.
// Events with equal timestamps keep their arrival order.
func (s *Sorter) ExtractOrdered(emit func(Event)) {
	sort.Slice(s.events, func(i, j int) bool {
		if s.events[i].Timestamp != s.events[j].Timestamp {
			return s.events[i].Timestamp < s.events[j].Timestamp
		}
		return s.events[i].seq < s.events[j].seq
	})
	for _, ev := range s.events {
		emit(ev)
	}
	s.events = s.events[:0]
}
