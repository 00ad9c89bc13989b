// Package pipeline walks a serialized trace and routes its packets: ftrace
// bundles to the tokenizer, clock snapshots to the clock tracker. Everything
// else in a packet is skipped.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tracepipe/tracepipe/internal/ftrace"
	"github.com/tracepipe/tracepipe/internal/trace/blob"
	"github.com/tracepipe/tracepipe/internal/trace/clock"
	"github.com/tracepipe/tracepipe/internal/wire"
)

// Field numbers of the trace container and its packets.
const (
	traceFieldPacket = protowire.Number(1)

	packetFieldFtraceEvents  = protowire.Number(1)
	packetFieldClockSnapshot = protowire.Number(6)

	snapshotFieldClock  = protowire.Number(1)
	clockFieldID        = protowire.Number(1)
	clockFieldTimestamp = protowire.Number(2)
)

// Reader drives one trace through the import pipeline.
type Reader struct {
	tokenizer *ftrace.Tokenizer
	clocks    *clock.Tracker
	logger    *zap.Logger
}

func NewReader(tokenizer *ftrace.Tokenizer, clocks *clock.Tracker, logger *zap.Logger) *Reader {
	return &Reader{tokenizer: tokenizer, clocks: clocks, logger: logger}
}

// Read walks all packets of the trace held by b, in order. Framing errors
// and unsupported clock domains abort the read.
func (r *Reader) Read(b *blob.Blob) error {
	root := b.View()
	dec := wire.NewDecoder(root.Data())
	n := 0
	for {
		f, ok := dec.Next()
		if !ok {
			break
		}
		if f.Num != traceFieldPacket || f.Type != protowire.BytesType {
			continue
		}
		pkt, err := root.Slice(f.Offset, len(f.Bytes))
		if err != nil {
			return fmt.Errorf("packet %d out of range: %w", n, err)
		}
		if err := r.readPacket(pkt); err != nil {
			return fmt.Errorf("packet %d: %w", n, err)
		}
		n++
	}
	if dec.ParseError() {
		return fmt.Errorf("malformed trace after %d packets", n)
	}
	r.logger.Debug("Trace read complete", zap.Int("packets", n))
	return nil
}

func (r *Reader) readPacket(pkt blob.View) error {
	dec := wire.NewDecoder(pkt.Data())
	for {
		f, ok := dec.Next()
		if !ok {
			break
		}
		switch f.Num {
		case packetFieldFtraceEvents:
			if f.Type != protowire.BytesType {
				continue
			}
			bundle, err := pkt.Slice(pkt.Offset()+f.Offset, len(f.Bytes))
			if err != nil {
				return fmt.Errorf("bundle out of range: %w", err)
			}
			if err := r.tokenizer.TokenizeBundle(bundle); err != nil {
				return err
			}
		case packetFieldClockSnapshot:
			if f.Type != protowire.BytesType {
				continue
			}
			if err := r.readClockSnapshot(f.Bytes); err != nil {
				return err
			}
		}
	}
	if dec.ParseError() {
		return fmt.Errorf("malformed packet")
	}
	return nil
}

func (r *Reader) readClockSnapshot(data []byte) error {
	readings := make(map[clock.ID]int64)
	dec := wire.NewDecoder(data)
	for {
		f, ok := dec.Next()
		if !ok {
			break
		}
		if f.Num != snapshotFieldClock || f.Type != protowire.BytesType {
			continue
		}
		var id clock.ID
		var ts int64
		inner := wire.NewDecoder(f.Bytes)
		for {
			cf, ok := inner.Next()
			if !ok {
				break
			}
			switch cf.Num {
			case clockFieldID:
				id = clock.ID(cf.Varint)
			case clockFieldTimestamp:
				ts = int64(cf.Varint)
			}
		}
		readings[id] = ts
	}
	if len(readings) == 0 {
		return fmt.Errorf("clock snapshot with no clocks")
	}
	return r.clocks.AddSnapshot(readings)
}
