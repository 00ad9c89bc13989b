// Package wire provides low-level protobuf wire-format primitives for the
// trace importers: a bounded varint parser for hot paths and a generic
// forward-only field scanner for everything else.
package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// MaxVarintLen is the maximum number of bytes a 64-bit base-128 varint can
// occupy on the wire.
const MaxVarintLen = 10

// ParseVarint decodes a base-128 varint from the start of data. It returns
// the decoded value and the number of bytes consumed. A count of zero means
// the input was truncated or malformed. The decode is bounded to
// MaxVarintLen bytes; bits past the 64th are dropped.
func ParseVarint(data []byte) (uint64, int) {
	var v uint64
	n := len(data)
	if n > MaxVarintLen {
		n = MaxVarintLen
	}
	for i := 0; i < n; i++ {
		b := data[i]
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b < 0x80 {
			return v, i + 1
		}
	}
	return 0, 0
}

// TagVarint returns the single tag byte for a varint-typed field. Only valid
// for field numbers below 16, which covers every field this importer probes.
func TagVarint(num protowire.Number) byte {
	return byte(uint64(num)<<3) | byte(protowire.VarintType)
}

// TagBytes returns the single tag byte for a length-delimited field.
func TagBytes(num protowire.Number) byte {
	return byte(uint64(num)<<3) | byte(protowire.BytesType)
}

// Field is one decoded field of a serialized message.
type Field struct {
	Num  protowire.Number
	Type protowire.Type

	// Varint holds the value for varint, fixed32 and fixed64 fields
	// (fixed-width values are widened).
	Varint uint64

	// Bytes is the payload of a length-delimited field. It aliases the
	// scanned message, never a copy.
	Bytes []byte

	// Offset is the position of Bytes within the scanned message. It lets
	// callers re-slice the payload relative to an owning buffer.
	Offset int
}

// Decoder is a forward-only scanner over the fields of one serialized
// message. Malformed input stops iteration and sets the parse-error flag;
// fields decoded before the malformed region remain valid.
type Decoder struct {
	data     []byte
	pos      int
	parseErr bool
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Next returns the next field, or ok=false at the end of the message or on
// malformed input.
func (d *Decoder) Next() (Field, bool) {
	if d.pos >= len(d.data) {
		return Field{}, false
	}
	num, typ, n := protowire.ConsumeTag(d.data[d.pos:])
	if n < 0 {
		return d.fail()
	}
	d.pos += n
	f := Field{Num: num, Type: typ}
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(d.data[d.pos:])
		if n < 0 {
			return d.fail()
		}
		f.Varint = v
		d.pos += n
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(d.data[d.pos:])
		if n < 0 {
			return d.fail()
		}
		f.Varint = uint64(v)
		d.pos += n
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(d.data[d.pos:])
		if n < 0 {
			return d.fail()
		}
		f.Varint = v
		d.pos += n
	case protowire.BytesType:
		b, n := protowire.ConsumeBytes(d.data[d.pos:])
		if n < 0 {
			return d.fail()
		}
		f.Bytes = b
		f.Offset = d.pos + n - len(b)
		d.pos += n
	default:
		// Groups are not part of any consumed schema.
		return d.fail()
	}
	return f, true
}

func (d *Decoder) fail() (Field, bool) {
	d.parseErr = true
	d.pos = len(d.data)
	return Field{}, false
}

// FindField scans forward for the first field with the given number.
func (d *Decoder) FindField(num protowire.Number) (Field, bool) {
	for {
		f, ok := d.Next()
		if !ok {
			return Field{}, false
		}
		if f.Num == num {
			return f, true
		}
	}
}

// ParseError reports whether the decoder hit malformed input.
func (d *Decoder) ParseError() bool {
	return d.parseErr
}

// Reset rewinds the decoder to the start of the message.
func (d *Decoder) Reset() {
	d.pos = 0
	d.parseErr = false
}
