package ftrace

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tracepipe/tracepipe/internal/wire"
)

// packedCursor iterates one packed varint column. It holds a decoded current
// element; Advance moves to the next. All cursors for a batch share one
// parse-error flag, set when any column contains malformed varint bytes.
//
// A cursor over a missing column starts invalid, so column absence behaves
// like an empty column.
type packedCursor struct {
	data     []byte
	pos      int
	parseErr *bool

	cur   uint64
	valid bool
}

func newPackedCursor(data []byte, parseErr *bool) *packedCursor {
	c := &packedCursor{data: data, parseErr: parseErr}
	c.Advance()
	return c
}

// Valid reports whether a current element is available.
func (c *packedCursor) Valid() bool {
	return c.valid
}

// Value returns the current element. Only meaningful while Valid.
func (c *packedCursor) Value() uint64 {
	return c.cur
}

// Advance decodes the next element. Malformed bytes set the shared parse
// error and end the column.
func (c *packedCursor) Advance() {
	if c.pos >= len(c.data) {
		c.valid = false
		return
	}
	v, n := wire.ParseVarint(c.data[c.pos:])
	if n == 0 {
		*c.parseErr = true
		c.valid = false
		c.pos = len(c.data)
		return
	}
	c.cur = v
	c.pos += n
	c.valid = true
}

// packedColumn locates a packed column field inside the compact sched
// message and returns a cursor over it. A field of the wrong wire type
// counts as a parse error.
func packedColumn(compact []byte, num protowire.Number, parseErr *bool) *packedCursor {
	dec := wire.NewDecoder(compact)
	f, ok := dec.FindField(num)
	if !ok {
		if dec.ParseError() {
			*parseErr = true
		}
		return newPackedCursor(nil, parseErr)
	}
	if f.Type != protowire.BytesType {
		*parseErr = true
		return newPackedCursor(nil, parseErr)
	}
	return newPackedCursor(f.Bytes, parseErr)
}
