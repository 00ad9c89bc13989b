// Package blob provides immutable, zero-copy views over a shared capture
// buffer. A View never copies data; its lifetime is bounded by the owning
// Blob.
package blob

import (
	"fmt"
	"unsafe"
)

// Blob owns one contiguous capture buffer, typically an entire trace file
// read into memory or an mmapped region.
type Blob struct {
	data []byte
}

func New(data []byte) *Blob {
	return &Blob{data: data}
}

func (b *Blob) Len() int {
	return len(b.data)
}

// View returns a view covering the whole buffer.
func (b *Blob) View() View {
	return View{blob: b, data: b.data}
}

// View is an offset-addressable window into a Blob. The zero View is empty
// and not usable for slicing.
type View struct {
	blob *Blob
	off  int
	data []byte
}

// Data returns the viewed bytes. Callers must treat them as read-only.
func (v View) Data() []byte {
	return v.data
}

func (v View) Len() int {
	return len(v.data)
}

// Offset returns the view's start position within the owning blob.
func (v View) Offset() int {
	return v.off
}

// Slice computes a sub-view. off and length are relative to the owning blob,
// not to this view, matching how parsers address fields they located inside
// a larger record.
func (v View) Slice(off, length int) (View, error) {
	if v.blob == nil {
		return View{}, fmt.Errorf("slice of zero view")
	}
	if off < 0 || length < 0 || off+length > len(v.blob.data) {
		return View{}, fmt.Errorf("slice [%d:%d) out of range for blob of %d bytes", off, off+length, len(v.blob.data))
	}
	return View{blob: v.blob, off: off, data: v.blob.data[off : off+length]}, nil
}

// OffsetOf maps a subslice of the owning buffer back to its offset within
// the blob. sub must alias the blob's memory.
func (v View) OffsetOf(sub []byte) (int, bool) {
	if v.blob == nil || len(sub) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(v.blob.data)))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(sub)))
	if p < base {
		return 0, false
	}
	d := int(p - base)
	if d+len(sub) > len(v.blob.data) {
		return 0, false
	}
	return d, true
}
