// Package kbin provides small big-endian primitives for reading and
// writing the controller's wire frames.
package kbin

import (
	"encoding/binary"
	"errors"
)

// ErrNotEnoughData is returned whenever a read runs past the end of the
// source buffer.
var ErrNotEnoughData = errors.New("kbin: not enough data to read this field")

// Reader is a forward-only cursor over a byte slice.
type Reader struct {
	Src []byte
	err error
}

// Uint16 reads a big-endian uint16, advancing the cursor.
func (r *Reader) Uint16() uint16 {
	if r.err != nil {
		return 0
	}
	if len(r.Src) < 2 {
		r.err = ErrNotEnoughData
		return 0
	}
	v := binary.BigEndian.Uint16(r.Src)
	r.Src = r.Src[2:]
	return v
}

// Int16 reads a big-endian int16, advancing the cursor.
func (r *Reader) Int16() int16 {
	return int16(r.Uint16())
}

// Span reads n raw bytes, advancing the cursor. The returned slice aliases
// the reader's underlying array; callers that retain it past the frame's
// lifetime must copy it.
func (r *Reader) Span(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.Src) < n {
		r.err = ErrNotEnoughData
		return nil
	}
	s := r.Src[:n]
	r.Src = r.Src[n:]
	return s
}

// Complete returns the first error encountered during reading, if any.
func (r *Reader) Complete() error { return r.err }

// Writer appends big-endian primitives to a growable byte buffer.
type Writer struct {
	Dst []byte
}

func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Dst = append(w.Dst, b[:]...)
}

func (w *Writer) Int16(v int16) { w.Uint16(uint16(v)) }

func (w *Writer) Span(b []byte) { w.Dst = append(w.Dst, b...) }
