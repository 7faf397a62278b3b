/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package bytereader implements big-endian primitive decoding over a byte
// cursor with exact-length reads, the foundation every other decoding
// package in this module is built on.
package bytereader

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/jacobin-vm/classjit/src/clserr"
)

// Reader is a forward-only cursor over an in-memory byte slice. It never
// seeks; Sub produces a bounded window for scoping attribute/code parsing
// to an exact declared length.
type Reader struct {
	buf []byte
	pos int
}

// New wraps buf in a Reader starting at offset 0.
func New(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor offset.
func (r *Reader) Pos() int { return r.pos }

// Len returns the total length of the underlying buffer.
func (r *Reader) Len() int { return len(r.buf) }

// Remaining returns the number of unread bytes. Purely a diagnostic
// convenience; it does not affect decode semantics.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// ReadExact reads exactly n bytes and advances the cursor by n, or fails
// clserr.Io if fewer than n bytes remain.
func (r *Reader) ReadExact(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, clserr.NewIo(io.ErrUnexpectedEOF)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Sub produces a bounded Reader over exactly the next n bytes and advances
// this reader's cursor past them, so the sub-reader's extent is fixed
// up-front (used to scope attribute and code parsing to their declared
// length).
func (r *Reader) Sub(n int) (*Reader, error) {
	b, err := r.ReadExact(n)
	if err != nil {
		return nil, err
	}
	return New(b), nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}
