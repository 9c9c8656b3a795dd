package objectid

import (
	"bytes"
	"encoding/binary"
)

// Encoder builds the canonical byte representation required for every
// hashed object: fixed field order (the caller decides order by call
// sequence), length-prefixed strings, big-endian integers, and no map
// iteration leakage (callers must sort map-derived fields before writing
// them — Encoder itself never iterates a map).
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// String writes a length-prefixed UTF-8 string.
func (e *Encoder) String(s string) *Encoder {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	e.buf.Write(lenBuf[:])
	e.buf.WriteString(s)
	return e
}

// Bytes writes a length-prefixed byte slice.
func (e *Encoder) Bytes(b []byte) *Encoder {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	e.buf.Write(lenBuf[:])
	e.buf.Write(b)
	return e
}

// Uint8 writes a single byte tag, typically used to discriminate a closed
// sum type's variant before its fields.
func (e *Encoder) Uint8(v uint8) *Encoder {
	e.buf.WriteByte(v)
	return e
}

// Uint32 writes a big-endian uint32.
func (e *Encoder) Uint32(v uint32) *Encoder {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
	return e
}

// Uint64 writes a big-endian uint64, used for timestamps (Unix nanos) and
// counters.
func (e *Encoder) Uint64(v uint64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
	return e
}

// Int64 writes a big-endian int64.
func (e *Encoder) Int64(v int64) *Encoder {
	return e.Uint64(uint64(v))
}

// ID writes the raw 32 bytes of an ID, or 32 zero bytes for Nil — callers
// that need to distinguish "absent" from the zero ID should write a
// presence flag themselves first.
func (e *Encoder) ID(id ID) *Encoder {
	e.buf.Write(id[:])
	return e
}

// Bool writes a single byte: 1 for true, 0 for false.
func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
	return e
}

// Len writes the element count of a following repeated field, so a decoder
// can read back a slice without depending on a terminator byte.
func (e *Encoder) Len(n int) *Encoder {
	return e.Uint32(uint32(n))
}

// Finish returns the accumulated canonical byte representation.
func (e *Encoder) Finish() []byte {
	return e.buf.Bytes()
}
