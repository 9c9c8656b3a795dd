package objectid

import (
	"encoding/binary"
	"fmt"
)

// Decoder reads back the canonical representation produced by Encoder.
// It is a thin cursor over a byte slice; callers must read fields in the
// exact order they were written.
type Decoder struct {
	b   []byte
	pos int
}

// NewDecoder wraps b for sequential reads.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.b) {
		return fmt.Errorf("objectid: decode: need %d bytes at offset %d, have %d", n, d.pos, len(d.b))
	}
	return nil
}

// String reads a length-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	if err := d.need(4); err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint32(d.b[d.pos:]))
	d.pos += 4
	if err := d.need(n); err != nil {
		return "", err
	}
	s := string(d.b[d.pos : d.pos+n])
	d.pos += n
	return s, nil
}

// Bytes reads a length-prefixed byte slice.
func (d *Decoder) Bytes() ([]byte, error) {
	if err := d.need(4); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(d.b[d.pos:]))
	d.pos += 4
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.b[d.pos:d.pos+n])
	d.pos += n
	return out, nil
}

// Uint8 reads a single byte tag.
func (d *Decoder) Uint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.b[d.pos]
	d.pos++
	return v, nil
}

// Uint32 reads a big-endian uint32.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.b[d.pos:])
	d.pos += 4
	return v, nil
}

// Uint64 reads a big-endian uint64.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.b[d.pos:])
	d.pos += 8
	return v, nil
}

// Int64 reads a big-endian int64.
func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// ID reads 32 raw bytes into an ID.
func (d *Decoder) ID() (ID, error) {
	var id ID
	if err := d.need(Size); err != nil {
		return id, err
	}
	copy(id[:], d.b[d.pos:d.pos+Size])
	d.pos += Size
	return id, nil
}

// Bool reads a single presence/flag byte.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint8()
	return v != 0, err
}

// Len reads a repeated-field element count written by Encoder.Len.
func (d *Decoder) Len() (int, error) {
	v, err := d.Uint32()
	return int(v), err
}

// Done reports whether every byte has been consumed, used by callers that
// want to assert a round-trip decode consumed exactly the encoded bytes.
func (d *Decoder) Done() bool {
	return d.pos == len(d.b)
}
