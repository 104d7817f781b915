package domain

import (
	"encoding/binary"
	"time"
)

// Canonical builds the unambiguous byte representation that signatures cover.
//
// Variable-length fields carry a 4-byte big-endian length prefix, fixed-size fields are
// appended raw. Two different field sequences never produce the same bytes.
type Canonical struct {
	buf []byte
}

// NewCanonical starts a payload tagged with a domain separator so a signature over one
// artifact type can never be replayed as another.
func NewCanonical(tag string) *Canonical {
	c := &Canonical{buf: make([]byte, 0, 256)}
	return c.String(tag)
}

// Bytes appends a length-prefixed byte slice.
func (c *Canonical) Bytes(data []byte) *Canonical {
	if len(data) > 0xFFFFFFFF {
		panic("data length exceeds uint32 max (4GB)")
	}
	c.buf = binary.BigEndian.AppendUint32(c.buf, uint32(len(data)))
	c.buf = append(c.buf, data...)
	return c
}

// String appends a length-prefixed string.
func (c *Canonical) String(s string) *Canonical {
	return c.Bytes([]byte(s))
}

// Fixed appends data without a length prefix. Use only for fixed-size values such as UUIDs.
func (c *Canonical) Fixed(data []byte) *Canonical {
	c.buf = append(c.buf, data...)
	return c
}

// Uint64 appends v as 8 big-endian bytes.
func (c *Canonical) Uint64(v uint64) *Canonical {
	c.buf = binary.BigEndian.AppendUint64(c.buf, v)
	return c
}

// Time appends the UTC instant in Unix nanoseconds.
func (c *Canonical) Time(t time.Time) *Canonical {
	return c.Uint64(uint64(t.UTC().UnixNano()))
}

// Sum returns the accumulated payload.
func (c *Canonical) Sum() []byte {
	return c.buf
}
