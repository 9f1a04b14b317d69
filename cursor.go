package psd

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// Cursor is a positioned, bounds-checked view over a borrowed byte
// slice. It never copies the underlying bytes and never outlives the
// slice it was built from; every read advances the position and every
// operation that would run past the end of the slice returns
// UnexpectedEof instead of panicking.
type Cursor struct {
	data []byte
	pos  int
	base int // offset of data[0] within the original top-level buffer, for error reporting
}

// NewCursor builds a Cursor over data, whose position-0 byte is at
// byte offset `base` in whatever larger buffer it was sliced from (0
// for a top-level Decode call).
func NewCursor(data []byte, base int) *Cursor {
	return &Cursor{data: data, pos: 0, base: base}
}

// Offset returns the absolute byte offset of the cursor's current
// position within the original top-level buffer.
func (c *Cursor) Offset() int {
	return c.base + c.pos
}

// Remaining returns the number of unread bytes in this view.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// Len returns the total length of the view, independent of position.
func (c *Cursor) Len() int {
	return len(c.data)
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.pos+n > len(c.data) {
		return errUnexpectedEOF(c.Offset(), n, c.Remaining())
	}
	return nil
}

// Skip advances the cursor by n bytes without reading them.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// Take returns an independent sub-Cursor over the next n bytes and
// advances past them. The returned Cursor shares the underlying array
// but has its own position counter.
func (c *Cursor) Take(n int) (*Cursor, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	sub := NewCursor(c.data[c.pos:c.pos+n], c.Offset())
	c.pos += n
	return sub, nil
}

// Peek returns the next n bytes without advancing the cursor.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	return c.data[c.pos : c.pos+n], nil
}

// Bytes returns the next n bytes and advances past them.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (c *Cursor) ReadUint8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a big-endian unsigned 16-bit integer.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadInt16 reads a big-endian signed 16-bit integer.
func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a big-endian unsigned 32-bit integer.
func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadInt32 reads a big-endian signed 32-bit integer.
func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a big-endian unsigned 64-bit integer.
func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ExpectSignature reads len(tag) bytes and fails with InvalidSignature
// unless they match tag exactly.
func (c *Cursor) ExpectSignature(tag string) error {
	offset := c.Offset()
	got, err := c.Bytes(len(tag))
	if err != nil {
		return err
	}
	if string(got) != tag {
		return errInvalidSignature(offset, tag, string(got))
	}
	return nil
}

// ReadSignature reads a 4-byte signature without validating it.
func (c *Cursor) ReadSignature() (string, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadPascalString reads a u8-length-prefixed byte string and then
// skips padding so the total bytes consumed (1 + length + padding) is
// a multiple of pad. pad must be 1, 2, or 4.
func (c *Cursor) ReadPascalString(pad int) (string, error) {
	length, err := c.ReadUint8()
	if err != nil {
		return "", err
	}

	var s string
	if length > 0 {
		b, err := c.Bytes(int(length))
		if err != nil {
			return "", wrapErr(MalformedPascalString, c.Offset(), "reading pascal string body", err)
		}
		s = string(b)
	}

	total := 1 + int(length)
	if padding := (pad - total%pad) % pad; padding > 0 {
		if err := c.Skip(padding); err != nil {
			return "", wrapErr(MalformedPascalString, c.Offset(), "reading pascal string padding", err)
		}
	}

	return s, nil
}

var utf16BEDecoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()

// ReadUnicodeString reads a u32-length-prefixed (in UTF-16 code units)
// big-endian Unicode string, as used for luni layer names and several
// image-resource fields.
func (c *Cursor) ReadUnicodeString() (string, error) {
	units, err := c.ReadUint32()
	if err != nil {
		return "", err
	}
	if units == 0 {
		return "", nil
	}

	raw, err := c.Bytes(int(units) * 2)
	if err != nil {
		return "", wrapErr(MalformedUnicodeName, c.Offset(), "reading unicode string body", err)
	}

	decoded, err := utf16BEDecoder.Bytes(raw)
	if err != nil {
		return "", wrapErr(MalformedUnicodeName, c.Offset(), "decoding UTF-16BE", err)
	}
	return string(decoded), nil
}
