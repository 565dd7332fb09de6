package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnexpectedEnd is returned when a read runs past the end of the buffer.
var ErrUnexpectedEnd = errors.New("unexpected end of buffer")

// Reader decodes fixed-width little-endian fields from a byte slice with
// position tracking. All reads are bounds-checked; a short buffer yields
// ErrUnexpectedEnd, never a panic.
type Reader struct {
	buf []byte
	pos int
}

// NewReader creates a Reader over buf starting at position 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Position returns the current byte position.
func (r *Reader) Position() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Seek moves the position to pos.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return r.wrapError(ErrUnexpectedEnd)
	}
	r.pos = pos
	return nil
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, r.wrapError(ErrUnexpectedEnd)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, r.wrapError(ErrUnexpectedEnd)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WrapError adds positional context to a decoding error.
func (r *Reader) WrapError(section string, err error) error {
	return fmt.Errorf("%s at offset %d: %w", section, r.pos, err)
}

func (r *Reader) wrapError(err error) error {
	return fmt.Errorf("offset %d: %w", r.pos, err)
}
