package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var errTruncated = errors.New("unexpected end of data")

// reader is a little-endian cursor over a byte slice. The first failure sticks:
// later reads return zero values and callers check err once per section.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.remaining() {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", errTruncated, n, r.off, r.remaining())
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

// blob reads a length-prefixed payload whose length was already decoded.
func (r *reader) blob(n uint64) []byte {
	if r.err != nil {
		return nil
	}
	if n > uint64(r.remaining()) {
		r.err = fmt.Errorf("%w: payload of %d bytes at offset %d", errTruncated, n, r.off)
		return nil
	}
	return r.take(int(n))
}

func (r *reader) str16() string {
	return string(r.take(int(r.u16())))
}

// line reads up to and consuming the next '\n'.
func (r *reader) line() string {
	if r.err != nil {
		return ""
	}
	for i := r.off; i < len(r.buf); i++ {
		if r.buf[i] == '\n' {
			s := string(r.buf[r.off:i])
			r.off = i + 1
			return s
		}
	}
	r.err = fmt.Errorf("%w: unterminated string at offset %d", errTruncated, r.off)
	return ""
}
