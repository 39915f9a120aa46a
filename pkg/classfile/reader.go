package classfile

import (
	"encoding/binary"
	"fmt"
)

// reader is a bounds checked big-endian cursor over a byte slice.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) u1() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrTruncated
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u2() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// bytes returns the next n bytes without copying. n is int64 so that u4
// lengths cannot overflow on 32-bit platforms.
func (r *reader) bytes(n int64) ([]byte, error) {
	if n < 0 || n > int64(r.remaining()) {
		return nil, fmt.Errorf("%w: need %d bytes, %d left", ErrTruncated, n, r.remaining())
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}
