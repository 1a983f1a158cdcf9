// Package codec implements the SDB binary layer: LEB128 and little-endian
// primitives, the ASCII file header, the streams/candles metadata blocks
// and the per-record sample encodings.
package codec

import (
	"errors"
	"io"
)

// ErrOverflow is returned when a varint does not terminate within the
// 64-bit range.
var ErrOverflow = errors.New("leb128: value overflows 64 bits")

// AppendUleb appends the unsigned LEB128 encoding of v to dst.
func AppendUleb(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
			continue
		}
		return append(dst, b)
	}
}

// AppendSleb appends the signed LEB128 encoding of v to dst.
func AppendSleb(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7 // arithmetic shift
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// Uleb decodes an unsigned LEB128 value from r. It never reads past the
// terminating byte.
func Uleb(r io.ByteReader) (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 || (shift == 63 && b > 1) {
			return 0, ErrOverflow
		}
		v |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}

// Sleb decodes a signed LEB128 value from r.
func Sleb(r io.ByteReader) (int64, error) {
	var v int64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 {
			return 0, ErrOverflow
		}
		v |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				v |= -1 << shift
			}
			return v, nil
		}
	}
}
