package wire

import (
	"math/bits"

	"code.hybscloud.com/zlink/buf"
	"github.com/pkg/errors"
)

// vleMaxLen is the maximum number of bytes a 64-bit VLE value can occupy:
// 8 bytes carrying 7 payload bits each (56 bits) plus a 9th byte carrying
// the remaining 8 bits.
const vleMaxLen = 9

// EncodedLenVLE returns the number of bytes WriteVLE would emit for v,
// without writing anything. It is the length function §8's
// "encoded-length accuracy" property checks against the real encoder.
func EncodedLenVLE(v uint64) int {
	if v == 0 {
		return 1
	}
	bitLen := bits.Len64(v)
	n := (bitLen + 6) / 7
	if n > 8 {
		// The 9th byte carries a full 8 bits with no continuation bit,
		// so values needing more than 56 payload bits (8*7) still fit
		// in exactly 9 bytes.
		return 9
	}
	return n
}

// WriteVLE encodes v as 1-9 bytes: the low 7 bits of each of the first up
// to 8 bytes, high bit set while another byte follows; a 9th byte, if
// needed, carries the remaining 8 bits with no continuation bit.
func WriteVLE(w *buf.Writer, v uint64) error {
	for i := 0; i < 8; i++ {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return w.WriteU8(b)
		}
		if err := w.WriteU8(b | 0x80); err != nil {
			return errors.Wrap(err, "wire: write VLE continuation byte")
		}
	}
	// 9th byte: all 8 remaining bits, no continuation semantics.
	return w.WriteU8(byte(v))
}

// ReadVLE decodes a VLE-encoded uint64. It reads continuation bytes while
// the high bit is set, masking in 7 payload bits each time, until either a
// byte without the continuation bit arrives or the shift reaches 56 bits
// (8 bytes consumed) — at which point the 9th and final byte is folded in
// unmasked, carrying the remaining 8 bits. This mirrors the bound in
// §4.B.1: a 9-byte encoding never appears for values fitting in 8 bytes,
// and no input can force a 10th byte to be read. If the underlying reader
// is exhausted mid-sequence, ErrMalformedVLE reports the truncated
// encoding.
func ReadVLE(r *buf.Reader) (uint64, error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, errors.Wrap(ErrMalformedVLE, "wire: truncated VLE")
	}

	var value uint64
	var shift uint
	for b&0x80 != 0 && shift != 7*(vleMaxLen-1) {
		value |= uint64(b&0x7f) << shift
		b, err = r.ReadU8()
		if err != nil {
			return 0, errors.Wrap(ErrMalformedVLE, "wire: truncated VLE")
		}
		shift += 7
	}
	value |= uint64(b) << shift
	return value, nil
}

// ReadVLEu8 decodes a VLE value and range-checks it into a uint8.
func ReadVLEu8(r *buf.Reader) (uint8, error) {
	v, err := ReadVLE(r)
	if err != nil {
		return 0, err
	}
	if v > 0xff {
		return 0, errors.Wrap(ErrCouldNotParseField, "wire: VLE value exceeds u8 range")
	}
	return uint8(v), nil
}

// ReadVLEu16 decodes a VLE value and range-checks it into a uint16.
func ReadVLEu16(r *buf.Reader) (uint16, error) {
	v, err := ReadVLE(r)
	if err != nil {
		return 0, err
	}
	if v > 0xffff {
		return 0, errors.Wrap(ErrCouldNotParseField, "wire: VLE value exceeds u16 range")
	}
	return uint16(v), nil
}

// ReadVLEu32 decodes a VLE value and range-checks it into a uint32.
func ReadVLEu32(r *buf.Reader) (uint32, error) {
	v, err := ReadVLE(r)
	if err != nil {
		return 0, err
	}
	if v > 0xffffffff {
		return 0, errors.Wrap(ErrCouldNotParseField, "wire: VLE value exceeds u32 range")
	}
	return uint32(v), nil
}

// ReadVLEusize decodes a VLE value and range-checks it into an int usable
// as a length (never negative, never exceeding the platform int range).
func ReadVLEusize(r *buf.Reader) (int, error) {
	v, err := ReadVLE(r)
	if err != nil {
		return 0, err
	}
	if v > uint64(^uint(0)>>1) {
		return 0, errors.Wrap(ErrCouldNotParseField, "wire: VLE value exceeds usize range")
	}
	return int(v), nil
}
