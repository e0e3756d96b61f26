package wire

import (
	"encoding/binary"

	"code.hybscloud.com/zlink/buf"
	"github.com/pkg/errors"
)

// Fixed-width little-endian integers and raw byte arrays (§4.B.2). These
// are used where the wire format calls for a width known from context
// rather than self-delimited by VLE — the 2-byte stream length prefix and
// the batch_size field when S=1.

// WriteU16LE writes v as 2 little-endian bytes.
func WriteU16LE(w *buf.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return w.WriteExact(b[:])
}

// ReadU16LE reads 2 little-endian bytes into a uint16.
func ReadU16LE(r *buf.Reader) (uint16, error) {
	b, err := r.ReadSlice(2)
	if err != nil {
		return 0, errors.Wrap(ErrCouldNotRead, "wire: read u16le")
	}
	return binary.LittleEndian.Uint16(b), nil
}

// WriteU32LE writes v as 4 little-endian bytes.
func WriteU32LE(w *buf.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return w.WriteExact(b[:])
}

// ReadU32LE reads 4 little-endian bytes into a uint32.
func ReadU32LE(r *buf.Reader) (uint32, error) {
	b, err := r.ReadSlice(4)
	if err != nil {
		return 0, errors.Wrap(ErrCouldNotRead, "wire: read u32le")
	}
	return binary.LittleEndian.Uint32(b), nil
}

// WriteU64LE writes v as 8 little-endian bytes.
func WriteU64LE(w *buf.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return w.WriteExact(b[:])
}

// ReadU64LE reads 8 little-endian bytes into a uint64.
func ReadU64LE(r *buf.Reader) (uint64, error) {
	b, err := r.ReadSlice(8)
	if err != nil {
		return 0, errors.Wrap(ErrCouldNotRead, "wire: read u64le")
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WriteArray copies a fixed-size byte array verbatim (e.g. a ZenohId of
// known length).
func WriteArray(w *buf.Writer, a []byte) error {
	return w.WriteExact(a)
}

// ReadArray reads exactly n bytes verbatim and returns a borrowed view.
func ReadArray(r *buf.Reader, n int) ([]byte, error) {
	s, err := r.ReadSlice(n)
	if err != nil {
		return nil, errors.Wrap(ErrCouldNotRead, "wire: read fixed array")
	}
	return s, nil
}
