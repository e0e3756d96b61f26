package wire

import (
	"unicode/utf8"

	"code.hybscloud.com/zlink/buf"
	"github.com/pkg/errors"
)

// WriteBytes writes a VLE length followed by the bytes themselves (§4.B.3,
// "prefixed" form).
func WriteBytes(w *buf.Writer, p []byte) error {
	if err := WriteVLE(w, uint64(len(p))); err != nil {
		return err
	}
	return w.WriteExact(p)
}

// ReadBytes reads a VLE length then that many bytes, returning a borrowed
// view into the decode buffer.
func ReadBytes(r *buf.Reader) ([]byte, error) {
	n, err := ReadVLEusize(r)
	if err != nil {
		return nil, err
	}
	b, err := r.ReadSlice(n)
	if err != nil {
		return nil, errors.Wrap(ErrCouldNotRead, "wire: read prefixed bytes")
	}
	return b, nil
}

// ReadBytesBounded reads exactly n bytes, where n was already consumed from
// an outer length field (§4.B.3, "bounded-by-outer" form).
func ReadBytesBounded(r *buf.Reader, n int) ([]byte, error) {
	b, err := r.ReadSlice(n)
	if err != nil {
		return nil, errors.Wrap(ErrCouldNotRead, "wire: read bounded bytes")
	}
	return b, nil
}

// WriteString writes a VLE length followed by the UTF-8 bytes of s.
func WriteString(w *buf.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads a VLE-length-prefixed string and validates it is UTF-8.
// An invalid encoding surfaces as ErrFmt.
func ReadString(r *buf.Reader) (string, error) {
	b, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrFmt
	}
	return string(b), nil
}
