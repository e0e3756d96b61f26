package proto

import "github.com/klauspost/compress/s2"

// CompressFrame compresses a Frame's encoded NetworkMessage payload when
// the session negotiated the "compression" extension (§4.C.1's
// InitExtras.Compression). klauspost/compress comes from
// rockstar-0000-aistore's dependency stack (SPEC_FULL §2); s2 is chosen
// over the plain snappy format for its block-concurrency and streaming
// API, and the original source names no concrete algorithm.
func CompressFrame(dst, src []byte) []byte {
	return s2.Encode(dst, src)
}

// DecompressFrame reverses CompressFrame. dst is grown as needed; callers
// in the hot receive path should reuse a scratch buffer across calls.
func DecompressFrame(dst, src []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	return s2.Decode(dst, src)
}
