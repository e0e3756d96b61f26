package link

import (
	"encoding/binary"
	"io"
)

// Stream framing contract (§4.D.1, §6.1): every logical message on a
// streamed link is prefixed by a 2-byte little-endian length L <= 65535.
// Datagram links need none of this; their natural read/write boundary
// already is the message boundary.
const (
	frameHeaderLen = 2
	MaxFrameLen    = 1<<16 - 1
)

// StreamFramer applies the fixed-width length-prefix framing on top of a
// streamed Link's raw Rx/Tx halves. It is adapted from the teacher's
// internal.go framer state machine: offset bookkeeping that survives
// ErrWouldBlock/ErrMore across calls so a caller driving a non-blocking
// link can resume a partially-sent or partially-received message without
// re-deriving the header. Unlike the teacher's variable 1/3/8-byte scheme,
// this implementation carries only the fixed 2-byte case this protocol
// needs (§6.1).
type StreamFramer struct {
	rx Rx
	tx Tx

	rHeader   [frameHeaderLen]byte
	rHOff     int
	rLen      int
	rLenKnown bool
	rPOff     int

	wHeader [frameHeaderLen]byte
	wHOff   int
	wLen    int
	wPOff   int
	wActive bool
}

// NewStreamFramer wraps rx/tx with length-prefix framing.
func NewStreamFramer(rx Rx, tx Tx) *StreamFramer {
	return &StreamFramer{rx: rx, tx: tx}
}

func (f *StreamFramer) resetRead() {
	f.rHOff, f.rLen, f.rLenKnown, f.rPOff = 0, 0, false, 0
}

// ReadFrame reads one length-prefixed message into dst, returning the
// message bytes (a prefix of dst, valid only until the next ReadFrame
// call). If the underlying Rx returns ErrWouldBlock/ErrMore mid-message,
// ReadFrame returns the same error and the caller must call ReadFrame
// again — with a dst at least as large as before — to resume; no bytes
// already read are lost.
func (f *StreamFramer) ReadFrame(dst []byte) ([]byte, error) {
	for f.rHOff < frameHeaderLen {
		n, err := f.rx.Read(f.rHeader[f.rHOff:frameHeaderLen])
		f.rHOff += n
		if err != nil {
			if err == io.EOF {
				if f.rHOff == 0 {
					return nil, io.EOF
				}
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	if !f.rLenKnown {
		f.rLen = int(binary.LittleEndian.Uint16(f.rHeader[:]))
		f.rLenKnown = true
	}
	if f.rLen > MaxFrameLen {
		f.resetRead()
		return nil, ErrTooLong
	}
	if len(dst) < f.rLen {
		return nil, io.ErrShortBuffer
	}
	for f.rPOff < f.rLen {
		n, err := f.rx.Read(dst[f.rPOff:f.rLen])
		f.rPOff += n
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	out := dst[:f.rLen]
	f.resetRead()
	return out, nil
}

// WriteFrame writes p as one length-prefixed message. On ErrWouldBlock/
// ErrMore, the caller must call WriteFrame again with the identical p to
// resume; the header is sent at most once per logical message.
func (f *StreamFramer) WriteFrame(p []byte) error {
	if len(p) > MaxFrameLen {
		return ErrTooLong
	}
	if !f.wActive {
		f.wLen = len(p)
		binary.LittleEndian.PutUint16(f.wHeader[:], uint16(f.wLen))
		f.wHOff, f.wPOff, f.wActive = 0, 0, true
	} else if f.wLen != len(p) {
		return ErrInvalidArgument
	}
	for f.wHOff < frameHeaderLen {
		n, err := f.tx.Write(f.wHeader[f.wHOff:frameHeaderLen])
		f.wHOff += n
		if err != nil {
			return err
		}
	}
	for f.wPOff < f.wLen {
		n, err := f.tx.Write(p[f.wPOff:f.wLen])
		f.wPOff += n
		if err != nil {
			return err
		}
	}
	f.wActive = false
	f.wHOff, f.wPOff = 0, 0
	return nil
}
