package wire

import (
	"code.hybscloud.com/zlink/buf"
)

// ExtEncoding is the 2-bit body-encoding tag in an extension header.
type ExtEncoding uint8

const (
	ExtUnit ExtEncoding = 0
	ExtU64  ExtEncoding = 1
	ExtZBuf ExtEncoding = 2
)

// extHeader bit layout (§4.B.4):
//
//	bit 7    : Z = continuation (another extension follows)
//	bits 6..5: encoding (00=Unit, 01=U64, 10=ZBuf)
//	bit 4    : M = mandatory
//	bits 3..0: ID (0..15)
const (
	extZBit      = 1 << 7
	extEncMask   = 0x3
	extEncShift  = 5
	extMBit      = 1 << 4
	extIDMask    = 0x0f
)

// Extension is one link of an extension chain: an identified, optionally
// mandatory, optionally-sized payload.
type Extension struct {
	ID        uint8
	Mandatory bool
	Encoding  ExtEncoding
	More      bool // Z: another extension follows this one
	U64       uint64
	ZBuf      []byte // borrowed; valid only for the decode pass's lifetime
}

func extHeaderByte(e Extension) byte {
	h := e.ID & extIDMask
	h |= byte(e.Encoding&extEncMask) << extEncShift
	if e.Mandatory {
		h |= extMBit
	}
	if e.More {
		h |= extZBit
	}
	return h
}

// WriteExtension encodes one extension record: header byte, then Unit
// (nothing), U64 (VLE payload), or ZBuf (VLE length + bytes) body.
func WriteExtension(w *buf.Writer, e Extension) error {
	if err := w.WriteU8(extHeaderByte(e)); err != nil {
		return err
	}
	switch e.Encoding {
	case ExtUnit:
		return nil
	case ExtU64:
		return WriteVLE(w, e.U64)
	case ExtZBuf:
		return WriteBytes(w, e.ZBuf)
	default:
		return ErrCouldNotWrite
	}
}

// ReadExtensionHeader decodes only the header byte, leaving the caller to
// read or skip the body according to the returned encoding.
func ReadExtensionHeader(r *buf.Reader) (Extension, error) {
	h, err := r.ReadU8()
	if err != nil {
		return Extension{}, ErrCouldNotParseHeader
	}
	return Extension{
		ID:        h & extIDMask,
		Mandatory: h&extMBit != 0,
		Encoding:  ExtEncoding((h >> extEncShift) & extEncMask),
		More:      h&extZBit != 0,
	}, nil
}

// ReadExtensionBody reads the body for an extension whose header was
// already parsed into e, filling in U64 or ZBuf as appropriate.
func ReadExtensionBody(r *buf.Reader, e *Extension) error {
	switch e.Encoding {
	case ExtUnit:
		return nil
	case ExtU64:
		v, err := ReadVLE(r)
		if err != nil {
			return err
		}
		e.U64 = v
		return nil
	case ExtZBuf:
		b, err := ReadBytes(r)
		if err != nil {
			return err
		}
		e.ZBuf = b
		return nil
	default:
		return ErrCouldNotParseField
	}
}

// SkipExtensionBody consumes and discards the body of an extension whose
// header was already parsed, without materializing it. Used when the
// receiver does not recognize an extension ID and it is not mandatory.
func SkipExtensionBody(r *buf.Reader, e Extension) error {
	switch e.Encoding {
	case ExtUnit:
		return nil
	case ExtU64:
		_, err := ReadVLE(r)
		return err
	case ExtZBuf:
		n, err := ReadVLEusize(r)
		if err != nil {
			return err
		}
		_, err = r.ReadSlice(n)
		return err
	default:
		return ErrCouldNotParseField
	}
}

// ExtensionSink receives extensions recognized by a message decoder. sink
// closes over the same *buf.Reader passed to ReadExtensionChain: when it
// reports recognized=true it must itself have consumed the body (typically
// via ReadExtensionBody or a message-specific decode). Return an error to
// abort the chain (e.g. a malformed known extension's body).
type ExtensionSink func(e Extension) (recognized bool, err error)

// ReadExtensionChain decodes a full extension chain, calling sink for each
// entry. If sink reports the ID unrecognized, an unknown mandatory
// extension fails the chain with ErrMissingMandatoryExtension; an unknown
// non-mandatory extension has its body skipped and decode continues. This
// implements the decoder rule in §4.B.4 and the skip-safety / mandatory
// enforcement properties in §8.
func ReadExtensionChain(r *buf.Reader, sink ExtensionSink) error {
	for {
		e, err := ReadExtensionHeader(r)
		if err != nil {
			return err
		}
		recognized, err := sink(e)
		if err != nil {
			return err
		}
		if !recognized {
			if e.Mandatory {
				return ErrMissingMandatoryExtension
			}
			if err := SkipExtensionBody(r, e); err != nil {
				return err
			}
		}
		if !e.More {
			return nil
		}
	}
}
