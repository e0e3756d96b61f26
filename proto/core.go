package proto

import (
	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/wire"
)

// ZenohId is a 1-16 byte little-endian identity token (§3.1). Size is
// carried out-of-band (a prefix length byte, or 4 header bits in an
// enclosing message) rather than self-describing.
type ZenohId struct {
	Len  uint8
	Data [16]byte
}

// Bytes returns the significant little-endian bytes of id.
func (id ZenohId) Bytes() []byte { return id.Data[:id.Len] }

// ZenohIdFromBytes copies b (1-16 bytes) into a ZenohId.
func ZenohIdFromBytes(b []byte) (ZenohId, error) {
	if len(b) == 0 || len(b) > 16 {
		return ZenohId{}, wire.ErrCouldNotParseField
	}
	var id ZenohId
	id.Len = uint8(len(b))
	copy(id.Data[:], b)
	return id, nil
}

// WhatAmI classifies a session peer's role.
type WhatAmI uint8

const (
	WhatAmIRouter WhatAmI = 0
	WhatAmIPeer   WhatAmI = 1
	WhatAmIClient WhatAmI = 2
)

// FieldWidth selects the wire width used to encode a resolution-scoped
// integer (sequence numbers, request IDs): one of u8/u16/u32/u64.
type FieldWidth uint8

const (
	Width8  FieldWidth = 0
	Width16 FieldWidth = 1
	Width32 FieldWidth = 2
	Width64 FieldWidth = 3
)

// Min returns the narrower of a and b, used when negotiating resolution
// field-wise (§4.D.2): "resolution_final = min(mine, theirs) field-wise".
func (a FieldWidth) Min(b FieldWidth) FieldWidth {
	if a < b {
		return a
	}
	return b
}

// Mask returns the all-ones bitmask for a's wire width, used to modulate a
// derived value (e.g. an initial sequence number) into range (§4.D.2 step
// 3: "its output modulated to the negotiated FrameSN width").
func (a FieldWidth) Mask() uint64 {
	switch a {
	case Width8:
		return 1<<8 - 1
	case Width16:
		return 1<<16 - 1
	case Width32:
		return 1<<32 - 1
	default:
		return ^uint64(0)
	}
}

// Resolution packs the FrameSN and RequestID wire-width choices into a
// single byte: bits 1..0 FrameSN, bits 3..2 RequestID (§3.1).
type Resolution struct {
	FrameSN   FieldWidth
	RequestID FieldWidth
}

// DefaultResolution is both fields at Width32, per §3.1's stated default.
var DefaultResolution = Resolution{FrameSN: Width32, RequestID: Width32}

func (r Resolution) encode() byte {
	return byte(r.FrameSN&0x3) | byte(r.RequestID&0x3)<<2
}

func decodeResolution(b byte) Resolution {
	return Resolution{
		FrameSN:   FieldWidth(b & 0x3),
		RequestID: FieldWidth((b >> 2) & 0x3),
	}
}

// Min merges r with other field-wise, taking the narrower width in each
// field, per the handshake negotiation rule in §4.D.2.
func (r Resolution) Min(other Resolution) Resolution {
	return Resolution{
		FrameSN:   r.FrameSN.Min(other.FrameSN),
		RequestID: r.RequestID.Min(other.RequestID),
	}
}

// WriteSized writes v using the wire width selected by w, truncating
// silently is never acceptable: callers must ensure v fits, which
// ReadSized's range-checked narrower decoders guarantee on the read side.
func WriteSized(wr *buf.Writer, width FieldWidth, v uint64) error {
	switch width {
	case Width8:
		return wr.WriteU8(byte(v))
	case Width16:
		return wire.WriteU16LE(wr, uint16(v))
	case Width32:
		return wire.WriteU32LE(wr, uint32(v))
	default:
		return wire.WriteU64LE(wr, v)
	}
}

// ReadSized reads a value sized by width.
func ReadSized(r *buf.Reader, width FieldWidth) (uint64, error) {
	switch width {
	case Width8:
		b, err := r.ReadU8()
		return uint64(b), err
	case Width16:
		v, err := wire.ReadU16LE(r)
		return uint64(v), err
	case Width32:
		v, err := wire.ReadU32LE(r)
		return uint64(v), err
	default:
		return wire.ReadU64LE(r)
	}
}

// Reliability selects delivery guarantees for a Frame (§3.1).
type Reliability uint8

const (
	BestEffort  Reliability = 0
	Reliable    Reliability = 1
)

// Priority is the QoS priority class carried alongside a Frame/Push. Only
// the default class is modeled (§4.C refers to "qos" as an opaque
// extension the driver does not interpret beyond presence).
type Priority uint8

const DefaultPriority Priority = 5

// CongestionControl selects backpressure behavior on a full outbound queue.
type CongestionControl uint8

const (
	CongestionDrop         CongestionControl = 0
	CongestionBlock        CongestionControl = 1
	DefaultCongestion                        = CongestionDrop
	DefaultCongestionDeclare                 = CongestionBlock
)

// CloseReason classifies a Close message's reason byte.
type CloseReason uint8

const (
	CloseGeneric    CloseReason = 0
	CloseUnsupported CloseReason = 1
	CloseInvalid    CloseReason = 2
	CloseMaxLinks   CloseReason = 3
	CloseExpired    CloseReason = 4
)
