package proto

import (
	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/wire"
)

// Transport message IDs (§4.C.1), the low 5 bits of the header byte.
const (
	MidInit      = 0x01 // InitSyn / InitAck, selected by header FlagA
	MidOpen      = 0x02 // OpenSyn / OpenAck, selected by header FlagA
	MidClose     = 0x03
	MidKeepAlive = 0x04
	MidFrame     = 0x05
)

// InitExtras bundles the InitSyn/InitAck extension chain (§4.C.1).
type InitExtras struct {
	QoS         bool
	Auth        []byte // borrowed ZBuf
	Multilink   []byte // borrowed ZBuf
	LowLatency  bool
	Compression bool
	Patch       Patch
}

func (e InitExtras) write(w *buf.Writer) error {
	var all []wire.Extension
	if e.QoS {
		all = append(all, wire.Extension{ID: ExtIDQoS, Encoding: wire.ExtUnit})
	}
	if e.Auth != nil {
		all = append(all, wire.Extension{ID: ExtIDAuth, Encoding: wire.ExtZBuf, ZBuf: e.Auth})
	}
	if e.Multilink != nil {
		all = append(all, wire.Extension{ID: ExtIDMultilink, Encoding: wire.ExtZBuf, ZBuf: e.Multilink})
	}
	if e.LowLatency {
		all = append(all, wire.Extension{ID: ExtIDLowLatency, Encoding: wire.ExtUnit})
	}
	if e.Compression {
		all = append(all, wire.Extension{ID: ExtIDCompression, Encoding: wire.ExtUnit})
	}
	all = append(all, wire.Extension{ID: ExtIDPatch, Encoding: wire.ExtU64, U64: uint64(e.Patch)})
	for i := range all {
		all[i].More = i != len(all)-1
		if err := wire.WriteExtension(w, all[i]); err != nil {
			return err
		}
	}
	return nil
}

func readInitExtras(r *buf.Reader) (InitExtras, error) {
	e := InitExtras{Patch: PatchCurrent}
	err := wire.ReadExtensionChain(r, func(ext wire.Extension) (bool, error) {
		switch ext.ID {
		case ExtIDQoS:
			e.QoS = true
			return true, nil
		case ExtIDAuth:
			if err := wire.ReadExtensionBody(r, &ext); err != nil {
				return false, err
			}
			e.Auth = ext.ZBuf
			return true, nil
		case ExtIDMultilink:
			if err := wire.ReadExtensionBody(r, &ext); err != nil {
				return false, err
			}
			e.Multilink = ext.ZBuf
			return true, nil
		case ExtIDLowLatency:
			e.LowLatency = true
			return true, nil
		case ExtIDCompression:
			e.Compression = true
			return true, nil
		case ExtIDPatch:
			if err := wire.ReadExtensionBody(r, &ext); err != nil {
				return false, err
			}
			e.Patch = Patch(ext.U64)
			return true, nil
		default:
			return false, nil
		}
	})
	return e, err
}

// Init carries both InitSyn (Ack=false) and InitAck (Ack=true): a
// versioned identity exchange (§4.C.1). Resolution and BatchSize are only
// meaningful when Negotiated is true (header FlagS); otherwise the
// default resolution/batch size apply.
type Init struct {
	Ack        bool
	Version    uint8
	WhatAmI    WhatAmI
	ZenohId    ZenohId
	Negotiated bool
	Resolution Resolution
	BatchSize  uint16
	Cookie     []byte // InitAck only; length-prefixed on the wire
	Ext        InitExtras
}

// EncodeInit writes m to w. Cookie is only emitted when m.Ack is true.
func EncodeInit(w *buf.Writer, m Init) error {
	h := wire.PackHeader(MidInit, wire.FlagZ)
	if m.Negotiated {
		h |= wire.FlagS
	}
	if m.Ack {
		h |= wire.FlagA
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if err := w.WriteU8(m.Version); err != nil {
		return err
	}
	idByte := (m.ZenohId.Len-1)<<4 | byte(m.WhatAmI&0x3)
	if err := w.WriteU8(idByte); err != nil {
		return err
	}
	if err := w.WriteExact(m.ZenohId.Bytes()); err != nil {
		return err
	}
	if m.Negotiated {
		if err := w.WriteU8(m.Resolution.encode()); err != nil {
			return err
		}
		if err := wire.WriteU16LE(w, m.BatchSize); err != nil {
			return err
		}
	}
	if m.Ack {
		if err := wire.WriteBytes(w, m.Cookie); err != nil {
			return err
		}
	}
	return m.Ext.write(w)
}

// DecodeInit reads an Init message whose header byte was already consumed
// and is passed in h.
func DecodeInit(r *buf.Reader, h byte) (Init, error) {
	m := Init{
		Ack:        wire.HeaderHasFlag(h, wire.FlagA),
		Negotiated: wire.HeaderHasFlag(h, wire.FlagS),
		Resolution: DefaultResolution,
		BatchSize:  0xffff,
	}
	var err error
	if m.Version, err = r.ReadU8(); err != nil {
		return Init{}, err
	}
	idByte, err := r.ReadU8()
	if err != nil {
		return Init{}, err
	}
	zidLen := int(idByte>>4) + 1
	m.WhatAmI = WhatAmI(idByte & 0x3)
	zidBytes, err := r.ReadSlice(zidLen)
	if err != nil {
		return Init{}, err
	}
	if m.ZenohId, err = ZenohIdFromBytes(zidBytes); err != nil {
		return Init{}, err
	}
	if m.Negotiated {
		resByte, err := r.ReadU8()
		if err != nil {
			return Init{}, err
		}
		m.Resolution = decodeResolution(resByte)
		if m.BatchSize, err = wire.ReadU16LE(r); err != nil {
			return Init{}, err
		}
	}
	if m.Ack {
		if m.Cookie, err = wire.ReadBytes(r); err != nil {
			return Init{}, err
		}
	}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Ext, err = readInitExtras(r); err != nil {
			return Init{}, err
		}
	} else {
		m.Ext = InitExtras{Patch: PatchCurrent}
	}
	return m, nil
}

// Open carries both OpenSyn (Ack=false) and OpenAck (Ack=true): lease and
// initial sequence number exchange (§4.C.1). InitialSN is sized by the
// negotiated FrameSN resolution, which the caller must supply on decode.
type Open struct {
	Ack          bool
	LeaseSeconds bool // T flag: lease unit is seconds, else milliseconds
	Lease        uint64
	InitialSN    uint64
	Cookie       []byte // OpenSyn only; echoed verbatim from InitAck
}

// EncodeOpen writes m to w. Cookie is only emitted when m.Ack is false.
func EncodeOpen(w *buf.Writer, m Open, sn FieldWidth) error {
	h := wire.PackHeader(MidOpen)
	if m.LeaseSeconds {
		h |= wire.FlagT
	}
	if m.Ack {
		h |= wire.FlagA
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if err := wire.WriteVLE(w, m.Lease); err != nil {
		return err
	}
	if err := WriteSized(w, sn, m.InitialSN); err != nil {
		return err
	}
	if !m.Ack {
		return wire.WriteBytes(w, m.Cookie)
	}
	return nil
}

// DecodeOpen reads an Open message whose header byte was already consumed
// and is passed in h. sn is the negotiated FrameSN width.
func DecodeOpen(r *buf.Reader, h byte, sn FieldWidth) (Open, error) {
	m := Open{
		Ack:          wire.HeaderHasFlag(h, wire.FlagA),
		LeaseSeconds: wire.HeaderHasFlag(h, wire.FlagT),
	}
	var err error
	if m.Lease, err = wire.ReadVLE(r); err != nil {
		return Open{}, err
	}
	if m.InitialSN, err = ReadSized(r, sn); err != nil {
		return Open{}, err
	}
	if !m.Ack {
		if m.Cookie, err = wire.ReadBytes(r); err != nil {
			return Open{}, err
		}
	}
	return m, nil
}

// Close carries the transport-level Close message (§4.C.1). Session
// selects whether the closure targets the whole session or only this
// link (S flag).
type Close struct {
	Reason  CloseReason
	Session bool
}

func EncodeClose(w *buf.Writer, m Close) error {
	h := wire.PackHeader(MidClose)
	if m.Session {
		h |= wire.FlagS
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	return w.WriteU8(byte(m.Reason))
}

func DecodeClose(r *buf.Reader, h byte) (Close, error) {
	reason, err := r.ReadU8()
	if err != nil {
		return Close{}, err
	}
	return Close{Reason: CloseReason(reason), Session: wire.HeaderHasFlag(h, wire.FlagS)}, nil
}

// EncodeKeepAlive writes an empty KeepAlive message.
func EncodeKeepAlive(w *buf.Writer) error {
	return w.WriteU8(wire.PackHeader(MidKeepAlive))
}

// FrameHeader is a Frame's header fields, decoded ahead of its inner
// NetworkMessage payload (§4.C.1, §4.E.2).
type FrameHeader struct {
	Reliability Reliability
	SN          uint64
	QoS         bool
}

// EncodeFrameHeader writes a Frame's header byte, optional qos extension,
// and sequence number. The caller then appends encoded NetworkMessages
// directly to w and must not exceed the negotiated batch size.
func EncodeFrameHeader(w *buf.Writer, fh FrameHeader, sn FieldWidth) error {
	h := wire.PackHeader(MidFrame)
	if fh.Reliability == Reliable {
		h |= wire.FlagR
	}
	if fh.QoS {
		h |= wire.FlagZ
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if fh.QoS {
		if err := wire.WriteExtension(w, wire.Extension{ID: ExtIDQoS, Encoding: wire.ExtUnit}); err != nil {
			return err
		}
	}
	return WriteSized(w, sn, fh.SN)
}

// DecodeFrameHeader reads a Frame's fields whose header byte was already
// consumed and is passed in h.
func DecodeFrameHeader(r *buf.Reader, h byte, sn FieldWidth) (FrameHeader, error) {
	fh := FrameHeader{Reliability: Reliability(boolBit(wire.HeaderHasFlag(h, wire.FlagR)))}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if err := wire.ReadExtensionChain(r, func(ext wire.Extension) (bool, error) {
			if ext.ID == ExtIDQoS {
				fh.QoS = true
				return true, nil
			}
			return false, nil
		}); err != nil {
			return FrameHeader{}, err
		}
	}
	v, err := ReadSized(r, sn)
	if err != nil {
		return FrameHeader{}, err
	}
	fh.SN = v
	return fh, nil
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
