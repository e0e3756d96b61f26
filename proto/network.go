package proto

import (
	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/wire"
)

// Network message IDs (§4.C.2), the low 5 bits of the header byte.
const (
	MidInterest      = 0x19
	MidDeclare       = 0x1e
	MidPush          = 0x1d
	MidRequest       = 0x1f
	MidResponse      = 0x1b
	MidResponseFinal = 0x1a
)

// Push is a publication carried inside a Frame (§4.C.2). Body currently
// holds only Put, per §4.C.3.
type Push struct {
	WireExpr WireExpr
	Body     Put
	Extras   Extras
}

func EncodePush(w *buf.Writer, m Push) error {
	h := wire.PackHeader(MidPush)
	if m.Extras.present() {
		h |= wire.FlagZ
	}
	if m.WireExpr.HasSuffix() {
		h |= wire.FlagN
	}
	if m.WireExpr.Mapping == MappingSender {
		h |= wire.FlagM
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if err := WriteWireExpr(w, m.WireExpr); err != nil {
		return err
	}
	if err := WriteExtras(w, m.Extras); err != nil {
		return err
	}
	return EncodePut(w, m.Body)
}

func DecodePush(r *buf.Reader, h byte) (Push, error) {
	we, err := ReadWireExpr(r, wire.HeaderHasFlag(h, wire.FlagN), mappingFromFlag(wire.HeaderHasFlag(h, wire.FlagM)))
	if err != nil {
		return Push{}, err
	}
	m := Push{WireExpr: we}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Extras, err = ReadExtras(r, nil); err != nil {
			return Push{}, err
		}
	}
	if m.Body, err = DecodePut(r); err != nil {
		return Push{}, err
	}
	return m, nil
}

func mappingFromFlag(set bool) Mapping {
	if set {
		return MappingSender
	}
	return MappingReceiver
}

// RequestTarget selects which matching queryables a Request should reach.
type RequestTarget uint8

const (
	TargetBestMatching  RequestTarget = 0
	TargetAll           RequestTarget = 1
	TargetAllComplete   RequestTarget = 2
)

// Request is a query carried inside a Frame (§4.C.2). Body currently holds
// only Query, per §4.C.3.
type Request struct {
	RequestID uint64
	WireExpr  WireExpr
	Body      Query
	Extras    Extras
	Target    RequestTarget
	HasTarget bool
	Budget    uint32
	HasBudget bool
	TimeoutMS uint64
	HasTimeout bool
}

func EncodeRequest(w *buf.Writer, m Request, ridWidth FieldWidth) error {
	h := wire.PackHeader(MidRequest)
	if m.Extras.present() || m.HasTarget || m.HasBudget || m.HasTimeout {
		h |= wire.FlagZ
	}
	if m.WireExpr.HasSuffix() {
		h |= wire.FlagN
	}
	if m.WireExpr.Mapping == MappingSender {
		h |= wire.FlagM
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if err := WriteSized(w, ridWidth, m.RequestID); err != nil {
		return err
	}
	if err := WriteWireExpr(w, m.WireExpr); err != nil {
		return err
	}
	var tail []wire.Extension
	if m.HasTarget {
		tail = append(tail, wire.Extension{ID: ExtIDTarget, Encoding: wire.ExtU64, U64: uint64(m.Target)})
	}
	if m.HasBudget {
		tail = append(tail, wire.Extension{ID: ExtIDBudget, Encoding: wire.ExtU64, U64: uint64(m.Budget)})
	}
	if m.HasTimeout {
		tail = append(tail, wire.Extension{ID: ExtIDTimeout, Encoding: wire.ExtU64, U64: m.TimeoutMS})
	}
	if err := WriteExtras(w, m.Extras, tail...); err != nil {
		return err
	}
	return EncodeQuery(w, m.Body)
}

func DecodeRequest(r *buf.Reader, h byte, ridWidth FieldWidth) (Request, error) {
	rid, err := ReadSized(r, ridWidth)
	if err != nil {
		return Request{}, err
	}
	we, err := ReadWireExpr(r, wire.HeaderHasFlag(h, wire.FlagN), mappingFromFlag(wire.HeaderHasFlag(h, wire.FlagM)))
	if err != nil {
		return Request{}, err
	}
	m := Request{RequestID: rid, WireExpr: we}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Extras, err = ReadExtras(r, func(ext wire.Extension) (bool, error) {
			switch ext.ID {
			case ExtIDTarget:
				if err := wire.ReadExtensionBody(r, &ext); err != nil {
					return false, err
				}
				m.Target, m.HasTarget = RequestTarget(ext.U64), true
				return true, nil
			case ExtIDBudget:
				if err := wire.ReadExtensionBody(r, &ext); err != nil {
					return false, err
				}
				m.Budget, m.HasBudget = uint32(ext.U64), true
				return true, nil
			case ExtIDTimeout:
				if err := wire.ReadExtensionBody(r, &ext); err != nil {
					return false, err
				}
				m.TimeoutMS, m.HasTimeout = ext.U64, true
				return true, nil
			default:
				return false, nil
			}
		}); err != nil {
			return Request{}, err
		}
	}
	if m.Body, err = DecodeQuery(r); err != nil {
		return Request{}, err
	}
	return m, nil
}

// ResponseBody is either a Reply or an Err (§4.C.3).
type ResponseBody struct {
	IsErr bool
	Reply Reply
	Err   Err
}

// Response answers a Request (§4.C.2).
type Response struct {
	ResponseID uint64
	WireExpr   WireExpr
	Body       ResponseBody
	Extras     Extras
	RespID     []byte // borrowed, opaque routing responder id
}

func EncodeResponse(w *buf.Writer, m Response, ridWidth FieldWidth) error {
	h := wire.PackHeader(MidResponse)
	if m.Extras.present() || m.RespID != nil {
		h |= wire.FlagZ
	}
	if m.WireExpr.HasSuffix() {
		h |= wire.FlagN
	}
	if m.WireExpr.Mapping == MappingSender {
		h |= wire.FlagM
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if err := WriteSized(w, ridWidth, m.ResponseID); err != nil {
		return err
	}
	if err := WriteWireExpr(w, m.WireExpr); err != nil {
		return err
	}
	var tail []wire.Extension
	if m.RespID != nil {
		tail = append(tail, wire.Extension{ID: ExtIDRespID, Encoding: wire.ExtZBuf, ZBuf: m.RespID})
	}
	if err := WriteExtras(w, m.Extras, tail...); err != nil {
		return err
	}
	if m.Body.IsErr {
		return EncodeErr(w, m.Body.Err)
	}
	return EncodeReply(w, m.Body.Reply)
}

func DecodeResponse(r *buf.Reader, h byte, ridWidth FieldWidth, isErr bool) (Response, error) {
	rid, err := ReadSized(r, ridWidth)
	if err != nil {
		return Response{}, err
	}
	we, err := ReadWireExpr(r, wire.HeaderHasFlag(h, wire.FlagN), mappingFromFlag(wire.HeaderHasFlag(h, wire.FlagM)))
	if err != nil {
		return Response{}, err
	}
	m := Response{ResponseID: rid, WireExpr: we}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Extras, err = ReadExtras(r, func(ext wire.Extension) (bool, error) {
			if ext.ID == ExtIDRespID {
				if err := wire.ReadExtensionBody(r, &ext); err != nil {
					return false, err
				}
				m.RespID = ext.ZBuf
				return true, nil
			}
			return false, nil
		}); err != nil {
			return Response{}, err
		}
	}
	m.Body.IsErr = isErr
	if isErr {
		m.Body.Err, err = DecodeErr(r)
	} else {
		m.Body.Reply, err = DecodeReply(r)
	}
	if err != nil {
		return Response{}, err
	}
	return m, nil
}

// ResponseFinal closes a request; a receiver removes the pending-request
// entry (§4.C.2, §4.E.3).
type ResponseFinal struct {
	ResponseID uint64
}

func EncodeResponseFinal(w *buf.Writer, m ResponseFinal, ridWidth FieldWidth) error {
	if err := w.WriteU8(wire.PackHeader(MidResponseFinal)); err != nil {
		return err
	}
	return WriteSized(w, ridWidth, m.ResponseID)
}

func DecodeResponseFinal(r *buf.Reader, ridWidth FieldWidth) (ResponseFinal, error) {
	rid, err := ReadSized(r, ridWidth)
	return ResponseFinal{ResponseID: rid}, err
}

// InterestMode selects what an Interest subscribes to receiving declares
// for (§4.C.2): a one-shot Current snapshot, an ongoing Future feed, both,
// or Final (the tail-end acknowledgement of a prior Interest's snapshot).
type InterestMode uint8

const (
	InterestFinal InterestMode = 0
	InterestCurrent InterestMode = 1
	InterestFuture  InterestMode = 2
	InterestCurrentFuture InterestMode = 3
)

// InterestOptions is the options byte accompanying a non-Final Interest:
// which declare kinds to track, and whether matches must be restricted to
// the given WireExpr.
type InterestOptions uint8

const (
	InterestOptKeyExprs    InterestOptions = 1 << 0
	InterestOptSubscribers InterestOptions = 1 << 1
	InterestOptQueryables  InterestOptions = 1 << 2
	InterestOptTokens      InterestOptions = 1 << 3
	InterestOptAggregate   InterestOptions = 1 << 7
)

// Interest asks the remote to (re)send declare state, optionally scoped to
// a WireExpr (§4.C.2). A client only ever decodes these; it never
// interprets them further (§4.E.3).
type Interest struct {
	ID       uint64
	Mode     InterestMode
	Options  InterestOptions
	WireExpr WireExpr
	HasWireExpr bool
	Extras   Extras
}

func EncodeInterest(w *buf.Writer, m Interest, ridWidth FieldWidth) error {
	h := wire.PackHeader(MidInterest)
	if m.Extras.present() {
		h |= wire.FlagZ
	}
	h |= byte(m.Mode&0x3) << 5
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if err := WriteSized(w, ridWidth, m.ID); err != nil {
		return err
	}
	if m.Mode != InterestFinal {
		if err := w.WriteU8(byte(m.Options)); err != nil {
			return err
		}
		if m.HasWireExpr {
			if err := WriteWireExpr(w, m.WireExpr); err != nil {
				return err
			}
		}
	}
	return WriteExtras(w, m.Extras)
}

func DecodeInterest(r *buf.Reader, h byte, ridWidth FieldWidth) (Interest, error) {
	id, err := ReadSized(r, ridWidth)
	if err != nil {
		return Interest{}, err
	}
	m := Interest{ID: id, Mode: InterestMode((h >> 5) & 0x3)}
	if m.Mode != InterestFinal {
		opts, err := r.ReadU8()
		if err != nil {
			return Interest{}, err
		}
		m.Options = InterestOptions(opts)
		if m.Options&InterestOptKeyExprs != 0 {
			m.WireExpr, err = ReadWireExpr(r, true, MappingSender)
			if err != nil {
				return Interest{}, err
			}
			m.HasWireExpr = true
		}
	}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Extras, err = ReadExtras(r, nil); err != nil {
			return Interest{}, err
		}
	}
	return m, nil
}

// Declare carries a name-table mutation (§4.C.2). Exactly one of the
// DeclareXxx/UndeclareXxx fields is populated, selected by Which.
type Declare struct {
	HasID  bool
	ID     uint64
	Extras Extras
	Which  DeclareKind
	Body   DeclareBody
}

// DeclareKind selects which DeclareBody field is populated.
type DeclareKind uint8

const (
	DeclKeyExpr DeclareKind = iota
	DeclUndeclareKeyExpr
	DeclSubscriber
	DeclUndeclareSubscriber
	DeclQueryable
	DeclUndeclareQueryable
	DeclToken
	DeclUndeclareToken
	DeclFinal
)

// DeclareBody is the union of all Declare sub-messages. Only the field
// matching Declare.Which is meaningful.
type DeclareBody struct {
	KeyExprID uint32
	WireExpr  WireExpr // DeclareKeyExpr/DeclareSubscriber/DeclareQueryable/DeclareToken
	HasWireExpr bool    // UndeclareSubscriber/UndeclareQueryable/UndeclareToken: optional
}

const (
	declSubID          = 0x00
	declUndeclareSubID = 0x01
	declSubscriberID   = 0x02
	declUndeclSubID    = 0x03
	declQueryableID    = 0x04
	declUndeclQueryID  = 0x05
	declTokenID        = 0x06
	declUndeclTokenID  = 0x07
	declFinalID        = 0x1a
)

func EncodeDeclare(w *buf.Writer, m Declare, ridWidth FieldWidth) error {
	h := wire.PackHeader(MidDeclare)
	if m.Extras.present() {
		h |= wire.FlagZ
	}
	if m.HasID {
		h |= wire.FlagI
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if m.HasID {
		if err := WriteSized(w, ridWidth, m.ID); err != nil {
			return err
		}
	}
	if err := WriteExtras(w, m.Extras); err != nil {
		return err
	}
	return encodeDeclareBody(w, m.Which, m.Body)
}

func encodeDeclareBody(w *buf.Writer, which DeclareKind, b DeclareBody) error {
	switch which {
	case DeclKeyExpr:
		h := wire.PackHeader(declSubID)
		if b.WireExpr.Mapping == MappingSender {
			h |= wire.FlagM
		}
		if b.WireExpr.HasSuffix() {
			h |= wire.FlagN
		}
		if err := w.WriteU8(h); err != nil {
			return err
		}
		if err := wire.WriteU16LE(w, uint16(b.KeyExprID)); err != nil {
			return err
		}
		return WriteWireExpr(w, b.WireExpr)
	case DeclUndeclareKeyExpr:
		if err := w.WriteU8(wire.PackHeader(declUndeclareSubID)); err != nil {
			return err
		}
		return wire.WriteU16LE(w, uint16(b.KeyExprID))
	case DeclSubscriber:
		h := wire.PackHeader(declSubscriberID)
		if b.WireExpr.Mapping == MappingSender {
			h |= wire.FlagM
		}
		if b.WireExpr.HasSuffix() {
			h |= wire.FlagN
		}
		if err := w.WriteU8(h); err != nil {
			return err
		}
		if err := wire.WriteVLE(w, uint64(b.KeyExprID)); err != nil {
			return err
		}
		return WriteWireExpr(w, b.WireExpr)
	case DeclUndeclareSubscriber:
		return encodeUndeclareWithOptionalExpr(w, declUndeclSubID, b)
	case DeclQueryable:
		h := wire.PackHeader(declQueryableID, wire.FlagZ)
		if b.WireExpr.Mapping == MappingSender {
			h |= wire.FlagM
		}
		if b.WireExpr.HasSuffix() {
			h |= wire.FlagN
		}
		if err := w.WriteU8(h); err != nil {
			return err
		}
		if err := wire.WriteVLE(w, uint64(b.KeyExprID)); err != nil {
			return err
		}
		if err := WriteWireExpr(w, b.WireExpr); err != nil {
			return err
		}
		return w.WriteU8(0) // no-more-extensions terminator for qinfo-less queryables
	case DeclUndeclareQueryable:
		return encodeUndeclareWithOptionalExpr(w, declUndeclQueryID, b)
	case DeclToken:
		h := wire.PackHeader(declTokenID, wire.FlagZ)
		if b.WireExpr.Mapping == MappingSender {
			h |= wire.FlagM
		}
		if b.WireExpr.HasSuffix() {
			h |= wire.FlagN
		}
		if err := w.WriteU8(h); err != nil {
			return err
		}
		if err := wire.WriteVLE(w, uint64(b.KeyExprID)); err != nil {
			return err
		}
		return WriteWireExpr(w, b.WireExpr)
	case DeclUndeclareToken:
		return encodeUndeclareWithOptionalExpr(w, declUndeclTokenID, b)
	case DeclFinal:
		return w.WriteU8(wire.PackHeader(declFinalID))
	default:
		return ErrInvalidMessage
	}
}

func encodeUndeclareWithOptionalExpr(w *buf.Writer, id uint8, b DeclareBody) error {
	h := wire.PackHeader(id)
	if b.HasWireExpr {
		h |= wire.FlagZ
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if err := wire.WriteVLE(w, uint64(b.KeyExprID)); err != nil {
		return err
	}
	if b.HasWireExpr {
		return wire.WriteExtension(w, wire.Extension{ID: 0x0f, Encoding: wire.ExtZBuf, ZBuf: []byte(b.WireExpr.Suffix)})
	}
	return nil
}

func DecodeDeclare(r *buf.Reader, h byte, ridWidth FieldWidth) (Declare, error) {
	m := Declare{HasID: wire.HeaderHasFlag(h, wire.FlagI)}
	var err error
	if m.HasID {
		if m.ID, err = ReadSized(r, ridWidth); err != nil {
			return Declare{}, err
		}
	}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Extras, err = ReadExtras(r, nil); err != nil {
			return Declare{}, err
		}
	}
	bh, err := r.ReadU8()
	if err != nil {
		return Declare{}, err
	}
	switch wire.HeaderID(bh) {
	case declSubID:
		id, err := wire.ReadU16LE(r)
		if err != nil {
			return Declare{}, err
		}
		we, err := ReadWireExpr(r, wire.HeaderHasFlag(bh, wire.FlagN), mappingFromFlag(wire.HeaderHasFlag(bh, wire.FlagM)))
		if err != nil {
			return Declare{}, err
		}
		m.Which, m.Body = DeclKeyExpr, DeclareBody{KeyExprID: uint32(id), WireExpr: we}
	case declUndeclareSubID:
		id, err := wire.ReadU16LE(r)
		if err != nil {
			return Declare{}, err
		}
		m.Which, m.Body = DeclUndeclareKeyExpr, DeclareBody{KeyExprID: uint32(id)}
	case declSubscriberID:
		id, err := wire.ReadVLEu32(r)
		if err != nil {
			return Declare{}, err
		}
		we, err := ReadWireExpr(r, wire.HeaderHasFlag(bh, wire.FlagN), mappingFromFlag(wire.HeaderHasFlag(bh, wire.FlagM)))
		if err != nil {
			return Declare{}, err
		}
		m.Which, m.Body = DeclSubscriber, DeclareBody{KeyExprID: id, WireExpr: we}
	case declUndeclSubID:
		m.Which = DeclUndeclareSubscriber
		m.Body, err = decodeUndeclareWithOptionalExpr(r, bh)
	case declQueryableID:
		id, err := wire.ReadVLEu32(r)
		if err != nil {
			return Declare{}, err
		}
		we, err := ReadWireExpr(r, wire.HeaderHasFlag(bh, wire.FlagN), mappingFromFlag(wire.HeaderHasFlag(bh, wire.FlagM)))
		if err != nil {
			return Declare{}, err
		}
		if wire.HeaderHasFlag(bh, wire.FlagZ) {
			if err := wire.ReadExtensionChain(r, func(wire.Extension) (bool, error) { return true, nil }); err != nil {
				return Declare{}, err
			}
		}
		m.Which, m.Body = DeclQueryable, DeclareBody{KeyExprID: id, WireExpr: we}
	case declUndeclQueryID:
		m.Which = DeclUndeclareQueryable
		m.Body, err = decodeUndeclareWithOptionalExpr(r, bh)
	case declTokenID:
		id, err := wire.ReadVLEu32(r)
		if err != nil {
			return Declare{}, err
		}
		we, err := ReadWireExpr(r, wire.HeaderHasFlag(bh, wire.FlagN), mappingFromFlag(wire.HeaderHasFlag(bh, wire.FlagM)))
		if err != nil {
			return Declare{}, err
		}
		m.Which, m.Body = DeclToken, DeclareBody{KeyExprID: id, WireExpr: we}
	case declUndeclTokenID:
		m.Which = DeclUndeclareToken
		m.Body, err = decodeUndeclareWithOptionalExpr(r, bh)
	case declFinalID:
		m.Which = DeclFinal
	default:
		return Declare{}, ErrUnknownID
	}
	if err != nil {
		return Declare{}, err
	}
	return m, nil
}

func decodeUndeclareWithOptionalExpr(r *buf.Reader, bh byte) (DeclareBody, error) {
	id, err := wire.ReadVLEu32(r)
	if err != nil {
		return DeclareBody{}, err
	}
	b := DeclareBody{KeyExprID: id}
	if wire.HeaderHasFlag(bh, wire.FlagZ) {
		err = wire.ReadExtensionChain(r, func(ext wire.Extension) (bool, error) {
			if ext.ID == 0x0f {
				if err := wire.ReadExtensionBody(r, &ext); err != nil {
					return false, err
				}
				b.WireExpr = WireExpr{Suffix: string(ext.ZBuf)}
				b.HasWireExpr = true
				return true, nil
			}
			return false, nil
		})
	}
	return b, err
}
