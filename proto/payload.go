package proto

import (
	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/wire"
)

// Zenoh payload message IDs (§4.C.3), carried inside Push/Request/Response.
const (
	MidPut   = 0x01
	MidQuery = 0x03
	MidReply = 0x04
	MidErr   = 0x05
)

// Encoding names a payload's content type: a VLE-encoded numeric id with
// an optional string suffix for parameterized encodings (e.g.
// "text/plain;charset=utf-8"). A zero-value Encoding with an empty Suffix
// denotes "no encoding given".
type Encoding struct {
	ID     uint64
	Suffix string
}

func (e Encoding) isEmpty() bool { return e.ID == 0 && e.Suffix == "" }

func writeEncoding(w *buf.Writer, e Encoding) error {
	if err := wire.WriteVLE(w, e.ID); err != nil {
		return err
	}
	return wire.WriteString(w, e.Suffix)
}

func readEncoding(r *buf.Reader) (Encoding, error) {
	id, err := wire.ReadVLE(r)
	if err != nil {
		return Encoding{}, err
	}
	suffix, err := wire.ReadString(r)
	if err != nil {
		return Encoding{}, err
	}
	return Encoding{ID: id, Suffix: suffix}, nil
}

// PayloadExt bundles the extensions shared by Put/Reply/Err: an opaque
// source-info record and an opaque attachment, each an optional ZBuf.
type PayloadExt struct {
	SourceInfo []byte
	Attachment []byte
}

func (e PayloadExt) write(w *buf.Writer) error {
	var exts []wire.Extension
	if e.SourceInfo != nil {
		exts = append(exts, wire.Extension{ID: ExtIDSourceInfo, Encoding: wire.ExtZBuf, ZBuf: e.SourceInfo})
	}
	if e.Attachment != nil {
		exts = append(exts, wire.Extension{ID: ExtIDAttachment, Encoding: wire.ExtZBuf, ZBuf: e.Attachment})
	}
	for i := range exts {
		exts[i].More = i != len(exts)-1
		if err := wire.WriteExtension(w, exts[i]); err != nil {
			return err
		}
	}
	return nil
}

func readPayloadExt(r *buf.Reader, extra wire.ExtensionSink) (PayloadExt, error) {
	var e PayloadExt
	err := wire.ReadExtensionChain(r, func(ext wire.Extension) (bool, error) {
		switch ext.ID {
		case ExtIDSourceInfo:
			if err := wire.ReadExtensionBody(r, &ext); err != nil {
				return false, err
			}
			e.SourceInfo = ext.ZBuf
			return true, nil
		case ExtIDAttachment:
			if err := wire.ReadExtensionBody(r, &ext); err != nil {
				return false, err
			}
			e.Attachment = ext.ZBuf
			return true, nil
		default:
			if extra != nil {
				return extra(ext)
			}
			return false, nil
		}
	})
	return e, err
}

// Put is a publication's payload (§4.C.3).
type Put struct {
	HasTimestamp bool
	Timestamp    []byte // borrowed, opaque encoded uhlc timestamp
	Encoding     Encoding
	Ext          PayloadExt
	Payload      []byte // borrowed
}

func EncodePut(w *buf.Writer, m Put) error {
	h := wire.PackHeader(MidPut)
	if m.HasTimestamp {
		h |= 1 << 5 // T
	}
	if !m.Encoding.isEmpty() {
		h |= 1 << 6 // E
	}
	hasExt := m.Ext.SourceInfo != nil || m.Ext.Attachment != nil
	if hasExt {
		h |= wire.FlagZ
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if m.HasTimestamp {
		if err := wire.WriteBytes(w, m.Timestamp); err != nil {
			return err
		}
	}
	if !m.Encoding.isEmpty() {
		if err := writeEncoding(w, m.Encoding); err != nil {
			return err
		}
	}
	if err := m.Ext.write(w); err != nil {
		return err
	}
	return wire.WriteBytes(w, m.Payload)
}

func DecodePut(r *buf.Reader) (Put, error) {
	h, err := r.ReadU8()
	if err != nil {
		return Put{}, err
	}
	if wire.HeaderID(h) != MidPut {
		return Put{}, ErrInvalidMessage
	}
	m := Put{HasTimestamp: wire.HeaderHasFlag(h, 1<<5)}
	if m.HasTimestamp {
		if m.Timestamp, err = wire.ReadBytes(r); err != nil {
			return Put{}, err
		}
	}
	if wire.HeaderHasFlag(h, 1<<6) {
		if m.Encoding, err = readEncoding(r); err != nil {
			return Put{}, err
		}
	}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Ext, err = readPayloadExt(r, nil); err != nil {
			return Put{}, err
		}
	}
	if m.Payload, err = wire.ReadBytes(r); err != nil {
		return Put{}, err
	}
	return m, nil
}

// Consolidation selects how a query's replies from multiple matching
// queryables are merged (§4.C.3). An out-of-range value on decode
// collapses liberally to Auto rather than failing (SPEC_FULL §3).
type Consolidation uint8

const (
	ConsolidationAuto       Consolidation = 0
	ConsolidationNone       Consolidation = 1
	ConsolidationMonotonic  Consolidation = 2
	ConsolidationLatest     Consolidation = 3
)

// Query is a query's payload (§4.C.3).
type Query struct {
	HasConsolidation bool
	Consolidation    Consolidation
	Parameters       string
	Ext              PayloadExt
	QueryBody        []byte // borrowed, opaque encoding+payload ZBuf
	HasQueryBody     bool
}

func EncodeQuery(w *buf.Writer, m Query) error {
	h := wire.PackHeader(MidQuery)
	if m.HasConsolidation {
		h |= wire.FlagC
	}
	if m.Parameters != "" {
		h |= wire.FlagP
	}
	hasExt := m.Ext.SourceInfo != nil || m.Ext.Attachment != nil || m.HasQueryBody
	if hasExt {
		h |= wire.FlagZ
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if m.HasConsolidation {
		if err := wire.WriteVLE(w, uint64(m.Consolidation)); err != nil {
			return err
		}
	}
	if m.Parameters != "" {
		if err := wire.WriteString(w, m.Parameters); err != nil {
			return err
		}
	}
	var tail []wire.Extension
	if m.HasQueryBody {
		tail = append(tail, wire.Extension{ID: ExtIDQueryBody, Encoding: wire.ExtZBuf, ZBuf: m.QueryBody})
	}
	if len(tail) == 0 {
		return m.Ext.write(w)
	}
	// Ext.write assumes it owns the whole tail of the chain; stitch its
	// entries ahead of the query-body extension by hand so More is
	// correct end to end.
	var all []wire.Extension
	if m.Ext.SourceInfo != nil {
		all = append(all, wire.Extension{ID: ExtIDSourceInfo, Encoding: wire.ExtZBuf, ZBuf: m.Ext.SourceInfo})
	}
	all = append(all, tail...)
	if m.Ext.Attachment != nil {
		all = append(all, wire.Extension{ID: ExtIDAttachment, Encoding: wire.ExtZBuf, ZBuf: m.Ext.Attachment})
	}
	for i := range all {
		all[i].More = i != len(all)-1
		if err := wire.WriteExtension(w, all[i]); err != nil {
			return err
		}
	}
	return nil
}

func DecodeQuery(r *buf.Reader) (Query, error) {
	h, err := r.ReadU8()
	if err != nil {
		return Query{}, err
	}
	if wire.HeaderID(h) != MidQuery {
		return Query{}, ErrInvalidMessage
	}
	m := Query{HasConsolidation: wire.HeaderHasFlag(h, wire.FlagC)}
	if m.HasConsolidation {
		v, err := wire.ReadVLE(r)
		if err != nil {
			return Query{}, err
		}
		if v > uint64(ConsolidationLatest) {
			m.Consolidation = ConsolidationAuto
		} else {
			m.Consolidation = Consolidation(v)
		}
	}
	if wire.HeaderHasFlag(h, wire.FlagP) {
		if m.Parameters, err = wire.ReadString(r); err != nil {
			return Query{}, err
		}
	}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Ext, err = readPayloadExt(r, func(ext wire.Extension) (bool, error) {
			if ext.ID == ExtIDQueryBody {
				if err := wire.ReadExtensionBody(r, &ext); err != nil {
					return false, err
				}
				m.QueryBody = ext.ZBuf
				m.HasQueryBody = true
				return true, nil
			}
			return false, nil
		}); err != nil {
			return Query{}, err
		}
	}
	return m, nil
}

// Reply mirrors Put, per §4.C.3.
type Reply = Put

// EncodeReply and DecodeReply alias Put's codec since Reply's wire shape
// is identical (§4.C.3: "Reply (ID 0x04): mirrors Put").
func EncodeReply(w *buf.Writer, m Reply) error {
	h := wire.PackHeader(MidReply)
	if m.HasTimestamp {
		h |= 1 << 5 // T
	}
	if !m.Encoding.isEmpty() {
		h |= 1 << 6
	}
	hasExt := m.Ext.SourceInfo != nil || m.Ext.Attachment != nil
	if hasExt {
		h |= wire.FlagZ
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if m.HasTimestamp {
		if err := wire.WriteBytes(w, m.Timestamp); err != nil {
			return err
		}
	}
	if !m.Encoding.isEmpty() {
		if err := writeEncoding(w, m.Encoding); err != nil {
			return err
		}
	}
	if err := m.Ext.write(w); err != nil {
		return err
	}
	return wire.WriteBytes(w, m.Payload)
}

func DecodeReply(r *buf.Reader) (Reply, error) {
	h, err := r.ReadU8()
	if err != nil {
		return Reply{}, err
	}
	if wire.HeaderID(h) != MidReply {
		return Reply{}, ErrInvalidMessage
	}
	m := Reply{HasTimestamp: wire.HeaderHasFlag(h, 1<<5)}
	if m.HasTimestamp {
		if m.Timestamp, err = wire.ReadBytes(r); err != nil {
			return Reply{}, err
		}
	}
	if wire.HeaderHasFlag(h, 1<<6) {
		if m.Encoding, err = readEncoding(r); err != nil {
			return Reply{}, err
		}
	}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Ext, err = readPayloadExt(r, nil); err != nil {
			return Reply{}, err
		}
	}
	if m.Payload, err = wire.ReadBytes(r); err != nil {
		return Reply{}, err
	}
	return m, nil
}

// Err carries a query failure (§4.C.3).
type Err struct {
	Encoding Encoding
	Payload  []byte
	Ext      PayloadExt
}

func EncodeErr(w *buf.Writer, m Err) error {
	h := wire.PackHeader(MidErr)
	hasExt := m.Ext.SourceInfo != nil || m.Ext.Attachment != nil
	if hasExt {
		h |= wire.FlagZ
	}
	if err := w.WriteU8(h); err != nil {
		return err
	}
	if err := writeEncoding(w, m.Encoding); err != nil {
		return err
	}
	if err := wire.WriteBytes(w, m.Payload); err != nil {
		return err
	}
	return m.Ext.write(w)
}

func DecodeErr(r *buf.Reader) (Err, error) {
	h, err := r.ReadU8()
	if err != nil {
		return Err{}, err
	}
	if wire.HeaderID(h) != MidErr {
		return Err{}, ErrInvalidMessage
	}
	var m Err
	if m.Encoding, err = readEncoding(r); err != nil {
		return Err{}, err
	}
	if m.Payload, err = wire.ReadBytes(r); err != nil {
		return Err{}, err
	}
	if wire.HeaderHasFlag(h, wire.FlagZ) {
		if m.Ext, err = readPayloadExt(r, nil); err != nil {
			return Err{}, err
		}
	}
	return m, nil
}
