package proto

import (
	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/wire"
)

// Extension IDs, scoped per message family as named in §4.C. IDs are only
// unique within the chain attached to one message; the same numeric ID
// means different things on InitSyn/InitAck vs. Push vs. Query.
const (
	ExtIDQoS         = 1
	ExtIDAuth        = 3
	ExtIDMultilink   = 4
	ExtIDLowLatency  = 5
	ExtIDCompression = 6
	ExtIDPatch       = 7

	ExtIDTstamp    = 2
	ExtIDNodeID    = 3
	ExtIDTarget    = 4
	ExtIDBudget    = 5
	ExtIDTimeout   = 6
	ExtIDRespID    = 7
	ExtIDSourceInfo = 1
	ExtIDQueryBody  = 2
	ExtIDAttachment = 3
)

// Patch is the negotiated InitSyn/InitAck wire-compatibility patch level.
type Patch uint64

const (
	PatchNone    Patch = 0
	PatchCurrent Patch = 1
)

// Extras is the common extension bundle carried by Push/Request/Response/
// Interest/Declare: qos presence, an optional timestamp, and an optional
// routing node id. Unrecognized fields beyond these are never produced by
// this implementation but are tolerated on decode per extension
// skip-safety (§8).
type Extras struct {
	QoS    bool
	Tstamp []byte // borrowed encoded timestamp, opaque ZBuf
	NodeID []byte // borrowed encoded node identifier, opaque ZBuf
}

// present reports whether WriteExtras emits at least one entry for e.
func (e Extras) present() bool { return e.QoS || e.Tstamp != nil || e.NodeID != nil }

// WriteExtras appends the qos/tstamp/nodeid chain, followed by any
// caller-supplied tail extensions (e.g. Request's target/budget/timeout),
// setting each entry's More flag so the chain continues through tail.
func WriteExtras(w *buf.Writer, e Extras, tail ...wire.Extension) error {
	all := make([]wire.Extension, 0, 3+len(tail))
	if e.QoS {
		all = append(all, wire.Extension{ID: ExtIDQoS, Encoding: wire.ExtUnit})
	}
	if e.Tstamp != nil {
		all = append(all, wire.Extension{ID: ExtIDTstamp, Encoding: wire.ExtZBuf, ZBuf: e.Tstamp})
	}
	if e.NodeID != nil {
		all = append(all, wire.Extension{ID: ExtIDNodeID, Encoding: wire.ExtZBuf, ZBuf: e.NodeID})
	}
	all = append(all, tail...)
	for i := range all {
		all[i].More = i != len(all)-1
		if err := wire.WriteExtension(w, all[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadExtras decodes a chain of Extras plus the caller's own extensions,
// via extra to recognize any IDs beyond qos/tstamp/nodeid. extra is called
// only for IDs this function does not itself recognize; it must consume
// the body itself when it returns true, following ExtensionSink's
// contract.
func ReadExtras(r *buf.Reader, extra wire.ExtensionSink) (Extras, error) {
	var e Extras
	err := wire.ReadExtensionChain(r, func(ext wire.Extension) (bool, error) {
		switch ext.ID {
		case ExtIDQoS:
			e.QoS = true
			return true, nil
		case ExtIDTstamp:
			if err := wire.ReadExtensionBody(r, &ext); err != nil {
				return false, err
			}
			e.Tstamp = ext.ZBuf
			return true, nil
		case ExtIDNodeID:
			if err := wire.ReadExtensionBody(r, &ext); err != nil {
				return false, err
			}
			e.NodeID = ext.ZBuf
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
