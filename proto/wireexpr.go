package proto

import (
	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/wire"
)

// Mapping selects whether a WireExpr's scope id was assigned by the
// sender or the receiver of the declaration that introduced it.
type Mapping uint8

const (
	MappingReceiver Mapping = 0
	MappingSender   Mapping = 1
)

// WireExpr is the on-the-wire form of a key expression: either a borrowed
// suffix string (scope 0, global), a previously-declared scope id with no
// suffix, or a scope id plus a relative suffix (§3.1).
//
//	scope    — always written (VLE); 0 means global
//	suffix   — iff the message's N flag is set
type WireExpr struct {
	Scope   uint16
	Suffix  string // borrowed from the decode buffer
	Mapping Mapping
}

// HasSuffix reports whether e carries a non-empty suffix.
func (e WireExpr) HasSuffix() bool { return e.Suffix != "" }

// IsEmpty reports whether e names neither a scope nor a suffix.
func (e WireExpr) IsEmpty() bool { return e.Scope == 0 && e.Suffix == "" }

// Equal compares scope and suffix only; mapping is bookkeeping for the
// declaring side and is not part of WireExpr identity (§3.1: "Equality
// ignores encoding choice").
func (e WireExpr) Equal(other WireExpr) bool {
	return e.Scope == other.Scope && e.Suffix == other.Suffix
}

// WriteWireExpr encodes e's scope id, and its suffix when non-empty. The
// caller is responsible for setting the N (has-suffix) and M
// (mapping=Sender) header flags to match e before calling this.
func WriteWireExpr(w *buf.Writer, e WireExpr) error {
	if err := wire.WriteVLE(w, uint64(e.Scope)); err != nil {
		return err
	}
	if e.HasSuffix() {
		return wire.WriteString(w, e.Suffix)
	}
	return nil
}

// ReadWireExpr decodes a WireExpr, reading a suffix only if hasSuffix is
// true (the caller has already read this from the enclosing message's N
// flag) and tagging the mapping from the caller's M flag reading.
func ReadWireExpr(r *buf.Reader, hasSuffix bool, mapping Mapping) (WireExpr, error) {
	scope, err := wire.ReadVLEu16(r)
	if err != nil {
		return WireExpr{}, err
	}
	e := WireExpr{Scope: scope, Mapping: mapping}
	if hasSuffix {
		s, err := wire.ReadString(r)
		if err != nil {
			return WireExpr{}, err
		}
		e.Suffix = s
	}
	return e, nil
}
