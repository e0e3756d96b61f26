package session

import "code.hybscloud.com/zlink/proto"

// resourceTable is a fixed-capacity scope-id -> canonical-keyexpr table,
// populated by incoming DeclareKeyExpr/DeclareSubscriber/... messages and
// consulted to resolve a later WireExpr's scope+suffix into a full
// keyexpr string (§3.1's WireExpr entity; SUPPLEMENTED FEATURES in
// SPEC_FULL §3, grounded on original_source/crates/zenoh-nostd/src/api/
// session/resources.rs).
//
// Only the declaring peer's own resources are modeled here: a client
// never needs to resolve a scope it did not itself receive a Declare for.
type resourceTable struct {
	capacity int
	byID     map[uint32]string
}

func newResourceTable(capacity int) *resourceTable {
	return &resourceTable{capacity: capacity, byID: make(map[uint32]string, capacity)}
}

// Declare records that scope id maps to keyexpr. Re-declaring an existing
// id overwrites it (the wire format permits a responder to redefine a
// scope; §4.E.3 applies Declare to the local name table unconditionally).
func (t *resourceTable) Declare(id uint32, keyexpr string) error {
	if _, exists := t.byID[id]; !exists && len(t.byID) >= t.capacity {
		return ErrCapacityExceeded
	}
	t.byID[id] = keyexpr
	return nil
}

// Undeclare removes id; removing an unknown id is a no-op (mirrors
// ResponseFinal's idempotent-removal discipline in §4.E.3).
func (t *resourceTable) Undeclare(id uint32) {
	delete(t.byID, id)
}

// Resolve expands a wire-carried WireExpr into a full keyexpr string. A
// scope of 0 means the suffix is already the complete expression; a
// non-zero scope names a previously declared base that the suffix (if
// any) is appended to.
func (t *resourceTable) Resolve(we proto.WireExpr) (string, error) {
	if we.Scope == 0 {
		return we.Suffix, nil
	}
	base, ok := t.byID[uint32(we.Scope)]
	if !ok {
		return "", ErrKeyNotFound
	}
	if we.Suffix == "" {
		return base, nil
	}
	return base + we.Suffix, nil
}
