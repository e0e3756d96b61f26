package session

import "code.hybscloud.com/zlink/proto"

// SeqNum is a sequence number modulo the negotiated FrameSN resolution
// (§3.2: "advance monotonically modulo the negotiated resolution;
// wrap-around is legal and compared using circular arithmetic"). Grounded
// on the circular-distance comparison in original_source/crates/
// zenoh-nostd-core/src/protocol/transport/frame.rs (SPEC_FULL §3).
type SeqNum struct {
	width proto.FieldWidth
	mask  uint64
	resolution uint64 // mask+1; zero only for Width64 (wraps via uint64 overflow)
}

// NewSeqNum constructs a SeqNum sized by width. SeqNum holds only the
// width's arithmetic, not a current value: initial is not retained, and
// callers pass the current value to Next and Precedes themselves.
func NewSeqNum(width proto.FieldWidth, initial uint64) SeqNum {
	mask := width.Mask()
	s := SeqNum{width: width, mask: mask}
	if mask != ^uint64(0) {
		s.resolution = mask + 1
	}
	return s
}

// Next returns cur advanced by one, wrapping modulo the width's range
// (§4.E.2: "tx.sn = wrapping_increment(tx.sn, resolution)").
func (s SeqNum) Next(cur uint64) uint64 {
	return (cur + 1) & s.mask
}

// Precedes reports whether a comes strictly before b in circular sequence
// order modulo the negotiated width, i.e. the signed distance from a to b
// is positive and less than half the resolution. Unlike plain numeric
// comparison it stays correct across a wrap (SPEC_FULL §3). The inbound
// path does not call it: handleFrame does not check received frame SNs.
func (s SeqNum) Precedes(a, b uint64) bool {
	diff := (b - a) & s.mask
	if diff == 0 {
		return false
	}
	half := (s.mask + 1) / 2
	if s.mask == ^uint64(0) {
		// Width64: mask+1 overflows to 0; compute half via bit shift instead.
		half = 1 << 63
	}
	return diff < half
}
