package keyexpr

import "strings"

// Intersects reports whether two canonical key expressions could both
// match at least one concrete (wildcard-free) key, per §4.E.4. It assumes
// both a and b already passed Validate.
//
// Grounded directly on the chunk-wise recursive algorithm in
// crates/zenoh-proto/src/protocol/ke/intersect.rs: an exact-string
// fast path, then a chunk-recursive walk that special-cases "**" absorbing
// any run of chunks (stopping at a verbatim chunk on the other side) and
// falls into a DSL-aware intra-chunk matcher only when either side
// contains a '$'.
func Intersects(a, b string) bool {
	if a == b {
		return true
	}
	useDSL := strings.ContainsRune(a, '$') || strings.ContainsRune(b, '$')
	return chunksIntersect(splitChunks(a), splitChunks(b), useDSL)
}

func splitChunks(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

func chunksIntersect(it1, it2 []string, dsl bool) bool {
	for len(it1) > 0 && len(it2) > 0 {
		c1, rest1 := it1[0], it1[1:]
		c2, rest2 := it2[0], it2[1:]

		switch {
		case c1 == "**":
			if len(rest1) == 0 {
				return !anyVerbatim(it2)
			}
			if !hasDirectVerbatim(c2) && chunksIntersect(it1, rest2, dsl) {
				return true
			}
			return chunksIntersect(rest1, it2, dsl)
		case c2 == "**":
			if len(rest2) == 0 {
				return !anyVerbatim(it1)
			}
			if !hasDirectVerbatim(c1) && chunksIntersect(rest1, it2, dsl) {
				return true
			}
			return chunksIntersect(it1, rest2, dsl)
		case chunkIntersect(c1, c2, dsl):
			it1, it2 = rest1, rest2
		default:
			return false
		}
	}
	return (len(it1) == 0 || it1[0] == "**") && (len(it2) == 0 || it2[0] == "**")
}

func hasDirectVerbatim(c string) bool { return strings.HasPrefix(c, "@") }

func anyVerbatim(chunks []string) bool {
	for _, c := range chunks {
		if hasDirectVerbatim(c) {
			return true
		}
	}
	return false
}

func chunkIntersect(c1, c2 string, dsl bool) bool {
	if c1 == c2 {
		return true
	}
	if hasDirectVerbatim(c1) || hasDirectVerbatim(c2) {
		return false
	}
	if c1 == "*" || c2 == "*" {
		return true
	}
	if dsl {
		return dollarStarIntersect(c1, c2)
	}
	return false
}

// dollarStarIntersect matches two chunk texts modulo "$*" wildcards with
// possible literal interleavings, grounded on star_dsl_intersect in the
// Rust source. "$*" at either side's current position can absorb zero or
// more bytes of the other side; recursion explores both "absorb nothing
// more" and "absorb one more byte" branches.
func dollarStarIntersect(s1, s2 string) bool {
	for len(s1) > 0 && len(s2) > 0 {
		c1, rest1 := s1[0], s1[1:]
		c2, rest2 := s2[0], s2[1:]

		switch {
		case c1 == '$' && c2 == '$':
			// Both sides open a "$*" run: either expansion order
			// eventually converges, or it doesn't.
			if len(rest1) == 1 || len(rest2) == 1 {
				return true
			}
			if dollarStarIntersect(rest1[1:], s2) {
				return true
			}
			return dollarStarIntersect(s1, rest2[1:])
		case c1 == '$':
			if len(rest1) == 1 {
				return true
			}
			if dollarStarIntersect(rest1[1:], s2) {
				return true
			}
			s2 = rest2
		case c2 == '$':
			if len(rest2) == 1 {
				return true
			}
			if dollarStarIntersect(s1, rest2[1:]) {
				return true
			}
			s1 = rest1
		case c1 == c2:
			s1, s2 = rest1, rest2
		default:
			return false
		}
	}
	return (s1 == "" && s2 == "") || s1 == "$*" || s2 == "$*"
}
