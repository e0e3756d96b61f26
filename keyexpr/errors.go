// Package keyexpr parses, validates, and intersects key expressions: the
// non-empty, '/'-separated, wildcard-aware strings used to address
// publications, queries, and subscriptions (§3.1).
package keyexpr

import "github.com/pkg/errors"

// KeyExpr error kinds (§7).
var (
	ErrEmptyChunk             = errors.New("keyexpr: empty chunk")
	ErrLoneDollarStar         = errors.New("keyexpr: bare $ not followed by *")
	ErrSingleStarAfterDoubleStar = errors.New("keyexpr: * immediately after **")
	ErrDoubleStarAfterDoubleStar = errors.New("keyexpr: ** immediately after **")
	ErrStarInChunk            = errors.New("keyexpr: * mixed with other content")
	ErrDollarAfterDollar      = errors.New("keyexpr: two adjacent $")
	ErrSharpOrQMark           = errors.New("keyexpr: '#' or '?' not allowed")
	ErrUnboundDollar          = errors.New("keyexpr: trailing $ with no following *")
	ErrWildChunk              = errors.New("keyexpr: malformed wildcard chunk")
	ErrTrailingSlash          = errors.New("keyexpr: trailing '/'")
	ErrEmpty                  = errors.New("keyexpr: empty key expression")
)
