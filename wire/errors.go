// Package wire implements the bit-level framing shared by every message on
// the link: variable-length integers, fixed-width little-endian integers,
// length-prefixed byte strings, and the self-describing extension chains
// that every message may carry.
package wire

import "github.com/pkg/errors"

// Codec error kinds (§7). Each is a sentinel comparable with errors.Is;
// github.com/pkg/errors.Wrap attaches the call-site stack when a decoder
// surfaces one of these to its caller.
var (
	ErrCouldNotRead             = errors.New("wire: could not read")
	ErrCouldNotWrite            = errors.New("wire: could not write")
	ErrCouldNotParseHeader      = errors.New("wire: could not parse header")
	ErrCouldNotParseField       = errors.New("wire: could not parse field")
	ErrMalformedVLE             = errors.New("wire: malformed VLE")
	ErrMissingMandatoryExtension = errors.New("wire: missing mandatory extension")
	ErrFmt                      = errors.New("wire: malformed UTF-8")
)
