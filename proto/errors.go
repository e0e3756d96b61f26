// Package proto implements the wire message algebra: transport messages
// (handshake, keepalive, framing), network messages (pub/sub/query
// control), and zenoh payload messages (put/query/reply/err), per §4.C.
package proto

import "github.com/pkg/errors"

// Message-algebra error kinds layered on top of wire's codec errors (§7).
var (
	ErrInvalidMessage  = errors.New("proto: unexpected message type")
	ErrUnknownID       = errors.New("proto: unrecognized message ID")
	ErrResolutionRange = errors.New("proto: value exceeds negotiated resolution width")
)
