// Package session drives a single established link: the cooperative
// send/receive loop, subscription and pending-request tables, sequence
// number bookkeeping, and inbound dispatch (§4.E, §5).
package session

import "github.com/pkg/errors"

// Session-level error kinds (§7's Transport/Collection taxonomy).
var (
	ErrConnectionClosed   = errors.New("session: connection closed")
	ErrOpenTimeout        = errors.New("session: open timeout")
	ErrCapacityExceeded   = errors.New("session: capacity exceeded")
	ErrKeyNotFound        = errors.New("session: key not found")
	ErrKeyAlreadyExists   = errors.New("session: key already exists")
	ErrRequestCancelled   = errors.New("session: request cancelled")
	ErrInvalidArgument    = errors.New("session: invalid argument")
)
