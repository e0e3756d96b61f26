// Package link provides the abstract transport boundary the session driver
// runs on top of: a byte-oriented Link with stream/datagram framing and the
// initiator-side four-message establishment handshake.
package link

import (
	"runtime"

	"code.hybscloud.com/iox"
	"github.com/pkg/errors"
)

// yieldOnce cooperatively yields the goroutine, mirroring the teacher's
// framer.yieldOnce: avoid burning a full core while retrying after
// ErrWouldBlock on a non-blocking transport.
func yieldOnce() { runtime.Gosched() }

var (
	// ErrInvalidArgument reports a nil link or malformed configuration.
	ErrInvalidArgument = errors.New("link: invalid argument")

	// ErrTooLong reports a message exceeding the streamed 2-byte length
	// prefix's range (65535 bytes, §6.1).
	ErrTooLong = errors.New("link: message too long")

	// ErrInvalidMessage reports a handshake response of the wrong message
	// type (§4.D.2). A mandatory extension this side does not support
	// surfaces as wire.ErrMissingMandatoryExtension instead.
	ErrInvalidMessage = errors.New("link: invalid handshake message")

	// ErrHandshakeTimeout reports the establishment state machine exceeding
	// its open_timeout deadline (§4.D.2).
	ErrHandshakeTimeout = errors.New("link: handshake timeout")

	// ErrVersionTooOld reports a responder advertising a protocol version
	// below this implementation's minimum (§4.D.2).
	ErrVersionTooOld = errors.New("link: peer version too old")
)

// These are re-exposed so callers need not import iox directly, mirroring
// the teacher's own framer.ErrWouldBlock/ErrMore aliasing.
var (
	// ErrWouldBlock means "no further progress without waiting". An
	// expected, non-failure control-flow signal for non-blocking I/O.
	ErrWouldBlock = iox.ErrWouldBlock

	// ErrMore means "this completion is usable and more completions will
	// follow" — not io.EOF, not "try later".
	ErrMore = iox.ErrMore
)
