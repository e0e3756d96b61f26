// Package zlog is a thin seam around log/slog: callers pass structured
// fields the way the teacher passes functional Options, rather than
// formatting strings at call sites. Grounded on the other_examples MQTT
// broker's *slog.Logger field (SPEC_FULL §1: no pack repo with a real
// dependency stack carries a third-party logger).
package zlog

import (
	"io"
	"log/slog"
)

// Logger wraps *slog.Logger with the handful of call shapes the driver
// loop and handshake actually need.
type Logger struct {
	l *slog.Logger
}

// Discard is a Logger that drops every record, used as the zero-value
// default so callers never need a nil check.
var Discard = &Logger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}

// New wraps an existing *slog.Logger.
func New(l *slog.Logger) *Logger {
	if l == nil {
		return Discard
	}
	return &Logger{l: l}
}

// With returns a Logger that always includes the given key/value pairs,
// mirroring slog.Logger.With.
func (z *Logger) With(args ...any) *Logger {
	if z == nil {
		return Discard
	}
	return &Logger{l: z.l.With(args...)}
}

func (z *Logger) slog() *slog.Logger {
	if z == nil || z.l == nil {
		return Discard.l
	}
	return z.l
}

// Debug logs decode failures, dropped ResponseFinals and similar
// low-severity, high-frequency events (§4.E.3, §4.E.5).
func (z *Logger) Debug(msg string, args ...any) { z.slog().Debug(msg, args...) }

// Warn logs conditions the driver recovers from but that indicate a
// misbehaving peer or configuration (e.g. a codec error discarding a
// batch, §7's propagation policy).
func (z *Logger) Warn(msg string, args ...any) { z.slog().Warn(msg, args...) }

// Error logs conditions that close the session (link failure, lease
// expiry, handshake failure).
func (z *Logger) Error(msg string, args ...any) { z.slog().Error(msg, args...) }
