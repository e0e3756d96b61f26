// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package zlink is a constrained, no-std-minded client for a zenoh-style
// pub/sub/query wire protocol: key-expression matching, a 4-message
// handshake, and a single-writer session driver running on top of a
// caller-supplied Link (§6.3 of the design notes treats the concrete
// transport — TCP dialing, TLS, discovery — as an external collaborator;
// this package only drives an already-connected link.Link).
//
// Open establishes a session and returns a Runner; the caller must invoke
// Runner.Run to service the link for the session's lifetime:
//
//	l := link.NewStream(conn, conn, 65535)
//	sess, run, err := zlink.Open(l, ep, zlink.NewConfig())
//	go run.Run(ctx)
//	sess.Put(ctx, "demo/example/a", payload)
package zlink

import (
	"code.hybscloud.com/zlink/endpoint"
	"code.hybscloud.com/zlink/link"
	"code.hybscloud.com/zlink/session"
)

// Session is the client side of one established link (§4.E, §6.4).
type Session = session.Session

// Runner drives a Session's cooperative loop until disconnected.
type Runner = session.Runner

// Config carries §6.5's recognized options.
type Config = session.Config

// Option configures a Config.
type Option = session.Option

// Sample is a delivered publication (§4.E.4).
type Sample = session.Sample

// OwnedSample is a Sample with every borrowed field deep-copied.
type OwnedSample = session.OwnedSample

// SubscriberID identifies a live subscription.
type SubscriberID = session.SubscriberID

// ResponseOrErr is one Response's decoded body, delivered to a Get handler.
type ResponseOrErr = session.ResponseOrErr

// PutOption configures an outgoing Put.
type PutOption = session.PutOption

// Metrics holds a session's Prometheus collectors.
type Metrics = session.Metrics

var (
	NewConfig      = session.NewConfig
	WithZenohId    = session.WithZenohId
	WithWhatAmI    = session.WithWhatAmI
	WithMineLease  = session.WithMineLease
	WithKeepAliveDivisor = session.WithKeepAliveDivisor
	WithBatchSize  = session.WithBatchSize
	WithResolution = session.WithResolution
	WithOpenTimeout = session.WithOpenTimeout
	WithCapacities = session.WithCapacities
	WithEncoding   = session.WithEncoding
	NewMetrics     = session.NewMetrics
)

// Open performs the initiator handshake over l and returns the resulting
// Session and its Runner (§6.4: "open(link, endpoint, params) ->
// (Session, Runner)"). ep is carried for diagnostics (DebugSnapshot) only;
// it does not influence how l is dialed.
func Open(l link.Link, ep endpoint.Endpoint, cfg Config) (*Session, *Runner, error) {
	return session.Open(l, ep, cfg)
}
