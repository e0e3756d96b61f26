package session

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/teris-io/shortid"

	"code.hybscloud.com/zlink/keyexpr"
	"code.hybscloud.com/zlink/proto"
)

// traceABC mirrors rockstar-0000-aistore's cos.uuidABC alphabet choice
// (cmn/cos/uuid.go): a shortid alphabet avoiding characters that read
// ambiguously in a log line.
const traceABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var traceSID = shortid.MustNew(1, traceABC, 0)

// newTraceID returns a short human-readable id for correlating a get()
// call or subscription declaration across log lines (debug use only;
// never placed on the wire). SPEC_FULL §2.
func newTraceID() string { return traceSID.MustGenerate() }

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// PutOption configures an outgoing Put (§6.4's "put(keyexpr, payload,
// encoding?)").
type PutOption func(*proto.Put)

// WithEncoding attaches an encoding id/suffix to a Put's resulting
// message.
func WithEncoding(id uint64, suffix string) PutOption {
	return func(p *proto.Put) { p.Encoding = proto.Encoding{ID: id, Suffix: suffix} }
}

// Put publishes payload under keyexpr (§6.4). It returns once the
// message has been handed to the driver's single writer and actually
// written to the link, or the context is cancelled first.
func (s *Session) Put(ctx context.Context, ke string, payload []byte, opts ...PutOption) error {
	if err := keyexpr.Validate(ke); err != nil {
		return err
	}
	body := proto.Put{Payload: payload}
	for _, opt := range opts {
		opt(&body)
	}
	item := outboundItem{
		kind: outPush,
		push: proto.Push{
			WireExpr: proto.WireExpr{Suffix: ke, Mapping: proto.MappingSender},
			Body:     body,
		},
	}
	return s.enqueue(ctx, item)
}

// Get issues a query over keyexpr with the given parameters string,
// invoking handler for every Response until ResponseFinal or timeout
// (§6.4's "get(keyexpr, params, callback|channel, timeout)"). The
// returned request id may be used with CancelGet.
func (s *Session) Get(ctx context.Context, ke, parameters string, timeout time.Duration, handler func(ResponseOrErr)) (uint64, error) {
	if err := keyexpr.Validate(ke); err != nil {
		return 0, err
	}
	rid := s.nextRequestID()
	trace := newTraceID()
	s.log.Debug("get", "trace", trace, "keyexpr", ke, "rid", rid)
	if err := s.pending.Insert(rid, ke, timeout, handler); err != nil {
		return 0, err
	}
	item := outboundItem{
		kind: outRequest,
		request: proto.Request{
			RequestID: rid,
			WireExpr:  proto.WireExpr{Suffix: ke, Mapping: proto.MappingSender},
			Body:      proto.Query{Parameters: parameters},
		},
	}
	if err := s.enqueue(ctx, item); err != nil {
		s.pending.Cancel(rid)
		return 0, err
	}
	return rid, nil
}

// CancelGet removes rid's pending entry without invoking its handler
// (§5: "cancelling a get before finalize is legal... must not leak
// entries").
func (s *Session) CancelGet(rid uint64) { s.pending.Cancel(rid) }

// DeclareSubscriber registers cb to run for every future Push matching
// keyexpr (wildcard-aware, §4.E.4) and sends the corresponding Declare
// message to the peer.
func (s *Session) DeclareSubscriber(ctx context.Context, ke string, cb func(Sample)) (SubscriberID, error) {
	if err := keyexpr.Validate(ke); err != nil {
		return 0, err
	}
	id, err := s.subs.Declare(ke, cb)
	if err != nil {
		return 0, err
	}
	trace := newTraceID()
	s.log.Debug("declare_subscriber", "trace", trace, "keyexpr", ke, "id", id)
	s.metrics.ActiveSubscribers.Inc()
	item := outboundItem{
		kind: outDeclare,
		declare: proto.Declare{
			HasID: true,
			ID:    uint64(id),
			Which: proto.DeclSubscriber,
			Body: proto.DeclareBody{
				KeyExprID: uint32(id),
				WireExpr:  proto.WireExpr{Suffix: ke, Mapping: proto.MappingSender},
			},
		},
	}
	if err := s.enqueue(ctx, item); err != nil {
		s.subs.Undeclare(id)
		s.metrics.ActiveSubscribers.Dec()
		return 0, err
	}
	return id, nil
}

// UndeclareSubscriber removes a previously declared subscription and
// notifies the peer.
func (s *Session) UndeclareSubscriber(ctx context.Context, id SubscriberID) error {
	s.subs.Undeclare(id)
	s.metrics.ActiveSubscribers.Dec()
	item := outboundItem{
		kind: outDeclare,
		declare: proto.Declare{
			HasID: true,
			ID:    uint64(id),
			Which: proto.DeclUndeclareSubscriber,
			Body:  proto.DeclareBody{KeyExprID: uint32(id)},
		},
	}
	return s.enqueue(ctx, item)
}

// debugSnapshot is the plain-data view serialized by DebugSnapshot.
type debugSnapshot struct {
	Endpoint           string `json:"endpoint"`
	OtherWhatAmI       uint8  `json:"other_whatami"`
	BatchSize          uint16 `json:"batch_size"`
	OtherLeaseSeconds  float64 `json:"other_lease_seconds"`
	ActiveSubscribers  int    `json:"active_subscribers"`
	PendingRequests    int    `json:"pending_requests"`
	Closed             bool   `json:"closed"`
}

// DebugSnapshot serializes the session's negotiated config, lease state,
// and table occupancy for diagnostics, using jsoniter's drop-in API
// rather than encoding/json (SPEC_FULL §2, grounded on
// rockstar-0000-aistore/stats/common_statsd.go's jsoniter.Marshal use).
func (s *Session) DebugSnapshot() ([]byte, error) {
	snap := debugSnapshot{
		Endpoint:          s.endpoint.String(),
		OtherWhatAmI:      uint8(s.otherWhatAmI),
		BatchSize:         s.batchSize,
		OtherLeaseSeconds: s.otherLease.Seconds(),
		ActiveSubscribers: s.subs.Len(),
		PendingRequests:   s.pending.Len(),
		Closed:            s.closed.Load(),
	}
	return jsonAPI.Marshal(snap)
}

// Close marks the session closed; any outbound call made after Close
// returns ErrConnectionClosed. The underlying link itself is owned by
// the caller that constructed it via Open and is not closed here.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}
