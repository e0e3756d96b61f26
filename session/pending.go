package session

import (
	"sync"
	"time"
)

// pendingRequest maps a request_id to its owned keyexpr, response
// handler, and optional deadline (§4.E.5).
type pendingRequest struct {
	keyexpr  string
	handler  func(ResponseOrErr)
	deadline time.Time
	hasDeadline bool
}

// ResponseOrErr is the payload handed to a pending request's handler:
// either a Reply sample or an Err, mirroring ResponseBody (§4.C.2).
type ResponseOrErr struct {
	IsErr          bool
	KeyExpr        string
	Payload        []byte
	HasEncoding    bool
	EncodingID     uint64
	EncodingSuffix string
}

// pendingTable is the fixed-capacity request_id -> pendingRequest map
// (§4.E.5, §5). Drained either by ResponseFinal or by the periodic
// timeout sweep interleaved with the keepalive tick (§4.E.2, §4.E.5).
// Grounded on original_source/crates/zenoh-nostd/src/api/session/get.rs.
//
// Insert/Cancel run on the public-API caller's goroutine (Session.Get/
// CancelGet); Deliver/Finalize/SweepTimeouts run on the driver's
// scheduleLoop goroutine (§5: "guarded by its own lock"). mu serializes
// both sides.
type pendingTable struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint64]*pendingRequest
}

func newPendingTable(capacity int) *pendingTable {
	return &pendingTable{capacity: capacity, entries: make(map[uint64]*pendingRequest, capacity)}
}

// Insert registers a new pending request under rid. Callers must have
// already chosen rid via the session's RequestID sequence (§4.E.1's
// single-writer invariant).
func (t *pendingTable) Insert(rid uint64, ke string, timeout time.Duration, handler func(ResponseOrErr)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[rid]; !exists && len(t.entries) >= t.capacity {
		return ErrCapacityExceeded
	}
	p := &pendingRequest{keyexpr: ke, handler: handler}
	if timeout > 0 {
		p.deadline = time.Now().Add(timeout)
		p.hasDeadline = true
	}
	t.entries[rid] = p
	return nil
}

// Deliver invokes rid's handler with body, if rid is still pending. A
// Response for an unknown/already-finalized rid is silently dropped
// (§5's cancellation rule: "any subsequently-arrived Responses for that
// rid are dropped"). The handler runs with mu released, so a handler
// that itself calls CancelGet or issues a new Get does not deadlock
// against mu.
func (t *pendingTable) Deliver(rid uint64, body ResponseOrErr) {
	t.mu.Lock()
	p, ok := t.entries[rid]
	t.mu.Unlock()
	if !ok {
		return
	}
	p.handler(body)
}

// Finalize removes rid's entry. Removing an unknown rid is a no-op
// (§4.E.3: "idempotent; a removal of an unknown rid is a no-op logged at
// debug level").
func (t *pendingTable) Finalize(rid uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, rid)
}

// Cancel removes rid's entry without invoking its handler (§5: cancelling
// a get before finalize is legal and must not leak the entry).
func (t *pendingTable) Cancel(rid uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, rid)
}

// SweepTimeouts removes every entry whose deadline has passed as of now,
// invoking onTimeout for each with its rid. Called on the same periodic
// tick as the keepalive check (§4.E.2, §4.E.5), not via per-entry timers.
// onTimeout runs with mu released, for the same reentrancy reason as
// Deliver.
func (t *pendingTable) SweepTimeouts(now time.Time, onTimeout func(rid uint64)) {
	t.mu.Lock()
	var expired []uint64
	for rid, p := range t.entries {
		if p.hasDeadline && now.After(p.deadline) {
			delete(t.entries, rid)
			expired = append(expired, rid)
		}
	}
	t.mu.Unlock()
	for _, rid := range expired {
		onTimeout(rid)
	}
}

// Len reports the number of live pending requests.
func (t *pendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
