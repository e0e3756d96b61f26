package session

import (
	"strings"
	"sync"

	"github.com/OneOfOne/xxhash"
	cuckoo "github.com/seiflotfy/cuckoofilter"

	"code.hybscloud.com/zlink/keyexpr"
)

// subscriptionSeed is the xxhash seed used to bucket canonical keyexprs
// into the subscription table, mirroring rockstar-0000-aistore's
// cos.MLCG32 constant-seed convention (fs/hrw.go, cmn/cos/uuid.go) rather
// than an unseeded hash.
const subscriptionSeed = 0x2545F4914F6CDD1D

// Sample is a borrowed publication handed to a subscription callback
// (§3.3, §4.E.3). It is only valid for the duration of the callback;
// retain it past return only via ToOwned.
type Sample struct {
	KeyExpr    string
	Payload    []byte // borrowed
	HasEncoding bool
	EncodingID uint64
	EncodingSuffix string
	HasTimestamp bool
	Timestamp  []byte // borrowed, opaque
	Attachment []byte // borrowed
}

// OwnedSample is a Sample with every borrowed field bounded-copied, safe
// to retain past the callback's return (§3.3, SUPPLEMENTED FEATURES:
// original_source/crates/zenoh-nostd/src/api/callbacks.rs).
type OwnedSample struct {
	KeyExpr    string
	Payload    []byte
	HasEncoding bool
	EncodingID uint64
	EncodingSuffix string
	HasTimestamp bool
	Timestamp  []byte
	Attachment []byte
}

// ToOwned copies every borrowed field of s into a value independent of
// the receive buffer.
func (s Sample) ToOwned() OwnedSample {
	return OwnedSample{
		KeyExpr:        s.KeyExpr,
		Payload:        append([]byte(nil), s.Payload...),
		HasEncoding:    s.HasEncoding,
		EncodingID:     s.EncodingID,
		EncodingSuffix: s.EncodingSuffix,
		HasTimestamp:   s.HasTimestamp,
		Timestamp:      append([]byte(nil), s.Timestamp...),
		Attachment:     append([]byte(nil), s.Attachment...),
	}
}

// SubscriberID uniquely names a declare_subscriber registration within a
// session (§3.1's Subscription Record, drawn from a monotonic counter
// never reused within the session).
type SubscriberID uint32

// subscription is one entry of the subscription table.
type subscription struct {
	id       SubscriberID
	keyexpr  string
	firstChunk string
	wildFirst  bool // first chunk is "*", "**" or contains "$*": always a candidate, never filtered
	callback func(Sample)
}

// subscriptionTable is the fixed-capacity keyexpr-matched dispatch table
// (§4.E.4, §5 "no heap required"). Declared entries are bucketed by
// xxhash(keyexpr) for O(1) average exact lookup on undeclare, and a
// cuckoofilter over literal (non-wildcard) first chunks lets dispatch
// skip the O(n) intersection scan entirely when a Push's first chunk
// provably matches no declared subscription (SPEC_FULL §2 domain stack).
//
// Declare/Undeclare run on whichever goroutine calls the public API
// (Session.DeclareSubscriber/UndeclareSubscriber); Dispatch runs on the
// driver's scheduleLoop goroutine as Pushes arrive (§5: "guarded by its
// own lock"). mu serializes both sides.
type subscriptionTable struct {
	mu        sync.Mutex
	capacity  int
	nextID    uint32
	buckets   map[uint64][]*subscription
	byID      map[SubscriberID]*subscription
	literal   *cuckoo.Filter
	wildCount int
}

func newSubscriptionTable(capacity int) *subscriptionTable {
	return &subscriptionTable{
		capacity: capacity,
		buckets:  make(map[uint64][]*subscription),
		byID:     make(map[SubscriberID]*subscription, capacity),
		literal:  cuckoo.NewFilter(uint(capacity * 2)),
	}
}

func firstChunk(ke string) string {
	if i := strings.IndexByte(ke, '/'); i >= 0 {
		return ke[:i]
	}
	return ke
}

// Declare registers cb to be invoked for every future Push whose keyexpr
// intersects ke. It returns ErrCapacityExceeded once MaxSubscribers
// entries are live, never silently overfilling the table (§5).
func (t *subscriptionTable) Declare(ke string, cb func(Sample)) (SubscriberID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.byID) >= t.capacity {
		return 0, ErrCapacityExceeded
	}
	t.nextID++
	id := SubscriberID(t.nextID)
	fc := firstChunk(ke)
	sub := &subscription{
		id:         id,
		keyexpr:    ke,
		firstChunk: fc,
		wildFirst:  fc == "*" || fc == "**" || strings.Contains(fc, "$*"),
		callback:   cb,
	}
	bucket := xxhash.Checksum64S([]byte(ke), subscriptionSeed)
	t.buckets[bucket] = append(t.buckets[bucket], sub)
	t.byID[id] = sub
	if sub.wildFirst {
		t.wildCount++
	} else {
		t.literal.Insert([]byte(fc))
	}
	return id, nil
}

// Undeclare removes id; removing an unknown id is a no-op (mirrors the
// idempotent-removal discipline of ResponseFinal, §4.E.3).
func (t *subscriptionTable) Undeclare(id SubscriberID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byID, id)
	bucket := xxhash.Checksum64S([]byte(sub.keyexpr), subscriptionSeed)
	bs := t.buckets[bucket]
	for i, s := range bs {
		if s.id == id {
			t.buckets[bucket] = append(bs[:i], bs[i+1:]...)
			break
		}
	}
	if sub.wildFirst {
		t.wildCount--
	}
	// The literal filter is left as-is: cuckoofilter deletion requires the
	// exact inserted key and a stale positive only costs a wasted (but
	// still correct, since Dispatch falls through to the full intersection
	// check) scan, never a missed match.
}

// Dispatch invokes cb for every declared subscription whose keyexpr
// intersects incoming (§4.E.4). incoming must already be a concrete,
// non-wildcard keyexpr, as carried by a real Push. The matching set is
// snapshotted under lock and cb is invoked with the lock released, so a
// callback that itself declares or undeclares a subscription does not
// deadlock against mu.
func (t *subscriptionTable) Dispatch(incoming string, cb func(*subscription)) {
	t.mu.Lock()
	if len(t.byID) == 0 {
		t.mu.Unlock()
		return
	}
	fc := firstChunk(incoming)
	literalPossible := t.literal.Lookup([]byte(fc))
	if !literalPossible && t.wildCount == 0 {
		t.mu.Unlock()
		return
	}
	var matches []*subscription
	for _, sub := range t.byID {
		if !keyexpr.Intersects(sub.keyexpr, incoming) {
			continue
		}
		matches = append(matches, sub)
	}
	t.mu.Unlock()
	for _, sub := range matches {
		cb(sub)
	}
}

// Len reports the number of live subscriptions.
func (t *subscriptionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
