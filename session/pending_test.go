package session

import (
	"sync"
	"testing"
	"time"
)

// TestPendingTableInsertAndDeliverAreConcurrencySafe mirrors the real
// topology: one goroutine plays the public-API caller inserting/
// cancelling requests (Session.Get/CancelGet) while another plays the
// driver's scheduleLoop delivering responses and sweeping timeouts, per
// §5's "guarded by its own lock". Run with -race to catch a regression.
func TestPendingTableInsertAndDeliverAreConcurrencySafe(t *testing.T) {
	pt := newPendingTable(64)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := uint64(0); i < 200; i++ {
			if err := pt.Insert(i, "demo/a", 0, func(ResponseOrErr) {}); err != nil {
				continue
			}
			pt.Cancel(i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := uint64(0); i < 200; i++ {
			pt.Deliver(i, ResponseOrErr{})
			pt.SweepTimeouts(time.Now(), func(uint64) {})
		}
	}()
	wg.Wait()
}

// TestPendingTableDeliverHandlerMayCancel checks that a handler invoked
// from Deliver can call Cancel on the same table without deadlocking —
// Deliver must not hold its lock while running the handler.
func TestPendingTableDeliverHandlerMayCancel(t *testing.T) {
	pt := newPendingTable(4)
	if err := pt.Insert(1, "demo/a", 0, func(ResponseOrErr) { pt.Cancel(1) }); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	done := make(chan struct{})
	go func() {
		pt.Deliver(1, ResponseOrErr{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Deliver deadlocked when handler called Cancel")
	}
}

func TestPendingTableDeliverInvokesHandler(t *testing.T) {
	pt := newPendingTable(4)
	var got ResponseOrErr
	if err := pt.Insert(1, "demo/a", 0, func(r ResponseOrErr) { got = r }); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	pt.Deliver(1, ResponseOrErr{Payload: []byte("x")})
	if string(got.Payload) != "x" {
		t.Fatalf("got %q", got.Payload)
	}
}

func TestPendingTableDeliverUnknownRidIsNoop(t *testing.T) {
	pt := newPendingTable(4)
	pt.Deliver(99, ResponseOrErr{}) // must not panic
}

func TestPendingTableFinalizeIsIdempotent(t *testing.T) {
	pt := newPendingTable(4)
	_ = pt.Insert(1, "demo/a", 0, func(ResponseOrErr) {})
	pt.Finalize(1)
	pt.Finalize(1) // second call on an already-removed id is a no-op
	if pt.Len() != 0 {
		t.Fatalf("got Len %d", pt.Len())
	}
}

func TestPendingTableCancelDoesNotInvokeHandler(t *testing.T) {
	pt := newPendingTable(4)
	calls := 0
	_ = pt.Insert(1, "demo/a", 0, func(ResponseOrErr) { calls++ })
	pt.Cancel(1)
	pt.Deliver(1, ResponseOrErr{})
	if calls != 0 {
		t.Fatalf("got %d calls, want 0 after Cancel", calls)
	}
}

func TestPendingTableCapacityExceeded(t *testing.T) {
	pt := newPendingTable(1)
	if err := pt.Insert(1, "a", 0, func(ResponseOrErr) {}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := pt.Insert(2, "b", 0, func(ResponseOrErr) {}); err != ErrCapacityExceeded {
		t.Fatalf("got %v, want ErrCapacityExceeded", err)
	}
}

func TestPendingTableSweepTimeouts(t *testing.T) {
	pt := newPendingTable(4)
	_ = pt.Insert(1, "a", time.Millisecond, func(ResponseOrErr) {})
	_ = pt.Insert(2, "b", time.Hour, func(ResponseOrErr) {})
	var timedOut []uint64
	pt.SweepTimeouts(time.Now().Add(time.Second), func(rid uint64) { timedOut = append(timedOut, rid) })
	if len(timedOut) != 1 || timedOut[0] != 1 {
		t.Fatalf("got %v, want [1]", timedOut)
	}
	if pt.Len() != 1 {
		t.Fatalf("got Len %d, want 1 (rid 2 survives)", pt.Len())
	}
}
