// Package rpc implements the downlink (host -> worker) half of the
// correlation-id request/response protocol described in spec §4.5: a
// Client that turns method calls into CALL frames and resolves futures on
// matching RESPONSE/ERROR frames, and a Server that dispatches incoming
// CALL frames to a concrete service value by reflection and answers
// TEARDOWN requests.
package rpc

import (
	"sync"
	"time"

	"github.com/deckhand/orkestra/orkerr"
)

// pendingCall is a single outstanding request awaiting its RESPONSE/ERROR,
// mirroring the spec's "pending-call entry" (§3): a correlation id, a
// deadline timer, and the resolve/reject continuation.
type pendingCall struct {
	timer *time.Timer
	done  chan struct{}
	value any
	err   error
}

// pendingTable is the per-channel map of outstanding calls, keyed by
// correlation id. It is written and read only by the owning channel's
// dispatch goroutine plus the goroutine that issued the call, matching
// spec §5's "not shared across workers" resource policy.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingCall)}
}

// register adds id to the table with a deadline timer. If the timer fires
// before complete is called, it completes the call with RPCTimeout through
// complete, which removes id from the table, guaranteeing no leak (spec
// testable property 4).
func (t *pendingTable) register(id string, timeout time.Duration, method string) *pendingCall {
	pc := &pendingCall{done: make(chan struct{})}

	t.mu.Lock()
	t.entries[id] = pc
	t.mu.Unlock()

	pc.timer = time.AfterFunc(timeout, func() {
		t.complete(id, nil, orkerr.RPCTimeout(method, timeout.Milliseconds()))
	})

	return pc
}

// complete resolves the pending call for id, if still outstanding, and
// removes it from the table. Calling complete twice for the same id (e.g.
// a timeout racing a late RESPONSE) is a no-op for the second caller.
func (t *pendingTable) complete(id string, value any, err error) {
	t.mu.Lock()
	pc, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return
	}

	pc.timer.Stop()
	pc.value = value
	pc.err = err
	close(pc.done)
}

// failAll rejects every outstanding call with err (used when the owning
// worker is discovered to be gone, spec §4.4 "Failure policy").
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*pendingCall)
	t.mu.Unlock()

	for _, pc := range entries {
		pc.timer.Stop()
		pc.err = err
		close(pc.done)
	}
}

// wait blocks until pc completes, then returns its result.
func (pc *pendingCall) wait() (any, error) {
	<-pc.done
	return pc.value, pc.err
}
