// Package worker holds the runtime-only worker record and its state
// machine (spec §3 "Worker record", §4.4 state diagram):
//
//	spawning --(WORKER_READY)--> ready --(TEARDOWN sent)--> tearing_down --(TEARDOWN_COMPLETE | timeout)--> terminated
//	  |                                                         |
//	  +---------------(spawn failure / crash)-------------------+----> terminated
package worker

import (
	"sync"

	"github.com/deckhand/orkestra/channel"
	"github.com/deckhand/orkestra/rpc"
	"github.com/deckhand/orkestra/uplink"
)

// State is one of the four worker lifecycle states.
type State int

const (
	StateSpawning State = iota
	StateReady
	StateTearingDown
	StateTerminated
)

// String renders a State the way the teacher's enum-ish constants render in
// log lines (lowercase, matching spec wording).
func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateReady:
		return "ready"
	case StateTearingDown:
		return "tearing_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Record is the runtime-only bookkeeping for one spawned worker: its
// downlink channel, the RPC client proxy installed against it, the uplink
// server resolving its dependency calls, and its current lifecycle state.
type Record struct {
	mu sync.Mutex

	InstanceID   string
	Downlink     channel.Channel
	Uplink       channel.Channel
	Client       *rpc.Client
	UplinkServer *uplink.Server

	state State
}

// NewRecord creates a Record in the spawning state, as installed
// immediately after a successful Spawn call (spec §4.4 step 3).
// uplinkHostEnd is the host-side end of the uplink pair returned alongside
// downlink by Spawn; teardown closes both so a worker stop never leaks the
// uplink channel's goroutine or file descriptors.
func NewRecord(instanceID string, downlink, uplinkHostEnd channel.Channel, client *rpc.Client, uplinkServer *uplink.Server) *Record {
	return &Record{
		InstanceID:   instanceID,
		Downlink:     downlink,
		Uplink:       uplinkHostEnd,
		Client:       client,
		UplinkServer: uplinkServer,
		state:        StateSpawning,
	}
}

// State returns the current lifecycle state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// MarkReady transitions spawning -> ready on WORKER_READY. A no-op if
// already ready or past ready (a redelivered WORKER_READY should not
// resurrect a terminated record).
func (r *Record) MarkReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateSpawning {
		r.state = StateReady
	}
}

// MarkTearingDown transitions ready -> tearing_down when a TEARDOWN request
// is sent.
func (r *Record) MarkTearingDown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateReady {
		r.state = StateTearingDown
	}
}

// MarkTerminated transitions to terminated from any state: graceful
// TEARDOWN_COMPLETE, teardown timeout + forced kill, spawn failure, or a
// crash discovered after ready. Idempotent.
func (r *Record) MarkTerminated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateTerminated
}
