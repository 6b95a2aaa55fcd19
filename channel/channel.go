// Package channel defines the abstract duplex message-passing capability
// the spec treats as an external collaborator (spec §1, §6): something that
// can send a frame, invoke a handler for every frame it receives, and be
// started/closed. Two concrete implementations are provided: an in-process
// PipeChannel for same-process worker simulation and tests, and a
// ProcessChannel that spawns a real OS subprocess wired over stdin/stdout.
package channel

import "github.com/deckhand/orkestra/wire"

// Handler is invoked once per received frame. Implementations run each
// invocation in its own goroutine (spec §5: "Channel message handlers run
// as independent tasks per incoming message and may complete out of
// order").
type Handler func(env wire.Envelope)

// Channel is one end of a duplex, frame-oriented connection.
type Channel interface {
	// Send transmits env to the remote end. Safe for concurrent use.
	Send(env wire.Envelope) error

	// OnMessage registers the handler invoked for every frame received
	// after Start. Must be called before Start.
	OnMessage(h Handler)

	// Start begins reading incoming frames. Must be called at most once.
	Start() error

	// Close releases the channel's underlying resources. Idempotent.
	Close() error
}

// Spawner launches a worker host program for one instance and returns both
// halves the engine needs on its own side: the primary downlink channel,
// and the host-side end of a freshly allocated uplink channel pair (spec
// §4.4 step 3: "allocate a duplex uplink channel pair (hostEnd, workerEnd)
// ... attach an Uplink Server to hostEnd"). The worker-side uplink end is
// handed to the spawned worker by whatever means suits the transport (an
// in-process Spawner hands over the Go channel value directly; a
// subprocess Spawner wires a second OS pipe). Terminate forcibly kills the
// worker; Spawner implementations own process lifecycle.
type Spawner interface {
	Spawn(params SpawnParams) (downlink Channel, uplinkHostEnd Channel, err error)

	// Terminate forcibly kills the process associated with downlink,
	// previously returned by Spawn. Safe to call more than once.
	Terminate(downlink Channel) error
}

// SpawnParams carries the bundle a Spawner needs to launch a worker host:
// entry point, instance identity, and validated config.
type SpawnParams struct {
	InstanceID string
	TypeID     string
	EntryPoint string
	Config     any
}
