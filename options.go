package orkestra

import (
	"time"

	"github.com/deckhand/orkestra/channel"
)

const (
	defaultRPCTimeout      = 10 * time.Second
	defaultTeardownTimeout = 5 * time.Second
)

// HookEvent names a lifecycle transition a Hook is notified of.
type HookEvent string

const (
	EventInstanceStarting HookEvent = "instance_starting"
	EventInstanceStarted  HookEvent = "instance_started"
	EventInstanceStopping HookEvent = "instance_stopping"
	EventInstanceStopped  HookEvent = "instance_stopped"
	EventWorkerSpawned    HookEvent = "worker_spawned"
	EventWorkerReady      HookEvent = "worker_ready"
	EventWorkerGone       HookEvent = "worker_gone"
)

// Hook observes lifecycle transitions, instanceID is empty for
// engine-wide events. Hooks run synchronously on the control path in
// registration order; this is the one cross-cutting-concerns seam in the
// engine, the same single-dispatch-over-a-slice shape as the teacher
// module's middlewareChain.
type Hook func(event HookEvent, instanceID string)

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithRPCTimeout sets T_rpc, the downlink/uplink call deadline (spec §6,
// default 10s).
func WithRPCTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.rpcTimeout = d }
}

// WithTeardownTimeout sets T_teardown, the graceful worker shutdown
// deadline (spec §6, default 5s).
func WithTeardownTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.teardownTimeout = d }
}

// WithLogger installs a Logger; the default is a no-op.
func WithLogger(l Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithSpawner installs the channel.Spawner used to launch mode=worker
// instances. Without one, registering a worker-mode instance still
// succeeds, but Start fails that instance with WorkerSpawnFailed.
func WithSpawner(s channel.Spawner) Option {
	return func(o *Orchestrator) { o.spawner = s }
}

// WithHook registers a lifecycle Hook, appended to any previously
// registered hooks.
func WithHook(h Hook) Option {
	return func(o *Orchestrator) { o.hooks = append(o.hooks, h) }
}

func (o *Orchestrator) fire(event HookEvent, instanceID string) {
	for _, h := range o.hooks {
		h(event, instanceID)
	}
}
