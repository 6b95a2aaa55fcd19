// Package orkestra implements a deterministic plugin orchestration
// runtime: typed plugin registration, dependency-graph resolution, and a
// dual-mode (in-process / isolated-worker-process) lifecycle connected by a
// correlation-id RPC and dependency-uplink protocol. See SPEC_FULL.md for
// the full component breakdown; this file holds the Orchestrator itself
// and the registration surface (§4.1-§4.2).
package orkestra

import (
	"sort"
	"sync"
	"time"

	"github.com/deckhand/orkestra/channel"
	"github.com/deckhand/orkestra/graph"
	"github.com/deckhand/orkestra/orkerr"
	"github.com/deckhand/orkestra/registry"
	"github.com/deckhand/orkestra/worker"
)

// Orchestrator is the engine: one process-wide object (though nothing
// prevents running several in the same process, spec §9 "Registry as
// global-ish state" — never a singleton) composed of the Definition &
// Instance Store, the Service Registry, the Graph Resolver, and the live
// worker records.
type Orchestrator struct {
	mu sync.Mutex

	defStore  *registry.DefinitionStore
	instStore *registry.InstanceStore
	services  *registry.ServiceRegistry

	types     map[string]PluginType
	instances map[string]PluginInstance

	workers map[string]*worker.Record

	rpcTimeout      time.Duration
	teardownTimeout time.Duration
	logger          Logger
	spawner         channel.Spawner
	hooks           []Hook

	started      bool
	startedOrder []string
}

// New builds an Orchestrator with defaults T_rpc=10s, T_teardown=5s, a
// no-op logger, and no hooks, then applies opts.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		defStore:        registry.NewDefinitionStore(),
		instStore:       registry.NewInstanceStore(),
		services:        registry.New(),
		types:           make(map[string]PluginType),
		instances:       make(map[string]PluginInstance),
		workers:         make(map[string]*worker.Record),
		rpcTimeout:      defaultRPCTimeout,
		teardownTimeout: defaultTeardownTimeout,
		logger:          noopLogger{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterDefinition adds a plugin type. Fails with RegistryLocked if the
// definition store has been locked, DuplicateType if t.ID is already taken
// (spec §4.2).
func (o *Orchestrator) RegisterDefinition(t PluginType) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.defStore.RegisterDefinition(t.ID); err != nil {
		return err
	}
	o.types[t.ID] = t
	return nil
}

// LockDefinitions freezes the type store; idempotent, monotone (spec
// invariant 5).
func (o *Orchestrator) LockDefinitions() {
	o.defStore.LockDefinitions()
}

// RegisterPlugin adds a configured instance. Fails with UnknownType if
// inst.TypeID isn't registered, DuplicateInstance if inst.ID is already
// taken (spec §4.2). Wiring completeness is checked at Start, not here
// (spec §4.4 step 2), since it depends on the type's requirement list which
// the store does not introspect.
func (o *Orchestrator) RegisterPlugin(inst PluginInstance) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	def := registry.InstanceDef{ID: inst.ID, TypeID: inst.TypeID, Wiring: inst.Wiring}
	if err := o.instStore.RegisterPlugin(def, o.defStore); err != nil {
		return err
	}
	o.instances[inst.ID] = inst
	return nil
}

// resolveOrder builds a graph.Resolver over every registered instance and
// its wiring edges and returns the deterministic start order (spec §4.3).
func (o *Orchestrator) resolveOrder() ([]string, error) {
	o.mu.Lock()
	instances := make(map[string]PluginInstance, len(o.instances))
	for k, v := range o.instances {
		instances[k] = v
	}
	o.mu.Unlock()

	r := graph.NewResolver()
	for _, id := range o.instStore.Order() {
		inst := instances[id]

		// Go randomizes map-iteration order over inst.Wiring on every range,
		// so two mutually-independent wiring targets must be visited in a
		// fixed order here or their relative position in the resolved order
		// would vary from run to run (spec invariant 7). Sort by requirement
		// name, the same way diagram/diagram.go sorts Wiring for rendering.
		reqs := make([]string, 0, len(inst.Wiring))
		for req := range inst.Wiring {
			reqs = append(reqs, req)
		}
		sort.Strings(reqs)

		deps := make([]string, 0, len(reqs))
		for _, req := range reqs {
			deps = append(deps, inst.Wiring[req])
		}
		r.AddNode(id, deps)
	}

	order, err := r.Sort()
	if err != nil {
		if cycleErr, ok := err.(*graph.CycleError); ok {
			return nil, orkerr.CyclicDependency(cycleErr.Path)
		}
		return nil, err
	}
	return order, nil
}

// Services exposes the underlying ServiceRegistry for introspection (Query,
// ServiceKey, Health); it is not part of the mutation surface.
func (o *Orchestrator) Services() *registry.ServiceRegistry { return o.services }

// Instances returns every registered PluginInstance keyed by id, a copy
// safe for the caller to range over (used by diagram rendering and Query).
func (o *Orchestrator) Instances() map[string]PluginInstance {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]PluginInstance, len(o.instances))
	for k, v := range o.instances {
		out[k] = v
	}
	return out
}
