package orkestra

import (
	"context"
	"errors"
	"fmt"

	"github.com/deckhand/orkestra/channel"
	"github.com/deckhand/orkestra/diagram"
	"github.com/deckhand/orkestra/orkerr"
	"github.com/deckhand/orkestra/plugctx"
	"github.com/deckhand/orkestra/rpc"
	"github.com/deckhand/orkestra/uplink"
	"github.com/deckhand/orkestra/worker"
)

// StartOptions controls a single Start call (spec §6).
type StartOptions struct {
	// DryRun resolves the start order and renders the diagnostic diagram
	// without invoking any setup function.
	DryRun bool
}

// StartResult reports what Start computed: the resolved order (always
// populated, even on DryRun) and the Mermaid diagram rendered from the
// registered instances and their wiring.
type StartResult struct {
	Order   []string
	Diagram string
}

// Start resolves the dependency graph and, unless DryRun, runs setup on
// every instance in order, spawning worker processes as needed (spec
// §4.4 "Start"). If any instance's setup fails, instances already started
// in this call are torn down in reverse before Start returns the error.
func (o *Orchestrator) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil, fmt.Errorf("orkestra: Start called on an already-started Orchestrator")
	}
	o.mu.Unlock()

	order, err := o.resolveOrder()
	if err != nil {
		return nil, err
	}

	result := &StartResult{
		Order:   order,
		Diagram: diagram.Mermaid(toDiagramInstances(o.Instances())),
	}

	if opts.DryRun {
		return result, nil
	}

	started := make([]string, 0, len(order))
	for _, id := range order {
		if err := o.startInstance(ctx, id); err != nil {
			o.teardownInReverse(started)
			return result, err
		}
		started = append(started, id)
	}

	o.mu.Lock()
	o.started = true
	o.startedOrder = started
	o.mu.Unlock()
	return result, nil
}

func (o *Orchestrator) startInstance(ctx context.Context, id string) error {
	o.mu.Lock()
	inst := o.instances[id]
	t, ok := o.types[inst.TypeID]
	o.mu.Unlock()
	if !ok {
		return orkerr.UnknownType(id, inst.TypeID)
	}

	o.fire(EventInstanceStarting, id)

	validated, err := t.schemaOrAny().Parse(inst.Config)
	if err != nil {
		return orkerr.ConfigInvalid(id, err)
	}

	if inst.Mode == ModeWorker {
		return o.startWorkerInstance(id, inst, t, validated)
	}
	return o.startMainInstance(id, inst, t, validated)
}

func (o *Orchestrator) startMainInstance(id string, inst PluginInstance, t PluginType, validated any) error {
	deps := make(map[string]any, len(t.RequirementOrder))
	for _, req := range t.RequirementOrder {
		target, ok := inst.Wiring[req]
		if !ok || target == "" {
			return orkerr.WiringMissing(id, req)
		}
		svc, err := o.services.Get(target)
		if err != nil {
			return err
		}
		deps[req] = svc
	}

	hostCtx := plugctx.NewHostContext(id,
		func(regID string, value any) error { return o.services.Register(regID, nil, value, false) },
		func(svcID string) (any, error) { return o.services.Get(svcID) },
	)

	result, err := t.Setup(hostCtx, validated, deps, id)
	if err != nil {
		return err
	}

	// Registered|Produced resolution (spec §9): an explicit
	// ctx.RegisterService call always wins; only when Setup neither
	// registered nor erred do we auto-register its return value, and only
	// against the type's config schema — a preserved historical quirk.
	if !plugctx.Registered(hostCtx) && result != nil {
		if err := o.services.Register(id, schemaAsContract(t.schemaOrAny()), result, true); err != nil {
			return err
		}
	}

	o.fire(EventInstanceStarted, id)
	return nil
}

func (o *Orchestrator) startWorkerInstance(id string, inst PluginInstance, t PluginType, validated any) error {
	if o.spawner == nil {
		return orkerr.WorkerSpawnFailed(id, errors.New("no spawner configured on this Orchestrator"))
	}

	for _, req := range t.RequirementOrder {
		if target, ok := inst.Wiring[req]; !ok || target == "" {
			return orkerr.WiringMissing(id, req)
		}
	}

	downlink, uplinkHostEnd, err := o.spawner.Spawn(channel.SpawnParams{
		InstanceID: id,
		TypeID:     inst.TypeID,
		EntryPoint: t.EntryPoint,
		Config:     validated,
	})
	if err != nil {
		return orkerr.WorkerSpawnFailed(id, err)
	}

	wiring := make(map[string]string, len(inst.Wiring))
	for req, target := range inst.Wiring {
		wiring[req] = target
	}
	uplinkServer := uplink.NewServer(uplinkHostEnd, o.services, id, wiring)
	if err := uplinkHostEnd.Start(); err != nil {
		return orkerr.WorkerSpawnFailed(id, err)
	}

	client := rpc.NewClient(downlink, o.rpcTimeout)
	rec := worker.NewRecord(id, downlink, uplinkHostEnd, client, uplinkServer)
	client.OnWorkerReady(func(instanceID string) {
		rec.MarkReady()
		o.fire(EventWorkerReady, instanceID)
	})

	if err := downlink.Start(); err != nil {
		return orkerr.WorkerSpawnFailed(id, err)
	}

	// The downlink RPC client proxy is registered immediately, with
	// validate=false since a proxy's method shape cannot be introspected
	// (spec §4.4 step 3); callers may issue calls before WORKER_READY, the
	// channel queues them (testable property 6).
	if err := o.services.Register(id, nil, client, false); err != nil {
		return err
	}

	o.mu.Lock()
	o.workers[id] = rec
	o.mu.Unlock()

	o.fire(EventWorkerSpawned, id)
	o.fire(EventInstanceStarted, id)
	return nil
}
