// Package workerhost is the worker-side counterpart of the Lifecycle
// Engine (spec §6 "Worker bundle"): it resolves an entry point to a plugin
// type constructor, builds the mock plugctx.Context, invokes Setup, installs
// the downlink RPC server, and emits WORKER_READY.
package workerhost

import (
	"fmt"
	"sync"
	"time"

	"github.com/deckhand/orkestra"
	"github.com/deckhand/orkestra/channel"
	"github.com/deckhand/orkestra/plugctx"
	"github.com/deckhand/orkestra/rpc"
	"github.com/deckhand/orkestra/uplink"
	"github.com/deckhand/orkestra/wire"
)

// Bundle is the parameter set a worker host program receives at spawn
// (spec §6 "Worker bundle"), minus the channel ends, which Run takes
// separately since their concrete transport varies by Spawner.
type Bundle struct {
	InstanceID string
	TypeID     string
	EntryPoint string
	Config     any
}

// Constructor builds a fresh PluginType value; worker hosts register one
// per exported plugin type, the same "default export or any exported value
// with that id" resolution the spec describes, done here by simply calling
// every registered constructor for an entry point and matching on ID.
type Constructor func() orkestra.PluginType

// Registry maps an entry point to the plugin type constructors a worker
// host program compiled that entry point's code with.
type Registry struct {
	mu   sync.Mutex
	byEP map[string][]Constructor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byEP: make(map[string][]Constructor)}
}

// Register adds ctor under entryPoint. A single entry point may host
// several plugin types (spec §6: "locates the exported type whose
// id === typeId").
func (r *Registry) Register(entryPoint string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEP[entryPoint] = append(r.byEP[entryPoint], ctor)
}

// Resolve finds the PluginType registered under entryPoint whose ID equals
// typeID.
func (r *Registry) Resolve(entryPoint, typeID string) (orkestra.PluginType, error) {
	r.mu.Lock()
	ctors := r.byEP[entryPoint]
	r.mu.Unlock()

	for _, ctor := range ctors {
		pt := ctor()
		if pt.ID == typeID {
			return pt, nil
		}
	}
	return orkestra.PluginType{}, fmt.Errorf("workerhost: entry point %q has no type %q", entryPoint, typeID)
}

// Run drives one worker instance's lifecycle: resolve its type, build
// deps from the uplink, invoke Setup, install the downlink server, and
// announce readiness. It blocks only long enough to perform these steps;
// the downlink/uplink channels' own goroutines keep the worker alive
// afterward.
func Run(bundle Bundle, reg *Registry, downlink, uplinkEnd channel.Channel, rpcTimeout time.Duration) error {
	pt, err := reg.Resolve(bundle.EntryPoint, bundle.TypeID)
	if err != nil {
		return err
	}
	return RunResolved(pt, bundle, downlink, uplinkEnd, rpcTimeout)
}

// RunResolved is Run with the plugin type already resolved, split out so an
// in-process Spawner can resolve synchronously (surfacing an unknown entry
// point/type as a spawn failure) before handing the rest off to a
// goroutine.
func RunResolved(pt orkestra.PluginType, bundle Bundle, downlink, uplinkEnd channel.Channel, rpcTimeout time.Duration) error {
	uplinkClient := uplink.NewClient(uplinkEnd, rpcTimeout)
	if err := uplinkEnd.Start(); err != nil {
		return err
	}

	deps := uplinkClient.Deps(pt.RequirementOrder)
	depValues := make(map[string]any, len(deps))
	for name, stub := range deps {
		depValues[name] = stub
	}

	ctx := plugctx.NewWorkerContext(bundle.InstanceID)
	result, err := pt.Setup(ctx, bundle.Config, depValues, bundle.InstanceID)
	if err != nil {
		return err
	}

	var service any
	if captured, ok := plugctx.CapturedService(ctx); ok {
		service = captured
	} else {
		service = result
	}

	rpc.NewServer(downlink, bundle.InstanceID, service, func(instanceID string) error {
		if pt.Teardown != nil {
			return pt.Teardown(instanceID)
		}
		return nil
	})
	if err := downlink.Start(); err != nil {
		return err
	}

	return downlink.Send(wire.Envelope{Kind: wire.KindWorkerReady, InstanceID: bundle.InstanceID})
}
