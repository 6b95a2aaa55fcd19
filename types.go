package orkestra

import (
	"github.com/deckhand/orkestra/contract"
	"github.com/deckhand/orkestra/plugctx"
)

// Mode selects whether a PluginInstance runs in-process or in an isolated
// worker process (spec §3 "PluginInstance.mode").
type Mode int

const (
	ModeMain Mode = iota
	ModeWorker
)

// String renders Mode the way it appears in diagnostics and diagrams.
func (m Mode) String() string {
	if m == ModeWorker {
		return "worker"
	}
	return "main"
}

// SetupFunc is a plugin type's setup hook (spec §3, §4.4). deps is keyed by
// requirement name: for mode=main instances each value is the real
// dependency service fetched from the registry; for mode=worker instances
// each value is an uplink.ServiceStub forwarding calls to the host.
// SetupFunc may register its service explicitly via ctx.RegisterService,
// return a service value, or both — see the Registered|Produced resolution
// in start.go.
type SetupFunc func(ctx plugctx.Context, config any, deps map[string]any, instanceID string) (any, error)

// TeardownFunc is a plugin type's optional teardown hook, invoked with the
// instance id being torn down (spec §4.4 "Stop").
type TeardownFunc func(instanceID string) error

// PluginType is a reusable plugin definition: config schema, named
// requirement contracts (in declaration order, since Go maps don't
// preserve one), an optional entry point for worker mode, and the
// setup/teardown hooks (spec §3 "PluginType").
type PluginType struct {
	ID               string
	ConfigSchema     contract.Schema
	RequirementOrder []string
	Requirements     map[string]contract.Contract
	EntryPoint       string
	Setup            SetupFunc
	Teardown         TeardownFunc
}

// schemaOrAny returns t.ConfigSchema, defaulting to contract.Any when unset.
func (t PluginType) schemaOrAny() contract.Schema {
	if t.ConfigSchema != nil {
		return t.ConfigSchema
	}
	return contract.Any
}

// schemaAsContract adapts a contract.Schema to a contract.Contract by
// treating a successful Parse as validation passing. Used only for the
// preserved historical quirk of auto-registering a setup's returned service
// against the type's config schema rather than a service contract (spec §9
// Open Questions).
func schemaAsContract(s contract.Schema) contract.Contract {
	return contract.ContractFunc(func(shape any) error {
		_, err := s.Parse(shape)
		return err
	})
}

// PluginInstance is a configured, uniquely identified node wired to other
// instances by requirement name (spec §3 "PluginInstance").
type PluginInstance struct {
	ID     string
	TypeID string
	Config any
	Wiring map[string]string
	Mode   Mode
}
