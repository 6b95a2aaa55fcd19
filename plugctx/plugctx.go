// Package plugctx defines the mock/real context value passed into a plugin
// type's Setup function (spec §4.4, §6): a narrow capability to register a
// service under the instance's own id and to look up a dependency's
// service. The same Context shape serves the host-side engine and the
// worker-side entry point, with different backing implementations (spec
// §6: "constructs a mock context whose registerService captures the single
// service value and whose getService fails fast").
package plugctx

import "github.com/deckhand/orkestra/orkerr"

// Context is passed to a plugin type's Setup function. RegisterService lets
// Setup publish its own service explicitly (spec §9 "setup may register,
// may return, or both"); GetService is for setups that need to resolve an
// additional dependency outside the declared requirements map (rare, but
// not disallowed by the spec).
type Context interface {
	RegisterService(value any) error
	GetService(id string) (any, error)
	InstanceID() string
}

// hostContext is the real, host-side Context backing a mode=main instance's
// Setup call: RegisterService writes straight into the engine's
// ServiceRegistry, GetService reads from the same registry.
type hostContext struct {
	instanceID string
	register   func(id string, value any) error
	get        func(id string) (any, error)
	registered bool
}

// NewHostContext builds the Context a mode=main instance's Setup receives.
// register and get are bound by the caller to the owning Orchestrator's
// ServiceRegistry, under instanceID for register.
func NewHostContext(instanceID string, register func(id string, value any) error, get func(id string) (any, error)) Context {
	return &hostContext{instanceID: instanceID, register: register, get: get}
}

func (c *hostContext) RegisterService(value any) error {
	if err := c.register(c.instanceID, value); err != nil {
		return err
	}
	c.registered = true
	return nil
}

func (c *hostContext) GetService(id string) (any, error) { return c.get(id) }

func (c *hostContext) InstanceID() string { return c.instanceID }

// Registered reports whether RegisterService was called, used by the
// engine's Registered|Produced outcome resolution (spec §9).
func Registered(ctx Context) bool {
	if hc, ok := ctx.(*hostContext); ok {
		return hc.registered
	}
	if wc, ok := ctx.(*workerContext); ok {
		return wc.registered
	}
	return false
}

// workerContext is the mock Context a worker host program builds for its
// single plugin instance: RegisterService captures the one service value in
// memory, GetService always fails since a worker has no local registry
// (spec §6: "getService fails fast").
type workerContext struct {
	instanceID string
	service    any
	registered bool
}

// NewWorkerContext builds the mock Context a worker host program passes to
// Setup.
func NewWorkerContext(instanceID string) Context {
	return &workerContext{instanceID: instanceID}
}

func (c *workerContext) RegisterService(value any) error {
	c.service = value
	c.registered = true
	return nil
}

func (c *workerContext) GetService(id string) (any, error) {
	return nil, orkerr.UnknownService(id).WithContext("reason", "worker contexts have no local registry")
}

func (c *workerContext) InstanceID() string { return c.instanceID }

// CapturedService returns the service RegisterService captured, if any.
func CapturedService(ctx Context) (any, bool) {
	wc, ok := ctx.(*workerContext)
	if !ok || !wc.registered {
		return nil, false
	}
	return wc.service, true
}
