// Package registry holds the three pieces of identity state the spec calls
// out as owned by distinct, narrowly-scoped components: the service
// registry (id -> running service value), the definition store (plugin
// types, lockable), and the instance store (plugin instances). None of the
// three introspects setup/teardown; they only own identity and lock state,
// exactly as spec §4.1/§4.2 prescribe.
package registry

import (
	"sync"

	"github.com/deckhand/orkestra/contract"
	"github.com/deckhand/orkestra/orkerr"
)

// ServiceRegistry maps instance id to the running service value it
// publishes. Mutation happens only on the Lifecycle Engine's control path;
// concurrent reads (from worker uplinks, and from other instances' setup
// functions) see a point-in-time, monotonically-growing map during
// startup, and an effectively read-only map once Start completes.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

// New creates an empty ServiceRegistry.
func New() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]any),
	}
}

// Register publishes value under id. If validate is true and c is
// non-nil, value must satisfy c.Validate before it is published; worker
// proxies are registered with validate=false since a proxy's method shape
// cannot be introspected (spec §4.1).
func (r *ServiceRegistry) Register(id string, c contract.Contract, value any, validate bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[id]; exists {
		return orkerr.DuplicateService(id)
	}

	if validate && c != nil {
		if err := c.Validate(value); err != nil {
			return orkerr.ContractViolation(id, err)
		}
	}

	r.services[id] = value
	return nil
}

// Get returns the service registered under id.
func (r *ServiceRegistry) Get(id string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.services[id]
	if !ok {
		return nil, orkerr.UnknownService(id)
	}
	return v, nil
}

// Has reports whether id has a registered service.
func (r *ServiceRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.services[id]
	return ok
}

// Names returns every registered service id, in no particular order.
func (r *ServiceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}
