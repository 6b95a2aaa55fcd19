package orkestra

import "fmt"

// ServiceKey provides type-safe service identification over a
// ServiceRegistry, adapted from the teacher module's generic ServiceKey[T]
// (service_key.go): a typed wrapper around a plain string id.
type ServiceKey[T any] struct {
	id string
}

// NewServiceKey creates a new typed service key bound to id.
//
// Example:
//
//	var LoggerKey = orkestra.NewServiceKey[*Logger]("sys-logger")
func NewServiceKey[T any](id string) ServiceKey[T] {
	return ServiceKey[T]{id: id}
}

// ID returns the key's underlying service id.
func (k ServiceKey[T]) ID() string { return k.id }

// ResolveTyped resolves a service by key and asserts it to T, erroring if
// the registered value doesn't satisfy T (e.g. a worker proxy accessed
// through a key typed for the real service).
func ResolveTyped[T any](o *Orchestrator, key ServiceKey[T]) (T, error) {
	var zero T
	value, err := o.services.Get(key.id)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("orkestra: service %q is %T, not %T", key.id, value, zero)
	}
	return typed, nil
}

// HasTyped reports whether key's id currently has a registered service.
func HasTyped[T any](o *Orchestrator, key ServiceKey[T]) bool {
	return o.services.Has(key.id)
}
