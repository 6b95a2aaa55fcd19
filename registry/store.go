package registry

import (
	"sync"

	"github.com/deckhand/orkestra/orkerr"
)

// TypeDef is the identity-level view of a plugin type that the store needs:
// just its id. The Lifecycle Engine holds the full PluginType value
// elsewhere; the store never introspects Setup/Teardown (spec §4.2).
type TypeDef struct {
	ID string
}

// InstanceDef is the identity-level view of a plugin instance: its id, the
// type it references, and its wiring map. The store does not check wiring
// completeness; the Lifecycle Engine does that at Start.
type InstanceDef struct {
	ID     string
	TypeID string
	Wiring map[string]string
}

// DefinitionStore owns plugin type identity and the lock that freezes
// further registration. Locking is monotone: once set, it is never
// cleared, for the lifetime of the process (spec invariant 5).
type DefinitionStore struct {
	mu     sync.Mutex
	types  map[string]TypeDef
	locked bool
}

// NewDefinitionStore creates an empty, unlocked DefinitionStore.
func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{types: make(map[string]TypeDef)}
}

// RegisterDefinition adds typeID to the store. Fails with RegistryLocked if
// the store is locked, DuplicateType if typeID is already registered.
func (s *DefinitionStore) RegisterDefinition(typeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return orkerr.RegistryLocked(typeID)
	}
	if _, exists := s.types[typeID]; exists {
		return orkerr.DuplicateType(typeID)
	}

	s.types[typeID] = TypeDef{ID: typeID}
	return nil
}

// LockDefinitions freezes the type store. Idempotent.
func (s *DefinitionStore) LockDefinitions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = true
}

// Locked reports whether the store has been locked.
func (s *DefinitionStore) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Has reports whether typeID is a registered type.
func (s *DefinitionStore) Has(typeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.types[typeID]
	return ok
}

// InstanceStore owns plugin instance identity, keyed globally (instance ids
// are unique across the whole store, not per-type).
type InstanceStore struct {
	mu        sync.Mutex
	instances map[string]InstanceDef
	order     []string // registration order, used by callers needing deterministic iteration
}

// NewInstanceStore creates an empty InstanceStore.
func NewInstanceStore() *InstanceStore {
	return &InstanceStore{instances: make(map[string]InstanceDef)}
}

// RegisterPlugin adds inst to the store. defStore is consulted to reject
// instances referencing an unknown type (spec invariant 2); it is not
// retained.
func (s *InstanceStore) RegisterPlugin(inst InstanceDef, defStore *DefinitionStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !defStore.Has(inst.TypeID) {
		return orkerr.UnknownType(inst.ID, inst.TypeID)
	}
	if _, exists := s.instances[inst.ID]; exists {
		return orkerr.DuplicateInstance(inst.ID)
	}

	s.instances[inst.ID] = inst
	s.order = append(s.order, inst.ID)
	return nil
}

// Get returns the InstanceDef registered under id.
func (s *InstanceStore) Get(id string) (InstanceDef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.instances[id]
	return d, ok
}

// Order returns every registered instance id in registration order.
func (s *InstanceStore) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
