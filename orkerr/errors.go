// Package orkerr defines the single error type shared across every package
// in this module, grounded on the teacher module's errs.Error +
// WithContext chaining style (_examples/xraph-vessel/errors.go), reworked
// in-module rather than importing the teacher's external errs package (see
// DESIGN.md for why).
package orkerr

import "fmt"

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind identifies the category of an *Error, mirroring the error taxonomy
// in the spec: structural errors raised at registration or lookup, schema
// failures at start time, graph defects, RPC timeouts, and worker lifecycle
// failures.
type Kind string

const (
	KindRegistryLocked    Kind = "REGISTRY_LOCKED"
	KindDuplicateType     Kind = "DUPLICATE_TYPE"
	KindDuplicateInstance Kind = "DUPLICATE_INSTANCE"
	KindUnknownType       Kind = "UNKNOWN_TYPE"
	KindDuplicateService  Kind = "DUPLICATE_SERVICE"
	KindUnknownService    Kind = "UNKNOWN_SERVICE"
	KindConfigInvalid     Kind = "CONFIG_INVALID"
	KindContractViolation Kind = "CONTRACT_VIOLATION"
	KindWiringMissing     Kind = "WIRING_MISSING"
	KindCyclicDependency  Kind = "CYCLIC_DEPENDENCY"
	KindRPCTimeout        Kind = "RPC_TIMEOUT"
	KindWorkerSpawnFailed Kind = "WORKER_SPAWN_FAILED"
	KindWorkerGone        Kind = "WORKER_GONE"
	KindTeardownTimeout   Kind = "TEARDOWN_TIMEOUT"
	KindRemoteError       Kind = "REMOTE_ERROR"
)

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is the single concrete error type raised by every package in this
// module. It carries a Kind for programmatic matching, a human message, an
// optional underlying cause, and a small context map for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a bare *Error sentinel with the same Kind,
// enabling errors.Is(err, orkerr.Sentinel(orkerr.KindUnknownService)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Cause == nil && len(t.Context) == 0 {
		return e.Kind == t.Kind
	}
	return e == t
}

// WithContext returns e with an additional context entry attached, chaining
// like the teacher module's errs.Error.WithContext.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, 1)
	}
	e.Context[key] = value
	return e
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel returns a bare *Error carrying only a Kind, suitable as the
// target of errors.Is.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

func RegistryLocked(typeID string) *Error {
	return newError(KindRegistryLocked, fmt.Sprintf("definition registry is locked: cannot register type %q", typeID), nil).
		WithContext("typeId", typeID)
}

func DuplicateType(typeID string) *Error {
	return newError(KindDuplicateType, fmt.Sprintf("plugin type %q already registered", typeID), nil).
		WithContext("typeId", typeID)
}

func DuplicateInstance(instanceID string) *Error {
	return newError(KindDuplicateInstance, fmt.Sprintf("plugin instance %q already registered", instanceID), nil).
		WithContext("instanceId", instanceID)
}

func UnknownType(instanceID, typeID string) *Error {
	return newError(KindUnknownType, fmt.Sprintf("instance %q references unknown type %q", instanceID, typeID), nil).
		WithContext("instanceId", instanceID).WithContext("typeId", typeID)
}

func DuplicateService(id string) *Error {
	return newError(KindDuplicateService, fmt.Sprintf("service %q already registered", id), nil).
		WithContext("id", id)
}

func UnknownService(id string) *Error {
	return newError(KindUnknownService, fmt.Sprintf("service %q not found", id), nil).
		WithContext("id", id)
}

func ConfigInvalid(instanceID string, cause error) *Error {
	return newError(KindConfigInvalid, fmt.Sprintf("instance %q: config invalid", instanceID), cause).
		WithContext("instanceId", instanceID)
}

func ContractViolation(id string, cause error) *Error {
	return newError(KindContractViolation, fmt.Sprintf("service %q violates its contract", id), cause).
		WithContext("id", id)
}

func WiringMissing(instanceID, requirement string) *Error {
	return newError(KindWiringMissing, fmt.Sprintf("instance %q: wiring missing for requirement %q", instanceID, requirement), nil).
		WithContext("instanceId", instanceID).WithContext("requirement", requirement)
}

// CyclicDependency builds the CyclicDependency(path) error. path must be
// the full ancestor chain a0 -> a1 -> ... -> ak -> a0.
func CyclicDependency(path []string) *Error {
	return newError(KindCyclicDependency, fmt.Sprintf("cyclic dependency: %s", joinArrow(path)), nil).
		WithContext("path", path)
}

func joinArrow(path []string) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += " -> "
		}
		s += p
	}
	return s
}

func RPCTimeout(method string, ms int64) *Error {
	return newError(KindRPCTimeout, fmt.Sprintf("rpc call %q timed out after %dms", method, ms), nil).
		WithContext("method", method).WithContext("timeoutMs", ms)
}

func WorkerSpawnFailed(instanceID string, cause error) *Error {
	return newError(KindWorkerSpawnFailed, fmt.Sprintf("instance %q: worker spawn failed", instanceID), cause).
		WithContext("instanceId", instanceID)
}

func WorkerGone(instanceID string) *Error {
	return newError(KindWorkerGone, fmt.Sprintf("worker for instance %q is gone", instanceID), nil).
		WithContext("instanceId", instanceID)
}

func TeardownTimeout(instanceID string) *Error {
	return newError(KindTeardownTimeout, fmt.Sprintf("instance %q: teardown timed out", instanceID), nil).
		WithContext("instanceId", instanceID)
}

// RemoteError reconstructs a faithful representation of a remote throw,
// preserving name/message/stack as spec §4.5 and §7 require.
func RemoteError(name, message, stack string) *Error {
	e := newError(KindRemoteError, fmt.Sprintf("%s: %s", name, message), nil).
		WithContext("name", name).WithContext("message", message)
	if stack != "" {
		e.WithContext("stack", stack)
	}
	return e
}
