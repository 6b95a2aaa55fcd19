package orkestra

import "github.com/deckhand/orkestra/orkerr"

// Error, Kind, and the Kind constants are re-exported from orkerr so
// callers of this package never need to import orkerr directly; orkerr
// exists only to let registry/rpc/uplink share the same error type without
// an import cycle back through this root package.
type Error = orkerr.Error

type Kind = orkerr.Kind

const (
	KindRegistryLocked    = orkerr.KindRegistryLocked
	KindDuplicateType     = orkerr.KindDuplicateType
	KindDuplicateInstance = orkerr.KindDuplicateInstance
	KindUnknownType       = orkerr.KindUnknownType
	KindDuplicateService  = orkerr.KindDuplicateService
	KindUnknownService    = orkerr.KindUnknownService
	KindConfigInvalid     = orkerr.KindConfigInvalid
	KindContractViolation = orkerr.KindContractViolation
	KindWiringMissing     = orkerr.KindWiringMissing
	KindCyclicDependency  = orkerr.KindCyclicDependency
	KindRPCTimeout        = orkerr.KindRPCTimeout
	KindWorkerSpawnFailed = orkerr.KindWorkerSpawnFailed
	KindWorkerGone        = orkerr.KindWorkerGone
	KindTeardownTimeout   = orkerr.KindTeardownTimeout
	KindRemoteError       = orkerr.KindRemoteError
)

// Sentinel returns a bare *Error carrying only a Kind, usable as the target
// of errors.Is(err, orkestra.Sentinel(orkestra.KindUnknownService)).
func Sentinel(kind Kind) *Error { return orkerr.Sentinel(kind) }
