// Package contract defines the schema/contract capability that the
// orchestration core treats as an external collaborator: something that can
// parse a raw config value into a validated one, and something that can check
// a service value's shape before it is published into the registry.
//
// The core never assumes a particular validation library. Callers plug in
// whatever they already use (JSON Schema, struct tags, a hand-written check)
// by satisfying these two narrow interfaces.
package contract

import "fmt"

// Schema validates and normalizes a raw configuration value.
type Schema interface {
	// Parse validates value and returns the (possibly coerced) result, or an
	// error describing why value is invalid.
	Parse(value any) (any, error)
}

// Contract validates the shape of a service value, e.g. "does it implement
// the methods this requirement expects".
type Contract interface {
	// Validate reports whether shape satisfies the contract.
	Validate(shape any) error
}

// SchemaFunc adapts a plain function to Schema.
type SchemaFunc func(value any) (any, error)

// Parse implements Schema.
func (f SchemaFunc) Parse(value any) (any, error) { return f(value) }

// ContractFunc adapts a plain function to Contract.
type ContractFunc func(shape any) error

// Validate implements Contract.
func (f ContractFunc) Validate(shape any) error { return f(shape) }

// Any is a Schema/Contract that accepts every value unchanged. It is the
// default used when a plugin type declares no config schema.
var Any = any_{}

type any_ struct{}

func (any_) Parse(value any) (any, error) { return value, nil }
func (any_) Validate(any) error           { return nil }

// Assignable builds a Contract that checks shape implements the same
// interface as the zero value of T, using a type assertion. It is a
// convenience for the common case of "the dependency must implement this
// Go interface".
func Assignable[T any]() Contract {
	return ContractFunc(func(shape any) error {
		if _, ok := shape.(T); !ok {
			var zero T
			return fmt.Errorf("contract: value of type %T does not satisfy %T", shape, zero)
		}
		return nil
	})
}
