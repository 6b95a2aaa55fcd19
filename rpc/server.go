package rpc

import (
	"fmt"
	"reflect"

	"github.com/deckhand/orkestra/channel"
	"github.com/deckhand/orkestra/wire"
)

// Server is the downlink RPC server: the worker-side dispatcher that
// invokes a concrete service's methods by name, via reflection, the same
// idiom the teacher module leans on for its dig-like constructor injection
// (_examples/xraph-vessel/provide_constructor.go, type_registry.go).
// Method names are not filtered; per spec §4.5 "the worker implementer is
// trusted".
type Server struct {
	ch         channel.Channel
	service    any
	teardown   func(instanceID string) error
	instanceID string
}

// NewServer wires a downlink server onto ch, dispatching CALL frames to
// service's methods and TEARDOWN frames to teardown (which may be nil).
func NewServer(ch channel.Channel, instanceID string, service any, teardown func(string) error) *Server {
	s := &Server{ch: ch, service: service, teardown: teardown, instanceID: instanceID}
	ch.OnMessage(s.handle)
	return s
}

func (s *Server) handle(env wire.Envelope) {
	switch env.Kind {
	case wire.KindCall:
		s.handleCall(env)
	case wire.KindTeardown:
		s.handleTeardown(env)
	default:
		// RESPONSE/ERROR/WORKER_READY are not this server's concern.
	}
}

func (s *Server) handleCall(env wire.Envelope) {
	result, err := InvokeMethod(s.service, env.Method, env.Args)
	if err != nil {
		_ = s.ch.Send(wire.Envelope{
			Kind: wire.KindError,
			ID:   env.ID,
			Err:  &wire.RemoteError{Name: "MethodError", Message: err.Error()},
		})
		return
	}
	_ = s.ch.Send(wire.Envelope{Kind: wire.KindResponse, ID: env.ID, Result: result})
}

func (s *Server) handleTeardown(env wire.Envelope) {
	var remoteErr *wire.RemoteError
	if s.teardown != nil {
		if err := s.teardown(s.instanceID); err != nil {
			remoteErr = &wire.RemoteError{Name: "TeardownError", Message: err.Error()}
		}
	}
	_ = s.ch.Send(wire.Envelope{Kind: wire.KindTeardownComplete, ID: env.ID, Err: remoteErr})
}

// InvokeMethod calls service.method(args...) by reflection and returns its
// first non-error return value (or nil) plus any error it returned, or an
// error if method does not exist or the argument count doesn't fit. The
// return shape is not checked: with two or more results, the first is the
// value and the last, if it is a non-nil error, is the error.
// Exported so the uplink server (uplink package) can dispatch with the
// same method-invocation rules rather than duplicating the reflection code.
func InvokeMethod(service any, method string, args []any) (any, error) {
	v := reflect.ValueOf(service)
	m := v.MethodByName(method)
	if !m.IsValid() {
		return nil, fmt.Errorf("rpc: service %T has no method %q", service, method)
	}

	mt := m.Type()
	if mt.IsVariadic() {
		if len(args) < mt.NumIn()-1 {
			return nil, fmt.Errorf("rpc: method %q expects at least %d args, got %d", method, mt.NumIn()-1, len(args))
		}
	} else if len(args) != mt.NumIn() {
		return nil, fmt.Errorf("rpc: method %q expects %d args, got %d", method, mt.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = coerceArg(a, argType(mt, i))
	}

	out := m.Call(in)
	return splitResult(out)
}

func argType(mt reflect.Type, i int) reflect.Type {
	if mt.IsVariadic() && i >= mt.NumIn()-1 {
		return mt.In(mt.NumIn() - 1).Elem()
	}
	return mt.In(i)
}

// coerceArg adapts a JSON-decoded value (float64, map[string]any, ...) or
// an in-process any value to the target parameter type where possible,
// falling back to reflect.ValueOf(a) otherwise.
func coerceArg(a any, target reflect.Type) reflect.Value {
	if a == nil {
		return reflect.Zero(target)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(target) {
		return v
	}
	if v.Type().ConvertibleTo(target) {
		return v.Convert(target)
	}
	return v
}

func splitResult(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type().Implements(errorType) {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		var err error
		if last.Type().Implements(errorType) && !last.IsNil() {
			err = last.Interface().(error)
		}
		return out[0].Interface(), err
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()
