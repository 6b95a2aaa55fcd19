// Package uplink implements the worker -> host half of the protocol (spec
// §4.5): a Client the worker side uses to build per-requirement stubs
// (deps[serviceName][methodName](...)) and a Server the host side installs
// per worker, resolving a requirement name through that worker's wiring
// snapshot into a registry lookup. It mirrors package rpc's downlink
// client/server shape deliberately, since the protocol is symmetric; the
// uplink server reuses rpc.InvokeMethod rather than re-implementing the
// reflection dispatch.
package uplink

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deckhand/orkestra/channel"
	"github.com/deckhand/orkestra/orkerr"
	"github.com/deckhand/orkestra/registry"
	"github.com/deckhand/orkestra/rpc"
	"github.com/deckhand/orkestra/wire"
)

// =============================================================================
// CLIENT (worker side)
// =============================================================================

type pendingCall struct {
	timer *time.Timer
	done  chan struct{}
	value any
	err   error
}

type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingCall)}
}

func (t *pendingTable) register(id string, timeout time.Duration, serviceName, method string) *pendingCall {
	pc := &pendingCall{done: make(chan struct{})}

	t.mu.Lock()
	t.entries[id] = pc
	t.mu.Unlock()

	pc.timer = time.AfterFunc(timeout, func() {
		t.complete(id, nil, orkerr.RPCTimeout(serviceName+"."+method, timeout.Milliseconds()))
	})

	return pc
}

func (t *pendingTable) complete(id string, value any, err error) {
	t.mu.Lock()
	pc, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return
	}

	pc.timer.Stop()
	pc.value = value
	pc.err = err
	close(pc.done)
}

func (pc *pendingCall) wait() (any, error) {
	<-pc.done
	return pc.value, pc.err
}

// Client is the uplink client living on the worker side of an uplink
// channel pair. It mints UPLINK_CALL frames and resolves futures on the
// matching UPLINK_RESPONSE/UPLINK_ERROR, with the same T_rpc discipline as
// the downlink client (spec §4.5 "Uplink client (worker side)").
type Client struct {
	ch      channel.Channel
	pending *pendingTable
	timeout time.Duration
}

// NewClient wires an uplink client onto ch. The caller must call ch.Start
// after construction.
func NewClient(ch channel.Channel, timeout time.Duration) *Client {
	c := &Client{ch: ch, pending: newPendingTable(), timeout: timeout}
	ch.OnMessage(c.handle)
	return c
}

func (c *Client) handle(env wire.Envelope) {
	switch env.Kind {
	case wire.KindUplinkResponse:
		c.pending.complete(env.ID, env.Result, nil)
	case wire.KindUplinkError:
		var remoteErr error
		if env.Err != nil {
			remoteErr = orkerr.RemoteError(env.Err.Name, env.Err.Message, env.Err.Stack)
		} else {
			remoteErr = orkerr.RemoteError("Error", "uplink call failed", "")
		}
		c.pending.complete(env.ID, nil, remoteErr)
	default:
	}
}

// Call invokes method on the service bound to serviceName in the owning
// instance's wiring, blocking until the matching UPLINK_RESPONSE/
// UPLINK_ERROR arrives or the call times out.
func (c *Client) Call(serviceName, method string, args ...any) (any, error) {
	id := uuid.NewString()
	pc := c.pending.register(id, c.timeout, serviceName, method)

	env := wire.Envelope{Kind: wire.KindUplinkCall, ID: id, ServiceName: serviceName, Method: method, Args: args}
	if err := c.ch.Send(env); err != nil {
		c.pending.complete(id, nil, err)
	}

	return pc.wait()
}

// Service returns a ServiceStub bound to serviceName, a per-requirement
// handle matching the spec's "deps[serviceName][methodName](...)" shape
// (spec §9 "Deps-as-object"): each method call is forwarded as a single
// UPLINK_CALL.
func (c *Client) Service(serviceName string) ServiceStub {
	return ServiceStub{client: c, serviceName: serviceName}
}

// Deps builds a map of ServiceStub keyed by requirement name, one entry per
// name in requirements, for handing to a plugin type's setup function as
// its deps argument in worker mode.
func (c *Client) Deps(requirements []string) map[string]ServiceStub {
	deps := make(map[string]ServiceStub, len(requirements))
	for _, name := range requirements {
		deps[name] = c.Service(name)
	}
	return deps
}

// ServiceStub is the leaf of the two-level deps[serviceName][methodName](...)
// handle: a stub bound to one requirement name, forwarding every call to the
// backing Client.
type ServiceStub struct {
	client      *Client
	serviceName string
}

// Call invokes method on the bound requirement's backing service.
func (s ServiceStub) Call(method string, args ...any) (any, error) {
	return s.client.Call(s.serviceName, method, args...)
}

// =============================================================================
// SERVER (host side)
// =============================================================================

// Server is the uplink server living on the host side of an uplink channel
// pair, installed per worker (spec §4.5 "Uplink server (host side)"). It is
// stateless beyond its wiring snapshot, taken at construction time (spec §9
// Open Question: wiring updates after start are unsupported).
type Server struct {
	ch         channel.Channel
	reg        *registry.ServiceRegistry
	instanceID string
	wiring     map[string]string
	invoker    func(service any, method string, args []any) (any, error)
}

// NewServer installs an uplink server on ch for a single worker identified
// by instanceID, resolving requirement names against wiring (a snapshot of
// the owning instance's wiring map, taken by the caller at spawn time) and
// targetInstanceId -> service lookups against reg.
func NewServer(ch channel.Channel, reg *registry.ServiceRegistry, instanceID string, wiring map[string]string) *Server {
	s := &Server{ch: ch, reg: reg, instanceID: instanceID, wiring: wiring, invoker: rpc.InvokeMethod}
	ch.OnMessage(s.handle)
	return s
}

func (s *Server) handle(env wire.Envelope) {
	if env.Kind != wire.KindUplinkCall {
		return
	}

	targetID, ok := s.wiring[env.ServiceName]
	if !ok {
		s.reject(env.ID, orkerr.WiringMissing(s.instanceID, env.ServiceName))
		return
	}

	service, err := s.reg.Get(targetID)
	if err != nil {
		s.reject(env.ID, err)
		return
	}

	result, err := s.invoker(service, env.Method, env.Args)
	if err != nil {
		s.reject(env.ID, err)
		return
	}

	_ = s.ch.Send(wire.Envelope{Kind: wire.KindUplinkResponse, ID: env.ID, Result: result})
}

func (s *Server) reject(id string, err error) {
	_ = s.ch.Send(wire.Envelope{
		Kind: wire.KindUplinkError,
		ID:   id,
		Err:  &wire.RemoteError{Name: "UplinkError", Message: err.Error()},
	})
}
