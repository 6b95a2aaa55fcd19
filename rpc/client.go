package rpc

import (
	"time"

	"github.com/google/uuid"

	"github.com/deckhand/orkestra/channel"
	"github.com/deckhand/orkestra/orkerr"
	"github.com/deckhand/orkestra/wire"
)

// Client is the downlink RPC client: the host-side stub that turns method
// calls into CALL frames over ch and resolves a future on the matching
// RESPONSE or ERROR frame. It is the "generated or hand-written stub"
// described in spec §9's design notes, built generically rather than per
// contract since this module has no code generation step.
//
// Calls issued before the channel's remote end signals readiness are
// queued by the channel itself (frames are sent immediately; the worker
// processes them once its own event loop starts), matching spec testable
// property 6.
type Client struct {
	ch      channel.Channel
	pending *pendingTable
	timeout time.Duration
	gone    chan struct{}
	onReady func(instanceID string)
}

// NewClient wires a downlink client onto ch. ch.Start must be called by the
// caller after NewClient registers its handler (NewClient calls
// ch.OnMessage itself, so the caller only needs to call ch.Start).
func NewClient(ch channel.Channel, timeout time.Duration) *Client {
	c := &Client{
		ch:      ch,
		pending: newPendingTable(),
		timeout: timeout,
		gone:    make(chan struct{}),
	}
	ch.OnMessage(c.handle)
	return c
}

func (c *Client) handle(env wire.Envelope) {
	switch env.Kind {
	case wire.KindResponse:
		c.pending.complete(env.ID, env.Result, nil)
	case wire.KindError:
		var remoteErr error
		if env.Err != nil {
			remoteErr = orkerr.RemoteError(env.Err.Name, env.Err.Message, env.Err.Stack)
		} else {
			remoteErr = orkerr.RemoteError("Error", "remote call failed", "")
		}
		c.pending.complete(env.ID, nil, remoteErr)
	case wire.KindTeardownComplete:
		c.pending.complete(env.ID, nil, teardownCompleteErr(env))
	case wire.KindWorkerReady:
		if c.onReady != nil {
			c.onReady(env.InstanceID)
		}
	// Other kinds reaching here are simply dropped (spec §4.5: "unknown ids
	// are dropped").
	default:
	}
}

// OnWorkerReady registers a callback invoked when an unsolicited
// WORKER_READY frame arrives on this client's channel (spec §4.5). Must be
// called before Start to avoid racing the channel's read loop.
func (c *Client) OnWorkerReady(f func(instanceID string)) {
	c.onReady = f
}

func teardownCompleteErr(env wire.Envelope) error {
	if env.Err == nil {
		return nil
	}
	return orkerr.RemoteError(env.Err.Name, env.Err.Message, env.Err.Stack)
}

// Call invokes method on the remote service with args, blocking until the
// matching RESPONSE/ERROR arrives or the call times out.
func (c *Client) Call(method string, args ...any) (any, error) {
	id := uuid.NewString()
	pc := c.pending.register(id, c.timeout, method)

	if err := c.ch.Send(wire.Envelope{Kind: wire.KindCall, ID: id, Method: method, Args: args}); err != nil {
		c.pending.complete(id, nil, err)
	}

	return pc.wait()
}

// Teardown sends a TEARDOWN request and blocks until TEARDOWN_COMPLETE (or
// timeout, whichever comes first), matching spec §4.4's stop sequence.
func (c *Client) Teardown(timeout time.Duration) error {
	id := uuid.NewString()
	pc := c.pending.register(id, timeout, "TEARDOWN")

	if err := c.ch.Send(wire.Envelope{Kind: wire.KindTeardown, ID: id}); err != nil {
		c.pending.complete(id, nil, err)
	}

	_, err := pc.wait()
	return err
}

// MarkGone rejects every outstanding call with WorkerGone, used when the
// engine discovers the worker process has crashed (spec §4.4).
func (c *Client) MarkGone(instanceID string) {
	c.pending.failAll(orkerr.WorkerGone(instanceID))
}
