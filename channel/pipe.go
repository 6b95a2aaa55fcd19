package channel

import (
	"sync"

	"github.com/deckhand/orkestra/wire"
)

// pipeChannel is one end of an in-process duplex pair connected by Go
// channels. It is the default transport for same-process worker
// simulation and for every test in this module; it needs no OS process.
type pipeChannel struct {
	out     chan<- wire.Envelope
	in      <-chan wire.Envelope
	handler Handler
	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewPipe creates a connected pair of in-process channel ends: frames sent
// on a arrive at b's handler, and vice versa.
func NewPipe() (a, b Channel) {
	ab := make(chan wire.Envelope, 64)
	ba := make(chan wire.Envelope, 64)

	pa := &pipeChannel{out: ab, in: ba, done: make(chan struct{})}
	pb := &pipeChannel{out: ba, in: ab, done: make(chan struct{})}
	return pa, pb
}

func (p *pipeChannel) Send(env wire.Envelope) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errClosed
	}

	select {
	case p.out <- env:
		return nil
	case <-p.done:
		return errClosed
	}
}

func (p *pipeChannel) OnMessage(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

func (p *pipeChannel) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	handler := p.handler
	p.mu.Unlock()

	go func() {
		for {
			select {
			case env, ok := <-p.in:
				if !ok {
					return
				}
				if handler != nil {
					go handler(env)
				}
			case <-p.done:
				return
			}
		}
	}()
	return nil
}

func (p *pipeChannel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	return nil
}

var errClosed = closedError{}

type closedError struct{}

func (closedError) Error() string { return "channel: closed" }
