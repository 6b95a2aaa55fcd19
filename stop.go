package orkestra

import (
	"context"
	"errors"

	"github.com/deckhand/orkestra/orkerr"
)

// StopOptions controls a single Stop call. Empty today; present for
// forward compatibility and symmetry with StartOptions (spec §6 "stop(options)
// symmetric").
type StopOptions struct{}

// Stop tears down every started instance in reverse start order (spec
// §4.4 "Stop"). Teardown errors are logged and suppressed so every
// instance gets a chance to shut down (spec §7); Stop itself never returns
// a teardown error, matching testable property 5 ("stop returns within
// T_teardown + ε even if the worker never replies").
func (o *Orchestrator) Stop(ctx context.Context, opts StopOptions) error {
	o.mu.Lock()
	order := append([]string(nil), o.startedOrder...)
	o.started = false
	o.startedOrder = nil
	o.mu.Unlock()

	o.teardownInReverse(order)
	return nil
}

// teardownInReverse tears down ids in reverse order, logging but not
// propagating per-instance failures (used both by Stop and by Start's
// rollback-on-failure path).
func (o *Orchestrator) teardownInReverse(ids []string) {
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		o.fire(EventInstanceStopping, id)

		o.mu.Lock()
		inst := o.instances[id]
		t := o.types[inst.TypeID]
		o.mu.Unlock()

		if inst.Mode == ModeWorker {
			o.teardownWorker(id)
		} else if t.Teardown != nil {
			if err := t.Teardown(id); err != nil {
				o.logger.Warnf("orkestra: teardown of %q failed: %v", id, err)
			}
		}

		o.fire(EventInstanceStopped, id)
	}
}

func (o *Orchestrator) teardownWorker(id string) {
	o.mu.Lock()
	rec, ok := o.workers[id]
	o.mu.Unlock()
	if !ok {
		return
	}

	rec.MarkTearingDown()

	err := rec.Client.Teardown(o.teardownTimeout)
	if err != nil {
		if errors.Is(err, orkerr.Sentinel(orkerr.KindRPCTimeout)) {
			err = orkerr.TeardownTimeout(id)
		}
		o.logger.Warnf("orkestra: worker %q teardown: %v", id, err)
	}

	if o.spawner != nil {
		if err := o.spawner.Terminate(rec.Downlink); err != nil {
			o.logger.Warnf("orkestra: worker %q terminate: %v", id, err)
		}
	}
	if rec.Uplink != nil {
		if err := rec.Uplink.Close(); err != nil {
			o.logger.Warnf("orkestra: worker %q uplink close: %v", id, err)
		}
	}
	rec.MarkTerminated()

	o.mu.Lock()
	delete(o.workers, id)
	o.mu.Unlock()
}

// handleWorkerGone marks a worker terminated and rejects its outstanding
// downlink calls with WorkerGone (spec §4.4 "Failure policy"). It is
// unexported and nothing in this module calls it: no Spawner here reports a
// worker that died outside the teardown handshake, so such a worker's
// outstanding calls end only when their T_rpc timers fire.
func (o *Orchestrator) handleWorkerGone(id string) {
	o.mu.Lock()
	rec, ok := o.workers[id]
	o.mu.Unlock()
	if !ok {
		return
	}
	rec.Client.MarkGone(id)
	rec.MarkTerminated()
	o.fire(EventWorkerGone, id)
}
