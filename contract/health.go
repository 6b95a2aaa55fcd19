package contract

import "context"

// HealthChecker is implemented by services that can report their own
// health. The Lifecycle Engine's Health introspection (see
// (*orkestra.Orchestrator).Health) polls every main-mode or worker-proxy
// service that satisfies this interface.
type HealthChecker interface {
	Health(ctx context.Context) error
}
