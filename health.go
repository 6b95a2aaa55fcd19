package orkestra

import (
	"context"
	"fmt"
	"strings"

	"github.com/deckhand/orkestra/contract"
)

// Health polls every registered service that implements
// contract.HealthChecker and aggregates failures into a single error.
// Purely additive introspection (spec §6 frames diagnostics as
// "informational only"); it never alters start/stop state, adapted from
// the teacher module's container-wide Health method.
func (o *Orchestrator) Health(ctx context.Context) error {
	var failures []string
	for _, name := range o.services.Names() {
		svc, err := o.services.Get(name)
		if err != nil {
			continue
		}
		checker, ok := svc.(contract.HealthChecker)
		if !ok {
			continue
		}
		if err := checker.Health(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("orkestra: unhealthy services: %s", strings.Join(failures, "; "))
}
