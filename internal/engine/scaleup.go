package engine

import (
	"context"

	"github.com/swarmguard/swarmguard/internal/apierr"
)

// scaleUp implements spec.md §4.2's Scale-up: query current replicas; if
// below max_replicas, request +1 and return the before/after counts.
// Placement is the orchestrator's responsibility.
func (e *Engine) scaleUp(ctx context.Context, service string) Outcome {
	svc, err := e.orch.GetService(ctx, service)
	if err != nil {
		if apierr.IsNotFound(err) {
			return refused("service_not_found")
		}
		return transientError(err.Error())
	}

	if svc.DesiredReplicas >= e.cfg.MaxReplicas {
		return refused("max_replicas reached")
	}

	before, after, err := e.orch.ScaleService(ctx, service, 1)
	if err != nil {
		if apierr.IsNotFound(err) {
			return refused("service_not_found")
		}
		return transientError(err.Error())
	}
	return successScale(before, after)
}
