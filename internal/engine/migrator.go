package engine

import (
	"context"
	"strings"
	"time"

	"github.com/swarmguard/swarmguard/internal/apierr"
	"github.com/swarmguard/swarmguard/internal/metrics"
	"github.com/swarmguard/swarmguard/internal/orchestrator"
)

// observeInterval is the poll period of the OBSERVE phase (spec.md §4.2:
// "poll task list every 2 s").
const observeInterval = 2 * time.Second

// migrate runs the zero-downtime migration state machine of spec.md §4.2:
// FIND_OLD_TASK -> PLAN_UPDATE -> APPLY_ROLLING_UPDATE -> OBSERVE -> VERIFY
// -> DONE, or ROLLBACK -> FAIL on timeout. This is the only migration
// variant implemented (spec.md §9 explicitly forbids the historical
// force-scale-then-trim and constraint-add-then-scale variants).
func (e *Engine) migrate(ctx context.Context, service, containerID, fromNode string) Outcome {
	start := time.Now()

	// FIND_OLD_TASK
	tasks, err := e.orch.ListReplicas(ctx, service)
	if err != nil {
		if apierr.IsNotFound(err) {
			return refused("service_not_found")
		}
		return transientError(err.Error())
	}
	oldTaskID := ""
	for _, t := range tasks {
		if t.ID == containerID && t.NodeName == fromNode {
			oldTaskID = t.ID
			break
		}
	}
	if oldTaskID == "" {
		return refused("no_task")
	}

	// PLAN_UPDATE
	svc, err := e.orch.GetService(ctx, service)
	if err != nil {
		return transientError(err.Error())
	}
	originalReplicas := svc.DesiredReplicas
	constraints := planConstraints(svc.PlacementConstraints, fromNode)
	update := orchestrator.ServiceUpdate{
		PlacementConstraints: constraints,
		UpdatePolicy:         orchestrator.UpdatePolicy{Order: "start-first", Parallelism: 1},
		ForceUpdate:          e.nextForceUpdate(service),
	}

	// APPLY_ROLLING_UPDATE
	if err := e.orch.UpdateService(ctx, service, update); err != nil {
		return transientError(err.Error())
	}

	// OBSERVE / VERIFY
	deadline := start.Add(e.cfg.MigrationHealthTimeout)
	zeroDowntimeConfirmed := false
	for {
		select {
		case <-ctx.Done():
			return e.rollback(ctx, service, originalReplicas, "context cancelled")
		case <-time.After(observeInterval):
		}

		tasks, err := e.orch.ListReplicas(ctx, service)
		if err != nil {
			if time.Now().After(deadline) {
				return e.rollback(ctx, service, originalReplicas, "migration_health_timeout")
			}
			continue
		}

		if bothRunning(tasks, oldTaskID, fromNode) {
			zeroDowntimeConfirmed = true
			metrics.RecordZeroDowntimeConfirmed()
		}

		if newNode, ok := verifyMigrated(tasks, oldTaskID, fromNode); ok {
			return success(newNode, time.Since(start), zeroDowntimeConfirmed)
		}

		if time.Now().After(deadline) {
			return e.rollback(ctx, service, originalReplicas, "migration_health_timeout")
		}
	}
}

// planConstraints implements spec.md §4.2's PLAN_UPDATE: the union of
// existing constraints (minus any stale "!= <node>" clauses) plus
// "node.hostname != from_node".
func planConstraints(existing []string, fromNode string) []string {
	out := make([]string, 0, len(existing)+1)
	for _, c := range existing {
		if strings.HasPrefix(c, orchestrator.NotOnNodeConstraintPrefix) {
			continue
		}
		out = append(out, c)
	}
	return append(out, orchestrator.NotOnNodeConstraintPrefix+fromNode)
}

// bothRunning reports whether the old task and a new task on a different
// node are simultaneously in the running task list — the zero-downtime
// witness of spec.md §4.2's OBSERVE phase.
func bothRunning(tasks []orchestrator.Task, oldTaskID, fromNode string) bool {
	oldPresent := false
	newPresent := false
	for _, t := range tasks {
		if t.ID == oldTaskID && t.State == "running" {
			oldPresent = true
		}
		if t.ID != oldTaskID && t.NodeName != fromNode && t.State == "running" {
			newPresent = true
		}
	}
	return oldPresent && newPresent
}

// verifyMigrated implements spec.md §4.2's VERIFY terminal condition:
// exactly one running task, on a node != fromNode, with the old task id no
// longer present.
func verifyMigrated(tasks []orchestrator.Task, oldTaskID, fromNode string) (newNode string, ok bool) {
	running := make([]orchestrator.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.State == "running" {
			running = append(running, t)
		}
	}
	if len(running) != 1 {
		return "", false
	}
	only := running[0]
	if only.ID == oldTaskID || only.NodeName == fromNode {
		return "", false
	}
	return only.NodeName, true
}

// rollback implements spec.md §4.2's ROLLBACK: restore the previous
// replica count and return failure.
func (e *Engine) rollback(ctx context.Context, service string, originalReplicas int, reason string) Outcome {
	if svc, err := e.orch.GetService(ctx, service); err == nil {
		if delta := originalReplicas - svc.DesiredReplicas; delta != 0 {
			_, _, _ = e.orch.ScaleService(ctx, service, delta)
		}
	}
	return rolledBack(reason)
}

// nextForceUpdate returns a monotonically incremented force-update counter
// for service (spec.md §4.2 APPLY_ROLLING_UPDATE: "an incremented
// force-update counter to guarantee task recreation even if the image is
// unchanged").
func (e *Engine) nextForceUpdate(service string) uint64 {
	e.forceUpdateCounters[service]++
	return e.forceUpdateCounters[service]
}
