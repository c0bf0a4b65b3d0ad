package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/logging"
	"github.com/swarmguard/swarmguard/internal/metrics"
)

// MetricsAggregator sums CPU%/memory% across a set of task (container) ids,
// satisfied by *metricscache.Cache. Resolves SPEC_FULL.md §9's
// get_service_aggregate_metrics open question: "sum of per-task CPU% and
// memory% across the service's running tasks, each measured by the local
// agent."
type MetricsAggregator interface {
	AggregateService(taskIDs []string) (cpuTotal, memTotal float64, found int)
}

// RunScaleDownSupervisor runs the periodic, non-alert-driven scale-down
// supervisor of spec.md §4.2 until ctx is cancelled. Resolves the
// get_autoscaling_services open question as "all services with replicas >
// min_replicas", enumerated fresh on every tick via ListServices (no
// caching across ticks, since the supervisor is the only consumer).
func (e *Engine) RunScaleDownSupervisor(ctx context.Context, aggregator MetricsAggregator) {
	ticker := time.NewTicker(e.cfg.ScaleDownSupervisorTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.scaleDownTick(ctx, aggregator)
		}
	}
}

func (e *Engine) scaleDownTick(ctx context.Context, aggregator MetricsAggregator) {
	e.mu.Lock()
	defer e.mu.Unlock()

	services, err := e.orch.ListServices(ctx)
	if err != nil {
		e.logger.Warn("scale-down supervisor: list services failed", zap.Error(err))
		return
	}

	metrics.SetActiveCooldowns(e.activeCooldownCount())

	for _, svc := range services {
		if svc.DesiredReplicas <= e.cfg.MinReplicas {
			delete(e.idleMarks, svc.Name)
			continue
		}
		e.evaluateScaleDown(ctx, svc.Name, svc.DesiredReplicas, aggregator)
	}
}

func (e *Engine) evaluateScaleDown(ctx context.Context, service string, replicas int, aggregator MetricsAggregator) {
	tasks, err := e.orch.ListReplicas(ctx, service)
	if err != nil {
		return
	}
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.State == "running" {
			taskIDs = append(taskIDs, t.ID)
		}
	}
	if len(taskIDs) == 0 {
		return
	}

	cpuTotal, memTotal, found := aggregator.AggregateService(taskIDs)
	if found < len(taskIDs) {
		// Incomplete metrics: treat as insufficient data, do not act.
		return
	}

	n := len(taskIDs)
	eligible := cpuTotal < e.cfg.CPUThreshold*float64(n-1) && memTotal < e.cfg.MemoryThreshold*float64(n-1)

	if !eligible {
		delete(e.idleMarks, service)
		return
	}

	mark, marked := e.idleMarks[service]
	if !marked {
		e.idleMarks[service] = time.Now()
		return
	}

	if time.Since(mark) < e.cfg.CooldownScaleDown {
		return
	}

	if _, active := e.cooldownRemaining(service, ScenarioScaleDown); active {
		return
	}

	e.startCooldown(service, ScenarioScaleDown)
	start := time.Now()
	before, after, err := e.orch.ScaleService(ctx, service, -1)
	duration := time.Since(start)
	outcome := successScale(before, after)
	if err != nil {
		outcome = transientError(err.Error())
	} else {
		e.completeCooldown(service, ScenarioScaleDown)
	}

	delete(e.idleMarks, service)

	logger := logging.WithRequestIDField(ctx, e.logger)
	logging.LogActionDispatched(logger, service, actionName(ScenarioScaleDown))
	metrics.RecordActionDispatched(actionName(ScenarioScaleDown))
	metrics.RecordActionOutcome(actionName(ScenarioScaleDown), string(outcome.Kind), duration)
	e.audit.RecordAction(ctx, service, ScenarioScaleDown, outcome)
}
