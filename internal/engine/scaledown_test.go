package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swarmguard/swarmguard/internal/orchestrator"
)

type fakeAggregator struct {
	cpuTotal, memTotal float64
	found              int
}

func (f fakeAggregator) AggregateService(taskIDs []string) (float64, float64, int) {
	found := f.found
	if found == 0 {
		found = len(taskIDs)
	}
	return f.cpuTotal, f.memTotal, found
}

func seededScaleDownFake(replicas int) *orchestrator.Fake {
	tasks := make([]orchestrator.Task, replicas)
	for i := range tasks {
		tasks[i] = orchestrator.Task{ID: "c" + string(rune('0'+i)), NodeName: "worker-1", State: "running"}
	}
	fake := orchestrator.NewFake()
	fake.Seed(orchestrator.Service{Name: "payments-api", DesiredReplicas: replicas}, tasks)
	return fake
}

// TestScaleDown_EligibleRequiresIdleMarkThenCooldown covers spec.md §8
// scenario 5: a service below threshold must be observed idle across two
// ticks (IdleMark hysteresis) before it scales down, and then scales down by
// exactly one replica.
func TestScaleDown_EligibleRequiresIdleMarkThenCooldown(t *testing.T) {
	fake := seededScaleDownFake(3)
	cfg := testConfig()
	cfg.CooldownScaleDown = 0
	e := New(cfg, fake, nil, nil)
	agg := fakeAggregator{cpuTotal: 10, memTotal: 10}

	// First tick: eligible, but only marks idle, does not scale yet.
	e.evaluateScaleDown(context.Background(), "payments-api", 3, agg)
	require.Empty(t, fake.Updates())

	// Second tick, after the idle mark: scales down by one.
	e.evaluateScaleDown(context.Background(), "payments-api", 3, agg)
	require.Len(t, fake.Updates(), 0, "ScaleService path records via ScaleService, not UpdateService")

	svc, err := fake.GetService(context.Background(), "payments-api")
	require.NoError(t, err)
	require.Equal(t, 2, svc.DesiredReplicas)
}

// TestScaleDown_NotEligibleResetsIdleMark covers the hysteresis reset: a
// service that stops being idle clears its idle mark instead of scaling.
func TestScaleDown_NotEligibleResetsIdleMark(t *testing.T) {
	fake := seededScaleDownFake(3)
	e := New(testConfig(), fake, nil, nil)

	e.evaluateScaleDown(context.Background(), "payments-api", 3, fakeAggregator{cpuTotal: 10, memTotal: 10})
	_, marked := e.idleMarks["payments-api"]
	require.True(t, marked)

	// Load climbs back up before the second tick: idle mark must clear.
	e.evaluateScaleDown(context.Background(), "payments-api", 3, fakeAggregator{cpuTotal: 200, memTotal: 200})
	_, stillMarked := e.idleMarks["payments-api"]
	require.False(t, stillMarked)

	svc, err := fake.GetService(context.Background(), "payments-api")
	require.NoError(t, err)
	require.Equal(t, 3, svc.DesiredReplicas)
}

// TestScaleDown_MinReplicasBoundary covers the boundary behaviour
// "desired_replicas == min_replicas => never scales down further".
func TestScaleDown_MinReplicasBoundary(t *testing.T) {
	fake := seededScaleDownFake(1)
	cfg := testConfig()
	cfg.MinReplicas = 1
	e := New(cfg, fake, nil, nil)

	e.scaleDownTick(context.Background(), fakeAggregator{cpuTotal: 1, memTotal: 1})
	e.scaleDownTick(context.Background(), fakeAggregator{cpuTotal: 1, memTotal: 1})

	svc, err := fake.GetService(context.Background(), "payments-api")
	require.NoError(t, err)
	require.Equal(t, 1, svc.DesiredReplicas)
	require.NotContains(t, e.idleMarks, "payments-api")
}

// TestScaleDown_CrossScenarioCooldownGate confirms an active migration/scale
// cooldown blocks scale-down even once the idle mark has matured.
func TestScaleDown_CrossScenarioCooldownGate(t *testing.T) {
	fake := seededScaleDownFake(3)
	cfg := testConfig()
	cfg.CooldownScaleDown = time.Hour
	e := New(cfg, fake, nil, nil)
	e.startCooldown("payments-api", ScenarioMigration)

	e.idleMarks["payments-api"] = time.Now().Add(-2 * time.Hour)
	e.evaluateScaleDown(context.Background(), "payments-api", 3, fakeAggregator{cpuTotal: 10, memTotal: 10})

	svc, err := fake.GetService(context.Background(), "payments-api")
	require.NoError(t, err)
	require.Equal(t, 3, svc.DesiredReplicas)
}

// TestScaleDown_IncompleteMetricsSkipsAction covers "found < len(taskIDs) =>
// treat as insufficient data, never act".
func TestScaleDown_IncompleteMetricsSkipsAction(t *testing.T) {
	fake := seededScaleDownFake(3)
	e := New(testConfig(), fake, nil, nil)

	e.evaluateScaleDown(context.Background(), "payments-api", 3, fakeAggregator{cpuTotal: 1, memTotal: 1, found: 1})
	require.NotContains(t, e.idleMarks, "payments-api")

	svc, err := fake.GetService(context.Background(), "payments-api")
	require.NoError(t, err)
	require.Equal(t, 3, svc.DesiredReplicas)
}
