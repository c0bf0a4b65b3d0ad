package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swarmguard/swarmguard/internal/orchestrator"
)

// TestMigrate_ZeroDowntimeWitness confirms the OBSERVE phase records both
// the old and new task running simultaneously (spec.md §9: "the OBSERVE
// phase should record the both tasks running simultaneously witness as a
// first-class success attribute").
func TestMigrate_ZeroDowntimeWitness(t *testing.T) {
	fake := orchestrator.NewFake()
	fake.SetObserveTicks(1)
	fake.Seed(orchestrator.Service{Name: "payments-api", DesiredReplicas: 1}, []orchestrator.Task{
		{ID: "c1", NodeName: "worker-3", State: "running"},
	})

	cfg := testConfig()
	cfg.MigrationHealthTimeout = 10 * time.Second
	e := New(cfg, fake, nil, nil)

	outcome := e.migrate(context.Background(), "payments-api", "c1", "worker-3")

	require.Equal(t, OutcomeSuccess, outcome.Kind)
	require.True(t, outcome.ZeroDowntimeConfirmed)
	require.NotEqual(t, "worker-3", outcome.NewNode)
}

// TestMigrate_NoTaskRefused covers the FIND_OLD_TASK failure path: the
// alert no longer matches a real task on that node.
func TestMigrate_NoTaskRefused(t *testing.T) {
	fake := orchestrator.NewFake()
	fake.Seed(orchestrator.Service{Name: "payments-api", DesiredReplicas: 1}, []orchestrator.Task{
		{ID: "c1", NodeName: "worker-9", State: "running"},
	})
	e := New(testConfig(), fake, nil, nil)

	outcome := e.migrate(context.Background(), "payments-api", "c1", "worker-3")
	require.Equal(t, OutcomeRefused, outcome.Kind)
	require.Equal(t, "no_task", outcome.Reason)
}

// TestMigrate_RollbackOnTimeout covers the ROLLBACK path: the orchestrator
// never settles to a single running task on a different node before the
// deadline, so the engine restores the original replica count.
func TestMigrate_RollbackOnTimeout(t *testing.T) {
	fake := orchestrator.NewFake()
	fake.SetObserveTicks(1000) // never settles within the test's deadline
	fake.Seed(orchestrator.Service{Name: "payments-api", DesiredReplicas: 2}, []orchestrator.Task{
		{ID: "c1", NodeName: "worker-3", State: "running"},
	})

	cfg := testConfig()
	cfg.MigrationHealthTimeout = 1 * time.Millisecond
	e := New(cfg, fake, nil, nil)

	outcome := e.migrate(context.Background(), "payments-api", "c1", "worker-3")

	require.Equal(t, OutcomeRolledBack, outcome.Kind)
	require.Equal(t, "migration_health_timeout", outcome.Reason)

	svc, err := fake.GetService(context.Background(), "payments-api")
	require.NoError(t, err)
	require.Equal(t, 2, svc.DesiredReplicas)
}
