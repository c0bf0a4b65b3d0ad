package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fourHealthyReplicas() []Replica {
	return []Replica{
		{ID: "r1", Node: "worker-1", Healthy: true},
		{ID: "r2", Node: "worker-2", Healthy: true},
		{ID: "r3", Node: "worker-3", Healthy: true},
		{ID: "r4", Node: "worker-4", Healthy: true},
	}
}

// TestSelector_RoundRobinFairness covers spec.md §8 invariant 5 / scenario 6:
// 100 requests against 4 stable healthy replicas yield counts in {25,25,25,25}.
func TestSelector_RoundRobinFairness(t *testing.T) {
	leases := NewLeaseLedger(30*time.Second, nil)
	selector := NewSelector(AlgorithmRoundRobin, Weights{}, leases, nil)
	healthy := fourHealthyReplicas()

	counts := make(map[string]int)
	for i := 0; i < 100; i++ {
		sel, err := selector.Select(healthy)
		require.NoError(t, err)
		counts[sel.Replica.ID]++
	}

	require.Len(t, counts, 4)
	for id, c := range counts {
		require.InDeltaf(t, 25, c, 1, "replica %s got %d requests", id, c)
	}
}

func TestSelector_NoHealthyReplicas(t *testing.T) {
	leases := NewLeaseLedger(30*time.Second, nil)
	selector := NewSelector(AlgorithmRoundRobin, Weights{}, leases, nil)

	_, err := selector.Select(nil)
	require.ErrorIs(t, err, ErrNoHealthyReplica)
}

func TestSelector_LeasePolicyPicksFewestLeases(t *testing.T) {
	leases := NewLeaseLedger(30*time.Second, nil)
	selector := NewSelector(AlgorithmLease, Weights{}, leases, nil)
	healthy := fourHealthyReplicas()

	leases.Acquire("r1")
	leases.Acquire("r1")
	leases.Acquire("r2")

	sel, err := selector.Select(healthy)
	require.NoError(t, err)
	require.Contains(t, []string{"r3", "r4"}, sel.Replica.ID)
	require.NotEmpty(t, sel.LeaseID)
	require.Equal(t, 1, leases.Count(sel.Replica.ID))
}

func TestSelector_MetricsDegradesToRoundRobinWhenCacheEmpty(t *testing.T) {
	leases := NewLeaseLedger(30*time.Second, nil)
	selector := NewSelector(AlgorithmMetrics, Weights{CPU: 0.5, Memory: 0.3, Network: 0.2}, leases, nil)
	healthy := fourHealthyReplicas()

	sel, err := selector.Select(healthy)
	require.NoError(t, err)
	require.NotEmpty(t, sel.Replica.ID)
	require.Empty(t, sel.LeaseID)
}
