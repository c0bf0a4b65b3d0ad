package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	stats []ContainerStats
}

func (f fakeLister) ListContainers(context.Context) ([]ContainerStats, error) {
	return f.stats, nil
}

// TestCollector_FirstTickReportsZeroRates covers "a container's first-ever
// tick reports zero CPU/network (no prior counters to diff against)".
func TestCollector_FirstTickReportsZeroRates(t *testing.T) {
	lister := fakeLister{stats: []ContainerStats{
		{ID: "c1", CPUTicksUsed: 1000, SystemTicks: 10000, OnlineCPUs: 4, MemUsedBytes: 50 * 1024 * 1024, MemLimitBytes: 100 * 1024 * 1024},
	}}
	c := NewCollector(lister, 100)

	facts, err := c.Collect(context.Background(), "worker-1", time.Now())
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, 0.0, facts[0].Metrics.CPUPercent)
	require.Equal(t, 0.0, facts[0].Metrics.NetworkRxMbps)
	require.InDelta(t, 50.0, facts[0].Metrics.MemoryPercent, 0.001)
}

// TestCollector_SecondTickComputesRates covers the CPU%/network% formulas
// against a second tick's counter deltas.
func TestCollector_SecondTickComputesRates(t *testing.T) {
	lister := &mutableLister{stats: []ContainerStats{
		{ID: "c1", CPUTicksUsed: 1000, SystemTicks: 10000, OnlineCPUs: 2, MemUsedBytes: 10, MemLimitBytes: 100, RxBytes: 0, TxBytes: 0},
	}}
	c := NewCollector(lister, 100)
	start := time.Now()
	_, err := c.Collect(context.Background(), "worker-1", start)
	require.NoError(t, err)

	lister.stats[0].CPUTicksUsed = 1500
	lister.stats[0].SystemTicks = 11000
	lister.stats[0].RxBytes = 1_250_000 // 10 Mbit over 1s

	facts, err := c.Collect(context.Background(), "worker-1", start.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, facts, 1)
	// (500/1000) * 2 cores * 100 = 100%
	require.InDelta(t, 100.0, facts[0].Metrics.CPUPercent, 0.01)
	require.InDelta(t, 10.0, facts[0].Metrics.NetworkRxMbps, 0.01)
}

// TestCollector_DropsStaleBaselineForVanishedContainer covers "a restarted
// container with a reused id doesn't get a stale baseline".
func TestCollector_DropsStaleBaselineForVanishedContainer(t *testing.T) {
	lister := &mutableLister{stats: []ContainerStats{{ID: "c1", SystemTicks: 10000}}}
	c := NewCollector(lister, 100)
	start := time.Now()
	_, err := c.Collect(context.Background(), "worker-1", start)
	require.NoError(t, err)
	require.Contains(t, c.prev, "c1")

	lister.stats = nil
	_, err = c.Collect(context.Background(), "worker-1", start.Add(time.Second))
	require.NoError(t, err)
	require.NotContains(t, c.prev, "c1")
}

type mutableLister struct {
	stats []ContainerStats
}

func (m *mutableLister) ListContainers(context.Context) ([]ContainerStats, error) {
	return m.stats, nil
}
