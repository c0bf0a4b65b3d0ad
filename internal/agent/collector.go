package agent

import (
	"context"
	"time"
)

// prevReading is the previous tick's cumulative counters for one container,
// used to derive rates on the next tick.
type prevReading struct {
	cpuTicks uint64
	sysTicks uint64
	rx       uint64
	tx       uint64
	at       time.Time
}

// Collector computes CPU%, memory%, and network% per container per tick
// (spec.md §4.1's three formulas), owning its sample buffers exclusively
// (spec.md §3 Ownership).
type Collector struct {
	lister                 ContainerLister
	nominalNetworkCapacity float64 // Mbit/s, default 100 per spec.md §4.1
	prev                   map[string]prevReading
}

// NewCollector builds a Collector. nominalNetworkCapacityMbps defaults to
// 100 when zero.
func NewCollector(lister ContainerLister, nominalNetworkCapacityMbps float64) *Collector {
	if nominalNetworkCapacityMbps <= 0 {
		nominalNetworkCapacityMbps = 100
	}
	return &Collector{
		lister:                 lister,
		nominalNetworkCapacity: nominalNetworkCapacityMbps,
		prev:                   make(map[string]prevReading),
	}
}

// Collect enumerates containers and computes one ContainerFact per
// container. A container's first-ever tick reports zero CPU/network
// (no prior counters to diff against).
func (c *Collector) Collect(ctx context.Context, node string, now time.Time) ([]ContainerFact, error) {
	stats, err := c.lister.ListContainers(ctx)
	if err != nil {
		return nil, err
	}

	facts := make([]ContainerFact, 0, len(stats))
	seen := make(map[string]struct{}, len(stats))

	for _, s := range stats {
		seen[s.ID] = struct{}{}
		prev, hasPrev := c.prev[s.ID]

		var cpuPercent, rxMbps, txMbps float64
		if hasPrev {
			elapsed := now.Sub(prev.at).Seconds()
			cpuPercent = computeCPUPercent(s, prev)
			if elapsed > 0 {
				rxMbps = bytesToMbps(diffUint64(s.RxBytes, prev.rx), elapsed)
				txMbps = bytesToMbps(diffUint64(s.TxBytes, prev.tx), elapsed)
			}
		}

		memPercent := 0.0
		memMB := float64(s.MemUsedBytes) / (1024 * 1024)
		if s.MemLimitBytes > 0 {
			memPercent = float64(s.MemUsedBytes) / float64(s.MemLimitBytes) * 100
		}

		netPercent := (rxMbps + txMbps) / c.nominalNetworkCapacity * 100

		facts = append(facts, ContainerFact{
			ContainerID:   s.ID,
			ContainerName: s.Name,
			ServiceName:   s.ServiceName,
			NodeName:      node,
			Metrics: Metrics{
				CPUPercent:     cpuPercent,
				MemoryMB:       memMB,
				MemoryPercent:  memPercent,
				NetworkRxMbps:  rxMbps,
				NetworkTxMbps:  txMbps,
				NetworkPercent: netPercent,
			},
		})

		c.prev[s.ID] = prevReading{
			cpuTicks: s.CPUTicksUsed,
			sysTicks: s.SystemTicks,
			rx:       s.RxBytes,
			tx:       s.TxBytes,
			at:       now,
		}
	}

	// Containers no longer present are dropped from the prior-reading map so
	// a restarted container with a reused id doesn't get a stale baseline.
	for id := range c.prev {
		if _, ok := seen[id]; !ok {
			delete(c.prev, id)
		}
	}

	return facts, nil
}

// computeCPUPercent derives single-core-equivalent CPU% from the delta in
// total CPU ticks and total system ticks since the previous poll,
// multiplied by online-CPU count (spec.md §4.1).
func computeCPUPercent(s ContainerStats, prev prevReading) float64 {
	sysDelta := diffUint64(s.SystemTicks, prev.sysTicks)
	if sysDelta == 0 {
		return 0
	}
	cpuDelta := diffUint64(s.CPUTicksUsed, prev.cpuTicks)
	cores := s.OnlineCPUs
	if cores <= 0 {
		cores = 1
	}
	return float64(cpuDelta) / float64(sysDelta) * float64(cores) * 100
}

func diffUint64(current, previous uint64) uint64 {
	if current < previous {
		return 0
	}
	return current - previous
}

func bytesToMbps(bytes uint64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	const bitsPerByte = 8
	const bitsPerMbit = 1_000_000
	return float64(bytes) * bitsPerByte / bitsPerMbit / seconds
}
