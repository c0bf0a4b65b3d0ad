package metricscache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache is a TTL-refreshed, per-container metrics snapshot keyed by
// container id. Refresh is driven externally by a ticker (the router's
// cache_ttl, spec.md §4.3) rather than lazily on read, so a burst of
// concurrent reads never triggers a fetch storm.
type Cache struct {
	fetcher Fetcher
	logger  *zap.Logger

	mu      sync.RWMutex
	byID    map[string]entry
}

// NewCache builds an empty Cache backed by fetcher.
func NewCache(fetcher Fetcher, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{fetcher: fetcher, logger: logger, byID: make(map[string]entry)}
}

// Refresh fetches every node in agentAddrs (node name -> base URL) and
// replaces the cached snapshot for containers reported on that node. A
// fetch failure for one node is logged and leaves that node's prior
// entries in place until the next tick (spec.md §7: transient transport
// failures are logged, caller decides — here the cache simply serves
// stale data rather than failing the selector).
func (c *Cache) Refresh(ctx context.Context, agentAddrs map[string]string) {
	for node, addr := range agentAddrs {
		resp, err := c.fetcher.FetchContainerMetrics(ctx, addr)
		if err != nil {
			c.logger.Warn("metrics fetch failed", zap.String("node", node), zap.Error(err))
			continue
		}

		now := time.Now()
		c.mu.Lock()
		for _, cm := range resp.Containers {
			c.byID[cm.ContainerID] = entry{metric: cm, node: node, fetchedAt: now}
		}
		c.mu.Unlock()
	}
}

// Get returns the cached metric for containerID, if present.
func (c *Cache) Get(containerID string) (ContainerMetric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[containerID]
	return e.metric, ok
}

// Empty reports whether the cache has never been populated, used by the
// metrics selection policy to degrade to round-robin (spec.md §4.3).
func (c *Cache) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID) == 0
}

// AggregateService sums CPU% and memory% across the given task (container)
// ids, for the scale-down supervisor's eligibility check (spec.md §4.2,
// §9). found is the number of task ids for which a metric was available;
// callers should treat a partial match as insufficient data and skip the
// tick rather than act on an under-counted aggregate.
func (c *Cache) AggregateService(taskIDs []string) (cpuTotal, memTotal float64, found int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range taskIDs {
		if e, ok := c.byID[id]; ok {
			cpuTotal += e.metric.CPUPercent
			memTotal += e.metric.MemoryPercent
			found++
		}
	}
	return cpuTotal, memTotal, found
}
