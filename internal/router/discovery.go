package router

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/metrics"
	"github.com/swarmguard/swarmguard/internal/orchestrator"
)

// Discovery polls the orchestrator for the target service's running tasks,
// resolves each to a routable address, probes /health, and atomically
// replaces the router's working replica table (spec.md §4.3 Discovery;
// spec.md §5 "Discovery updates in the router are applied atomically").
type Discovery struct {
	orch        orchestrator.Client
	httpClient  *http.Client
	service     string
	targetPort  int
	logger      *zap.Logger

	mu    sync.RWMutex
	table []Replica
}

// NewDiscovery builds a Discovery for serviceName, resolving each task's
// node name to http://<node>:<targetPort>.
func NewDiscovery(orch orchestrator.Client, serviceName string, targetPort int, logger *zap.Logger) *Discovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discovery{
		orch:       orch,
		httpClient: &http.Client{Timeout: 2 * time.Second},
		service:    serviceName,
		targetPort: targetPort,
		logger:     logger,
	}
}

// Run polls every interval until ctx is cancelled (spec.md §5: cancellation
// via context only).
func (d *Discovery) Run(ctx context.Context, interval time.Duration) {
	d.refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.refresh(ctx)
		}
	}
}

func (d *Discovery) refresh(ctx context.Context) {
	tasks, err := d.orch.ListReplicas(ctx, d.service)
	if err != nil {
		d.logger.Warn("discovery: list replicas failed", zap.String("service", d.service), zap.Error(err))
		return
	}

	next := make([]Replica, 0, len(tasks))
	for _, t := range tasks {
		if t.State != "running" {
			continue
		}
		addr := fmt.Sprintf("http://%s:%d", t.NodeName, d.targetPort)
		next = append(next, Replica{
			ID:      t.ID,
			Node:    t.NodeName,
			Address: addr,
			Healthy: d.probe(ctx, addr),
		})
	}

	d.mu.Lock()
	d.table = next
	d.mu.Unlock()

	metrics.SetHealthyReplicas(d.Healthy().count())
}

func (d *Discovery) probe(ctx context.Context, addr string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// healthySet is the read-only snapshot a selector reasons against; it is
// returned by value so a caller sees either the old or new table, never a
// mixed state (spec.md §5).
type healthySet struct {
	replicas []Replica
}

func (h healthySet) count() int { return len(h.replicas) }

// Healthy returns the current healthy-replica snapshot.
func (d *Discovery) Healthy() healthySet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Replica, 0, len(d.table))
	for _, r := range d.table {
		if r.Healthy {
			out = append(out, r)
		}
	}
	return healthySet{replicas: out}
}

// All returns every currently known replica, healthy or not (used by /metrics
// introspection).
func (d *Discovery) All() []Replica {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Replica, len(d.table))
	copy(out, d.table)
	return out
}
