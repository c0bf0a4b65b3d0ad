package router

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/metricscache"
	"github.com/swarmguard/swarmguard/internal/orchestrator"
	"github.com/swarmguard/swarmguard/internal/transport"
)

// Config bundles the router's tunables, recognized from spec.md §6's
// configuration table.
type Config struct {
	Algorithm           Algorithm
	Weights             Weights
	LeaseDuration       time.Duration
	LeaseCleanupInterval time.Duration
	HealthCheckInterval time.Duration
	CacheTTL            time.Duration
	ProxyTimeout        time.Duration
	TargetPort          int
	AgentMetricsPort    int
	LogEveryNRequests   uint64
}

// needsMetrics reports whether cfg.Algorithm ever consults the metrics
// cache (spec.md §4.3: only "metrics" and "hybrid" do).
func (cfg Config) needsMetrics() bool {
	return cfg.Algorithm == AlgorithmMetrics || cfg.Algorithm == AlgorithmHybrid
}

// Router wires discovery, the lease ledger, the metrics cache, the
// selector, and the reverse proxy into the single HTTP surface spec.md
// §4.3 names.
type Router struct {
	cfg       Config
	discovery *Discovery
	leases    *LeaseLedger
	cache     *metricscache.Cache
	selector  *Selector
	proxy     *Proxy
	logger    *zap.Logger
}

// New builds a Router for serviceName against orch.
func New(cfg Config, orch orchestrator.Client, serviceName string, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	discovery := NewDiscovery(orch, serviceName, cfg.TargetPort, logger)
	leases := NewLeaseLedger(cfg.LeaseDuration, logger)

	var cache *metricscache.Cache
	if cfg.needsMetrics() {
		// A flaky or overloaded agent must not be hammered by the cache's
		// own refresh ticker: trip the breaker after repeated failures and
		// cap the outbound fetch rate, the same protection the alert
		// sender applies to its engine-bound client.
		breaker := transport.NewCircuitBreaker(transport.DefaultCircuitBreakerConfig(), logger)
		client := transport.New(
			transport.WithTimeout(2*time.Second),
			transport.WithLogger(logger),
			transport.WithCircuitBreaker(breaker),
			transport.WithRateLimit(50, 50),
		)
		fetcher := metricscache.NewHTTPFetcher(client)
		cache = metricscache.NewCache(fetcher, logger)
	}

	selector := NewSelector(cfg.Algorithm, cfg.Weights, leases, cache)
	proxy := NewProxy(discovery, selector, leases, cfg.Algorithm, cfg.ProxyTimeout, cfg.LogEveryNRequests, logger)

	return &Router{cfg: cfg, discovery: discovery, leases: leases, cache: cache, selector: selector, proxy: proxy, logger: logger}
}

// Run starts discovery, lease cleanup, and (if the algorithm needs it) the
// metrics-cache refresh loop; it blocks until ctx is cancelled.
func (r *Router) Run(ctx context.Context) {
	go r.discovery.Run(ctx, r.cfg.HealthCheckInterval)
	go r.leases.RunCleanup(ctx, r.cfg.LeaseCleanupInterval)
	if r.cache != nil {
		go r.runCacheRefresh(ctx)
	}
	<-ctx.Done()
}

func (r *Router) runCacheRefresh(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.CacheTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cache.Refresh(ctx, r.agentAddrs())
		}
	}
}

func (r *Router) agentAddrs() map[string]string {
	all := r.discovery.All()
	addrs := make(map[string]string, len(all))
	for _, replica := range all {
		addrs[replica.Node] = fmt.Sprintf("http://%s:%d", replica.Node, r.cfg.AgentMetricsPort)
	}
	return addrs
}
