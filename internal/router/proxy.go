package router

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/logging"
	"github.com/swarmguard/swarmguard/internal/metrics"
)

// hopByHopHeaders are stripped before forwarding, per RFC 7230 §6.1 (spec.md
// §4.3 step 2: "headers (stripped of hop-by-hop)").
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailers", "Transfer-Encoding", "Upgrade",
}

// Proxy implements the request lifecycle of spec.md §4.3: select, forward,
// 502 on transport error, guaranteed lease release, sampled logging.
// Grounded on httputil.ReverseProxy, generalized from the shared-transport
// client pattern the teacher applies to its own outbound HTTP (see
// SPEC_FULL.md §4.3.1).
type Proxy struct {
	discovery *Discovery
	selector  *Selector
	leases    *LeaseLedger
	algorithm Algorithm
	timeout   time.Duration
	logger    *zap.Logger

	// transport is shared across every proxied request so upstream
	// connections are pooled per replica host instead of torn down and
	// re-established on each request (spec.md §4.4: "connection reuse is
	// expected").
	transport *http.Transport

	requestCount uint64
	logEvery     uint64
}

// NewProxy builds a Proxy. logEvery of 0 falls back to logging every 100th
// request.
func NewProxy(discovery *Discovery, selector *Selector, leases *LeaseLedger, algorithm Algorithm, timeout time.Duration, logEvery uint64, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if logEvery == 0 {
		logEvery = 100
	}
	return &Proxy{
		discovery: discovery,
		selector:  selector,
		leases:    leases,
		algorithm: algorithm,
		timeout:   timeout,
		logEvery:  logEvery,
		logger:    logger,
		transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// ServeHTTP implements the transparent-proxy fallback path of spec.md §4.3
// ("any other path/method: proxied").
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	healthy := p.discovery.Healthy().replicas
	if len(healthy) == 0 {
		metrics.RecordRequest("no_healthy_replica")
		http.Error(w, "no healthy replicas", http.StatusServiceUnavailable)
		return
	}

	sel, err := p.selector.Select(healthy)
	if err != nil {
		metrics.RecordRequest("no_healthy_replica")
		http.Error(w, "no healthy replicas", http.StatusServiceUnavailable)
		return
	}
	metrics.RecordSelection(string(p.algorithm))

	// Lease release is guaranteed on every exit path (spec.md §4.3 step 4),
	// regardless of how ServeHTTP returns below.
	released := false
	release := func() {
		if !released && sel.LeaseID != "" {
			p.leases.Release(sel.Replica.ID, sel.LeaseID)
			released = true
		}
	}
	defer release()

	target, err := url.Parse(sel.Replica.Address)
	if err != nil {
		metrics.RecordRequest("bad_upstream")
		http.Error(w, "bad upstream address", http.StatusBadGateway)
		return
	}

	stripHopByHop(r.Header)

	rp := httputil.NewSingleHostReverseProxy(target)
	rp.Transport = p.transport

	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	proxyFailed := false
	rp.ErrorHandler = func(rw http.ResponseWriter, _ *http.Request, err error) {
		proxyFailed = true
		metrics.RecordRequest("upstream_error")
		http.Error(rw, "upstream error: "+err.Error(), http.StatusBadGateway)
	}

	rp.ServeHTTP(w, r.WithContext(ctx))

	if !proxyFailed {
		metrics.RecordRequest("ok")
	}

	count := atomic.AddUint64(&p.requestCount, 1)
	if count%p.logEvery == 0 {
		logging.LogSelection(p.logger, string(p.algorithm), sel.Replica.ID, int64(count))
	}
}

func stripHopByHop(h http.Header) {
	for _, header := range hopByHopHeaders {
		h.Del(header)
	}
}
