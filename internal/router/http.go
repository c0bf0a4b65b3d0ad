package router

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the router's HTTP surface (spec.md §4.3): GET /health, GET
// /metrics (JSON selector introspection — the literal shape spec.md §6
// names), any other path/method transparently proxied. A Prometheus
// exposition endpoint is mounted at /prometheus for the same reason the
// engine's is (see DESIGN.md): it would otherwise collide with the JSON
// /metrics contract.
type Server struct {
	mux    *http.ServeMux
	router *Router
	logger *zap.Logger
}

// NewServer builds the router's HTTP handler.
func NewServer(r *Router, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{mux: http.NewServeMux(), router: r, logger: logger}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/metrics", s.handleMetrics)
	s.mux.Handle("/prometheus", promhttp.Handler())
	s.mux.HandleFunc("/", s.handleProxyOrReserved)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleProxyOrReserved proxies everything not claimed by the reserved
// paths above, per spec.md §4.3's default-forward rule. ServeMux already
// routes /health, /metrics, and /prometheus to their own handlers; the
// /health and /metrics handlers pass any non-GET request on to this one.
func (s *Server) handleProxyOrReserved(w http.ResponseWriter, r *http.Request) {
	s.router.proxy.ServeHTTP(w, r)
}

type healthResponse struct {
	Status          string `json:"status"`
	HealthyReplicas int    `json:"healthy_replicas"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleProxyOrReserved(w, r)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          "healthy",
		HealthyReplicas: s.router.discovery.Healthy().count(),
	})
}

type metricsResponse struct {
	RequestCount    uint64         `json:"request_count"`
	Algorithm       string         `json:"algorithm"`
	HealthyReplicas int            `json:"healthy_replicas"`
	Leases          map[string]int `json:"leases"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleProxyOrReserved(w, r)
		return
	}
	writeJSON(w, http.StatusOK, metricsResponse{
		RequestCount:    atomic.LoadUint64(&s.router.proxy.requestCount),
		Algorithm:       string(s.router.cfg.Algorithm),
		HealthyReplicas: s.router.discovery.Healthy().count(),
		Leases:          s.router.leases.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
