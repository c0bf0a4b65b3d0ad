package agent

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the agent's HTTP surface: the metrics endpoint the router's
// metrics cache consumes (spec.md §6 "Agent metrics endpoint"), a health
// check, and the Prometheus exposition endpoint.
type Server struct {
	mux    *http.ServeMux
	agent  *Agent
	logger *zap.Logger
}

// NewServer builds the agent's HTTP handler.
func NewServer(a *Agent, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{mux: http.NewServeMux(), agent: a, logger: logger}
	s.mux.HandleFunc("/metrics/containers", s.handleContainerMetrics)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// containerMetricsResponse mirrors spec.md §6's agent metrics wire format.
type containerMetricsResponse struct {
	Node       string                  `json:"node"`
	Timestamp  int64                   `json:"timestamp"`
	Containers []containerMetricsEntry `json:"containers"`
}

type containerMetricsEntry struct {
	ContainerID    string  `json:"container_id"`
	ContainerName  string  `json:"container_name"`
	ServiceName    string  `json:"service_name"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	NetworkRxMbps  float64 `json:"network_rx_mbps"`
	NetworkTxMbps  float64 `json:"network_tx_mbps"`
	NetworkPercent float64 `json:"network_percent"`
}

func (s *Server) handleContainerMetrics(w http.ResponseWriter, r *http.Request) {
	sample := s.agent.Latest()

	resp := containerMetricsResponse{
		Node:      sample.Node,
		Timestamp: sample.Timestamp.Unix(),
	}
	for _, f := range sample.Facts {
		resp.Containers = append(resp.Containers, containerMetricsEntry{
			ContainerID:    f.ContainerID,
			ContainerName:  f.ContainerName,
			ServiceName:    f.ServiceName,
			CPUPercent:     f.Metrics.CPUPercent,
			MemoryPercent:  f.Metrics.MemoryPercent,
			NetworkRxMbps:  f.Metrics.NetworkRxMbps,
			NetworkTxMbps:  f.Metrics.NetworkTxMbps,
			NetworkPercent: f.Metrics.NetworkPercent,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("encode container metrics response failed", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
