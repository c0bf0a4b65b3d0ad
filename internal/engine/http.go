package engine

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/agent"
	"github.com/swarmguard/swarmguard/internal/logging"
)

// Server is the recovery engine's HTTP surface (spec.md §6): POST /alert,
// GET /health, GET /metrics (JSON introspection — the literal wire shape
// spec.md §6 names), plus a Prometheus exposition endpoint mounted at
// /prometheus so it does not collide with the spec's JSON /metrics
// contract (see DESIGN.md).
type Server struct {
	mux    *http.ServeMux
	engine *Engine
	logger *zap.Logger
}

// NewServer builds the engine's HTTP handler.
func NewServer(e *Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{mux: http.NewServeMux(), engine: e, logger: logger}
	s.mux.HandleFunc("/alert", s.handleAlert)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/metrics", s.handleMetrics)
	s.mux.Handle("/prometheus", promhttp.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleAlert implements spec.md §7's top-level recover-and-500 contract:
// "caught at the top of the alert handler; converted to 500 with message;
// engine remains live."
func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic in alert handler", zap.Any("panic", rec))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
	}()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil || len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("empty body"))
		return
	}

	var alert agent.Alert
	if err := json.Unmarshal(body, &alert); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}

	ctx := logging.WithExistingRequestID(r.Context(), r.Header.Get("X-Request-ID"))
	resp := s.engine.HandleAlert(ctx, alert)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.HealthStatus())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.IntrospectionMetrics())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(message string) AlertResponse {
	return AlertResponse{Status: string(StatusError), Message: message}
}
