package daemon

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ashgrove-systems/godagent-memory/internal/observability"
)

// NewSidecarRouter builds the optional HTTP surface alongside the Unix
// socket: /metrics (Prometheus) and /healthz, routed with chi the same way
// the teacher's cmd/server/main.go routes its API, minus auth — this
// sidecar carries no authenticated surface, only operational endpoints.
func NewSidecarRouter(s *Server, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.healthzHandler)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}
	return r
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := "ok"
	code := http.StatusOK
	if s.isShuttingDown() {
		status = "shutting_down"
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":             status,
		"active_connections": atomic.LoadInt32(&s.activeConns),
		"uptime_ms":          time.Since(startedAt).Milliseconds(),
	})
}
