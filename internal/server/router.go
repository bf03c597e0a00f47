package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/formrelay-systems/formrelay/internal/handlers"
	"github.com/formrelay-systems/formrelay/internal/middleware"
)

// NewRouter constructs a ServeMux with the relay API routes registered.
func NewRouter(h *handlers.SubmitHandler) http.Handler {
	mux := http.NewServeMux()

	// Form submission endpoints
	mux.HandleFunc("POST /api/forms", h.HandleForm)
	mux.HandleFunc("POST /api/forms/{form_type}", h.HandleForm)
	mux.HandleFunc("POST /api/ingest", h.HandleIngest)
	mux.HandleFunc("GET /api/forms/status/{submission_id}", h.HandleStatus)

	// Health and introspection
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /stats", h.HandleStats)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(middleware.Recover(mux))
}
