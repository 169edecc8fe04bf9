package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness, readiness and metrics over HTTP.
type HealthHandler struct {
	service string
	checks  map[string]Pinger
	metrics http.Handler
	logger  *slog.Logger
}

// NewHealthHandler creates the handler. checks are probed on every readiness call; a nil
// metrics handler leaves /metrics unmounted.
func NewHealthHandler(service string, checks map[string]Pinger, metrics http.Handler, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{service: service, checks: checks, metrics: metrics, logger: logger}
}

// RegisterRoutes attaches the routes to the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.liveness)
	mux.HandleFunc("GET /readyz", h.readiness)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": h.service,
	})
}

func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	code, state := http.StatusOK, "ready"
	if !ready {
		code, state = http.StatusServiceUnavailable, "not_ready"
	}
	writeJSON(w, code, map[string]any{
		"status":  state,
		"service": h.service,
		"checks":  results,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}
