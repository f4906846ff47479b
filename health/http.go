package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// StatusSource produces the consolidated status of every component across
// all execution contexts.
type StatusSource interface {
	AggregatedStatus(ctx context.Context) map[string]AggregatedStatus
}

// LivenessHandler returns an HTTP handler for liveness checks.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler reports 503 while any local component is in error or
// still loading.
func ReadinessHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts := registry.StatusSummary()

		w.Header().Set("Content-Type", "text/plain")
		switch {
		case counts[LevelError] > 0:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("ERROR"))
		case counts[LevelLoading] > 0:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("LOADING"))
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		}
	}
}

// StatusResponse is the JSON body of the status endpoint.
type StatusResponse struct {
	Status     Level                       `json:"status"`
	Timestamp  string                      `json:"timestamp"`
	Components map[string]AggregatedStatus `json:"components"`
}

// StatusHandler serves the aggregated status of every component.
func StatusHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := src.AggregatedStatus(r.Context())

		overall := LevelHealthy
		for _, c := range components {
			overall = higher(overall, c.Status)
		}

		writeJSON(w, statusCode(overall), StatusResponse{
			Status:     overall,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Components: components,
		})
	}
}

// ComponentHandler serves the roll-up of the {component} URL parameter.
func ComponentHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "component")
		if name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "component name is required"})
			return
		}

		group := RollUp(name, src.AggregatedStatus(r.Context()))
		writeJSON(w, statusCode(group.Status), group)
	}
}

// RegisterRoutes mounts the health endpoints on r.
func RegisterRoutes(r chi.Router, registry *Registry, src StatusSource) {
	r.Get("/healthz", LivenessHandler())
	r.Get("/readyz", ReadinessHandler(registry))
	r.Get("/status", StatusHandler(src))
	r.Get("/status/{component}", ComponentHandler(src))
}

func statusCode(level Level) int {
	if level == LevelError {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
