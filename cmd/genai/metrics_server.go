package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"code-reels/internal/usecase/generate"
)

// HealthResponse represents a simple health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// CircuitHealthResponse reports provider circuit breakers.
type CircuitHealthResponse struct {
	Healthy  bool            `json:"healthy"`
	Circuits []CircuitStatus `json:"circuits"`
}

// CircuitStatus represents the state of a single provider circuit.
type CircuitStatus struct {
	Name                string     `json:"name"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}

// startMetricsServer serves the pipeline's metrics until ctx is canceled.
//
// Endpoints:
//   - GET /metrics - Prometheus metrics from reg
//   - GET /health - liveness, always 200
//   - GET /health/circuits - 503 while any provider circuit is open
//   - GET /snapshot - cache, breaker and task statistics as JSON
//   - POST /circuits/reset - force every provider circuit closed
func startMetricsServer(
	ctx context.Context,
	logger *slog.Logger,
	addr string,
	reg *prometheus.Registry,
	snapshot func() generate.Snapshot,
	resetCircuits func(),
) *http.Server {
	server := &http.Server{
		Addr:         addr,
		Handler:      newMetricsMux(reg, snapshot, resetCircuits),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

func newMetricsMux(reg *prometheus.Registry, snapshot func() generate.Snapshot, resetCircuits func()) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/circuits", circuitHealthHandler(snapshot))
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, snapshot())
	})
	mux.HandleFunc("/circuits/reset", circuitResetHandler(snapshot, resetCircuits))
	return mux
}

// healthHandler handles GET /health requests (liveness probe).
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// circuitHealthHandler returns 503 Service Unavailable while any circuit is open.
// Half-open circuits count as healthy since they admit a probe.
func circuitHealthHandler(snapshot func() generate.Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := snapshot()

		circuits := make([]CircuitStatus, 0, len(snap.Breakers))
		healthy := true
		for _, b := range snap.Breakers {
			circuits = append(circuits, CircuitStatus{
				Name:                b.Name,
				State:               b.StateName,
				ConsecutiveFailures: b.ConsecutiveFailures,
				OpenedAt:            b.OpenedAt,
			})
			if b.State == gobreaker.StateOpen {
				healthy = false
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, CircuitHealthResponse{Healthy: healthy, Circuits: circuits})
	}
}

// circuitResetHandler closes every provider circuit and reports the result.
func circuitResetHandler(snapshot func() generate.Snapshot, resetCircuits func()) http.HandlerFunc {
	health := circuitHealthHandler(snapshot)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, HealthResponse{Status: "method not allowed"})
			return
		}
		resetCircuits()
		health(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
