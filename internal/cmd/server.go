package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/sschnei8/predictionMarketExploro/internal/config"
	"github.com/sschnei8/predictionMarketExploro/internal/metrics"
	"github.com/sschnei8/predictionMarketExploro/internal/version"
)

// healthCheck reports on one dependency; nil means healthy.
type healthCheck func(ctx context.Context) error

// phaseTracker is what /health reports about the runs in progress.
type phaseTracker struct {
	mu     sync.Mutex
	phases map[string]string // dataset -> phase
}

func newPhaseTracker() *phaseTracker {
	return &phaseTracker{phases: make(map[string]string)}
}

func (s *phaseTracker) set(dataset, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[dataset] = phase
}

func (s *phaseTracker) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.phases)
}

// createHealthHandler serves /health and the metrics endpoint.
func createHealthHandler(cfg config.MetricsConfig, status *phaseTracker, checks map[string]healthCheck) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string            `json:"status"`
			Version    string            `json:"version"`
			Runs       map[string]string `json:"runs,omitempty"`
			Components map[string]any    `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Version,
			Components: make(map[string]any),
		}
		if status != nil {
			health.Runs = status.snapshot()
		}

		for name, check := range checks {
			if err := check(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components[name] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
				continue
			}
			health.Components[name] = "connected"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}

// startHealthServer serves h on the metrics port until shutdown is called.
func startHealthServer(cfg config.MetricsConfig, h http.Handler, logger *slog.Logger) (shutdown func()) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Port, "metrics_path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
