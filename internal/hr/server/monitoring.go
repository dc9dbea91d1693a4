// Package server exposes the monitoring HTTP endpoints: Prometheus metrics
// and a database health check.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports service health based on database connectivity.
type HealthChecker struct {
	db     DBPinger
	logger *zap.Logger
}

func NewHealthChecker(db DBPinger, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{db: db, logger: logger}
}

func (h *HealthChecker) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	status := make(map[string]string)
	overallStatus := http.StatusOK

	if err := h.db.Ping(req.Context()); err != nil {
		status["database"] = "unavailable"
		overallStatus = http.StatusServiceUnavailable
		h.logger.Warn("Health check failed: DB ping", zap.Error(err))
	} else {
		status["database"] = "ok"
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(overallStatus)
	if err := json.NewEncoder(writer).Encode(status); err != nil {
		h.logger.Error("Failed to write health check response", zap.Error(err))
	}
}

// StartMonitoring serves /metrics and /healthz until ctx is cancelled.
func StartMonitoring(ctx context.Context, logger *zap.Logger, reg *prometheus.Registry, db DBPinger, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", NewHealthChecker(db, logger))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down monitoring server", zap.Error(err))
		}
	}()

	logger.Info("Monitoring server listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Monitoring server failed", zap.Error(err))
	}
}
