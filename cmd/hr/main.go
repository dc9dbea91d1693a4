package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gartstein/hr/internal/hr/config"
	"github.com/gartstein/hr/internal/hr/db"
	"github.com/gartstein/hr/internal/hr/events"
	"github.com/gartstein/hr/internal/hr/metrics"
	"github.com/gartstein/hr/internal/hr/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// The hr daemon owns the database schema and the operational surface:
// it migrates on start, serves /metrics and /healthz, and tails the
// lifecycle event topic for audit logging. Employee and department writes
// are driven by the embedding application through the controller services.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	logger := initLogger(cfg.Env)
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	repo, err := db.NewRepository(&db.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
		SSLMode:  cfg.Postgres.SSLMode,
	}, appMetrics)
	if err != nil {
		log.Fatal("failed to initialize database: ", err)
	}
	defer repo.Close()

	consumer := events.NewConsumer(cfg.Kafka.Brokers, "hr-audit", cfg.Kafka.Topic, logger)
	consumer.RegisterHandler(func(_ context.Context, event events.Event) error {
		fields := []zap.Field{zap.String("event_type", string(event.Type))}
		if event.Employee != nil {
			fields = append(fields, zap.String("employee_id", event.Employee.ID.String()))
		}
		logger.Info("lifecycle event", fields...)
		return nil
	})
	consumer.Start(ctx)
	defer consumer.Close()

	logger.Info("HR service started. Press Ctrl+C to stop.")
	server.StartMonitoring(ctx, logger, reg, repo, cfg.Monitoring.Port)

	logger.Info("HR service stopped gracefully")
}

// initLogger initializes a Zap logger appropriate for the environment.
func initLogger(env string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if env == "prod" || env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	return logger
}
