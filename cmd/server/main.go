// Hall Monitor runs a pluggable, pipeline-driven service-availability
// monitoring engine: create monitors over HTTP, it schedules and executes
// their stage pipelines, and serves results over a REST API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/1broseidon/hallmonitor/internal/api"
	"github.com/1broseidon/hallmonitor/internal/config"
	"github.com/1broseidon/hallmonitor/internal/logging"
	"github.com/1broseidon/hallmonitor/internal/metrics"
	"github.com/1broseidon/hallmonitor/internal/pipeline"
	"github.com/1broseidon/hallmonitor/internal/scheduler"
	"github.com/1broseidon/hallmonitor/internal/storage"
)

const defaultWorkerCount = 32

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	workers := flag.Int("workers", defaultWorkerCount, "Scheduler worker pool size")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := logging.InitLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Fields: cfg.Logging.Fields,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	logger.ConfigEvent(logging.EventConfigReload, "configuration loaded", map[string]interface{}{
		"storage_backend": cfg.Storage.Backend,
		"server_port":     cfg.Server.Port,
	})

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	store, err := storage.NewStore(&cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize storage")
	}

	executor := pipeline.NewExecutor(store, logger, m)
	sched := scheduler.NewScheduler(store, executor, logger, m, *workers)

	server := api.NewServer(cfg, logger, m, store, executor, sched, registry)

	if err := sched.Start(context.Background()); err != nil {
		logger.WithError(err).Fatal("failed to start scheduler")
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("failed to start server")
		}
	}()

	logger.Info("Hall Monitor started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down Hall Monitor")

	if err := sched.Stop(); err != nil {
		logger.WithError(err).Error("failed to stop scheduler gracefully")
	}
	if err := server.Stop(); err != nil {
		logger.WithError(err).Error("failed to shut down server gracefully")
	}
	if err := store.Close(); err != nil {
		logger.WithError(err).Error("failed to close storage")
	}

	logger.Info("Hall Monitor stopped")
}
