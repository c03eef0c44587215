// Package main is the entry point for the model service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oremus-labs/ol-model-service/config"
	"github.com/oremus-labs/ol-model-service/internal/api"
	"github.com/oremus-labs/ol-model-service/internal/handlers"
	"github.com/oremus-labs/ol-model-service/internal/logutil"
	"github.com/oremus-labs/ol-model-service/internal/metrics"
	"github.com/oremus-labs/ol-model-service/internal/model"
	"github.com/oremus-labs/ol-model-service/internal/openapi"
)

func main() {
	cfg := config.Load()
	logger := logutil.New(logutil.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	version, err := openapi.APIVersion()
	if err != nil {
		logutil.Error(logger, "failed to read API version", err, nil)
		os.Exit(1)
	}
	logutil.Info(logger, "starting model service", map[string]interface{}{
		"service":      cfg.ServiceName,
		"version":      version,
		"port":         cfg.ServerPort,
		"audit_driver": cfg.AuditDriver,
		"redis":        cfg.RedisAddr != "",
	})

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	registry := metrics.New()

	// The model is loaded once and shared read-only by every request.
	handle := model.New()
	engine := model.NewEngine(handle, logger.With("component", "model"))
	logger.Info("model loaded", "model_version", handle.Version(), "features", model.FeatureCount)

	predictions := metrics.NewPredictionRecorder(registry, handle.Version(), logger)
	requests := metrics.NewRequestRecorder(registry, logger)

	uptime := metrics.NewUptimeSampler(registry, metrics.WithUptimeLogger(logger))
	uptime.Start(rootCtx)

	pipe, err := startPipeline(rootCtx, cfg, logger)
	if err != nil {
		logutil.Error(logger, "failed to start prediction pipeline", err, nil)
		os.Exit(1)
	}

	opts := handlers.Options{
		ServiceName:  cfg.ServiceName,
		Version:      version,
		HistoryLimit: cfg.AuditListLimit,
		Logger:       logger,
		ModelVersion: handle.Version(),
		Audit:        pipe.runner,
		Events:       pipe.bus,
	}
	if pipe.store != nil {
		opts.History = pipe.store
	}
	h := handlers.New(engine, predictions, registry, opts)

	server := api.NewServer(h, requests, api.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})
	srv, serveErr := server.Start(":" + cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErr:
		logutil.Error(logger, "http server failed", err, nil)
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logutil.Error(logger, "server forced to shutdown", err, nil)
	}

	rootCancel()
	pipe.close()

	logger.Info("server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
