package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/oremus-labs/ol-model-service/config"
	"github.com/oremus-labs/ol-model-service/internal/events"
	"github.com/oremus-labs/ol-model-service/internal/queue"
	"github.com/oremus-labs/ol-model-service/internal/redisx"
	"github.com/oremus-labs/ol-model-service/internal/retention"
	"github.com/oremus-labs/ol-model-service/internal/store"
	"github.com/oremus-labs/ol-model-service/internal/worker"
	"github.com/redis/go-redis/v9"
)

// pipeline holds the components behind the prediction audit trail. The store
// and redis client are nil when their configuration is absent.
type pipeline struct {
	store     *store.Store
	redis     redis.UniversalClient
	bus       *events.Bus
	runner    *worker.Runner
	retention *retention.Scheduler

	wg     sync.WaitGroup
	logger *slog.Logger
}

func startPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	p := &pipeline{logger: logger}

	if cfg.AuditEnabled() {
		st, err := store.Open(cfg.AuditDSN, cfg.AuditDriver)
		if err != nil {
			return nil, err
		}
		p.store = st
		logger.Info("prediction audit enabled", "driver", st.Driver())

		p.retention = retention.NewScheduler(st, retention.Config{
			MaxAge:   cfg.AuditRetention,
			Schedule: cfg.AuditPruneSchedule,
		}, logger)
		if err := p.retention.Start(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	client, err := redisx.NewClient(ctx, redisx.Config{
		Addr:        cfg.RedisAddr,
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		TLSEnabled:  cfg.RedisTLSEnabled,
		TLSInsecure: cfg.RedisTLSInsecure,
	})
	if err != nil {
		// Events still reach local subscribers without Redis.
		logger.Warn("redis unavailable, events stay local", "addr", cfg.RedisAddr, "error", err)
	}
	p.redis = client

	busOpts := events.Options{Logger: logger, Channel: cfg.EventsChannel}
	if client != nil {
		busOpts.Client = client
		busOpts.Mirror = true
	}
	p.bus = events.NewBus(busOpts)
	p.bus.Start(ctx)

	runnerOpts := worker.Options{
		Events:    p.bus,
		Logger:    logger,
		QueueSize: cfg.AuditQueueSize,
	}
	if p.store != nil {
		runnerOpts.Store = p.store
	}
	if client != nil && cfg.AuditStream != "" {
		producer := queue.NewProducer(client, cfg.AuditStream, int64(cfg.AuditStreamMaxLen))
		runnerOpts.Stream = producer
		logger.Info("audit stream enabled", "stream", producer.Stream())
	}
	p.runner = worker.New(runnerOpts)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("audit worker stopped", "error", err)
		}
	}()

	return p, nil
}

// close waits for the worker to drain and releases connections. The caller
// cancels the pipeline context first.
func (p *pipeline) close() {
	p.wg.Wait()
	if p.retention != nil {
		p.retention.Stop()
	}
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			p.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("failed to close audit store", "error", err)
		}
	}
}
