// Package retention prunes old prediction audit records on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type pruner interface {
	PruneBefore(context.Context, time.Time) (int64, error)
}

// Config controls the retention window and schedule.
type Config struct {
	// MaxAge is how long records are kept.
	MaxAge time.Duration
	// Schedule is a standard cron expression or descriptor such as "@hourly".
	Schedule string
}

// Scheduler runs the pruner on Config.Schedule.
type Scheduler struct {
	store  pruner
	config Config
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new retention scheduler.
func NewScheduler(store pruner, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		config: cfg,
		cron:   cron.New(),
		logger: logger.With("component", "retention"),
		now:    time.Now,
	}
}

// Start validates the schedule and begins pruning. A zero MaxAge or empty
// schedule disables pruning. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.config.Schedule == "" || s.config.MaxAge <= 0 {
		s.logger.Info("retention disabled")
		return nil
	}
	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}
	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("retention prune failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("retention scheduler started", "schedule", s.config.Schedule, "max_age", s.config.MaxAge.String())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}

// RunOnce deletes every record older than MaxAge.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.MaxAge)
	removed, err := s.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("pruned prediction records", "removed", removed, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return removed, nil
}
