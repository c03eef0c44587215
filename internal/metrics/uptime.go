package metrics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// UptimeInterval is how often the uptime gauge is refreshed.
const UptimeInterval = time.Second

// UptimeSampler keeps service_uptime_seconds current. Only one sampler should
// exist per process; Start is a no-op after the first call.
type UptimeSampler struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	once    sync.Once
	started atomic.Pointer[time.Time]
}

// UptimeOption customizes a sampler.
type UptimeOption func(*UptimeSampler)

// WithUptimeInterval overrides the tick interval.
func WithUptimeInterval(d time.Duration) UptimeOption {
	return func(s *UptimeSampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithUptimeClock replaces time.Now.
func WithUptimeClock(now func() time.Time) UptimeOption {
	return func(s *UptimeSampler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithUptimeLogger sets the logger used for recording failures.
func WithUptimeLogger(logger *slog.Logger) UptimeOption {
	return func(s *UptimeSampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewUptimeSampler creates an idle sampler.
func NewUptimeSampler(registry *Registry, opts ...UptimeOption) *UptimeSampler {
	s := &UptimeSampler{
		registry: registry,
		interval: UptimeInterval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start records the start time, zeroes the gauge and launches the ticker
// goroutine. It runs until ctx is cancelled and reports whether this call
// started the sampler.
func (s *UptimeSampler) Start(ctx context.Context) bool {
	started := false
	s.once.Do(func() {
		started = true
		now := s.now()
		s.started.Store(&now)
		s.set(0)
		go s.run(ctx)
		s.logger.Info("uptime sampler started", "interval", s.interval.String())
	})
	return started
}

func (s *UptimeSampler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("uptime sampler stopped")
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample writes the elapsed seconds since Start and returns them. Before Start
// it returns 0 and leaves the gauge untouched.
func (s *UptimeSampler) Sample() float64 {
	started := s.started.Load()
	if started == nil {
		return 0
	}
	uptime := s.now().Sub(*started).Seconds()
	s.set(uptime)
	return uptime
}

func (s *UptimeSampler) set(v float64) {
	if err := s.registry.SetGauge(ServiceUptimeSeconds, v); err != nil {
		s.logger.Warn("failed to record uptime", "error", err)
	}
}
