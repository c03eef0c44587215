// Package worker drains prediction outcomes off the request path into the
// audit store and the event bus.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oremus-labs/ol-model-service/internal/events"
	"github.com/oremus-labs/ol-model-service/internal/store"
)

const writeTimeout = 5 * time.Second

type predictionWriter interface {
	RecordPrediction(context.Context, *store.Prediction) error
}

type eventPublisher interface {
	Publish(context.Context, events.Event) error
}

type streamAppender interface {
	Append(context.Context, store.Prediction) (string, error)
}

// Options configure the background worker.
type Options struct {
	Store     predictionWriter
	Events    eventPublisher
	Stream    streamAppender
	Logger    *slog.Logger
	QueueSize int
}

// Runner owns a bounded queue of prediction records.
type Runner struct {
	store  predictionWriter
	events eventPublisher
	stream streamAppender
	logger *slog.Logger
	queue  chan store.Prediction

	dropped atomic.Uint64
}

// New creates a new Runner.
func New(opts Options) *Runner {
	size := opts.QueueSize
	if size <= 0 {
		size = 256
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:  opts.Store,
		events: opts.Events,
		stream: opts.Stream,
		logger: logger.With("component", "audit-worker"),
		queue:  make(chan store.Prediction, size),
	}
}

// Submit enqueues a record without blocking. It returns false and counts a
// drop when the queue is full.
func (r *Runner) Submit(p store.Prediction) bool {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	select {
	case r.queue <- p:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// Dropped reports how many records were discarded because the queue was full.
func (r *Runner) Dropped() uint64 {
	return r.dropped.Load()
}

// Run processes queued records until ctx is cancelled, then drains whatever
// is already queued.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("audit worker started", "queue_size", cap(r.queue))

	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.logger.Info("audit worker shutting down", "dropped", r.Dropped())
			return ctx.Err()
		case p := <-r.queue:
			r.handle(p)
		}
	}
}

func (r *Runner) drain() {
	for {
		select {
		case p := <-r.queue:
			r.handle(p)
		default:
			return
		}
	}
}

func (r *Runner) handle(p store.Prediction) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.RecordPrediction(ctx, &p); err != nil {
			r.logger.Error("failed to persist prediction", "prediction_id", p.ID, "error", err)
		}
	}

	if r.events != nil {
		evtType := events.TypePredictionCompleted
		if p.Status == store.PredictionFailed {
			evtType = events.TypePredictionFailed
		}
		if err := r.events.Publish(ctx, events.Event{Type: evtType, Timestamp: p.CreatedAt, Data: p}); err != nil {
			r.logger.Warn("failed to publish prediction event", "prediction_id", p.ID, "error", err)
		}
	}

	if r.stream != nil {
		if _, err := r.stream.Append(ctx, p); err != nil {
			r.logger.Warn("failed to append prediction to stream", "prediction_id", p.ID, "error", err)
		}
	}
}
