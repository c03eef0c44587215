// Package events fans prediction events out to local subscribers and,
// optionally, a Redis pub/sub channel.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Event types emitted by the prediction pipeline.
const (
	TypePredictionCompleted = "prediction.completed"
	TypePredictionFailed    = "prediction.failed"
)

// ErrRemoteUnavailable is returned while the Redis circuit is open.
var ErrRemoteUnavailable = errors.New("event relay unavailable")

// Event represents a domain event emitted by the service.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// RemoteClient is the subset of the Redis client the bus needs.
type RemoteClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Bus multiplexes events to connected clients (local + Redis backed).
type Bus struct {
	client  RemoteClient
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	ch      string
	mirror  bool

	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// Options configure the bus.
type Options struct {
	Client  RemoteClient
	Logger  *slog.Logger
	Channel string

	// Mirror subscribes to the Redis channel and delivers local events from
	// it, so subscribers on every replica see the same stream.
	Mirror bool

	// BreakerTimeout is how long the relay stays open after tripping.
	BreakerTimeout time.Duration
}

// NewBus creates a new event bus.
func NewBus(opts Options) *Bus {
	channel := opts.Channel
	if channel == "" {
		channel = "model-service-events"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	bus := &Bus{
		client:      opts.Client,
		logger:      logger.With("component", "events"),
		ch:          channel,
		mirror:      opts.Mirror && opts.Client != nil,
		subscribers: make(map[chan Event]struct{}),
	}
	bus.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-events",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			bus.logger.Warn("event relay circuit changed state", "from", from.String(), "to", to.String())
		},
	})
	return bus
}

// Start begins mirroring the Redis channel when enabled. It returns
// immediately; mirroring stops when ctx is cancelled.
func (b *Bus) Start(ctx context.Context) {
	if b.mirror {
		go b.observeRedis(ctx)
	}
}

// Publish broadcasts an event to all subscribers and Redis.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	var remoteErr error
	if b.client != nil {
		remoteErr = b.publishRemote(ctx, evt)
	}

	if !b.mirror || remoteErr != nil {
		b.broadcast(evt)
	}
	return remoteErr
}

func (b *Bus) publishRemote(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = b.breaker.Execute(func() (interface{}, error) {
		return nil, b.client.Publish(ctx, b.ch, payload).Err()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe registers a subscriber and returns a channel plus a cancel func.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			b.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}

func (b *Bus) broadcast(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("dropping event for slow subscriber", "event_id", evt.ID)
		}
	}
}

func (b *Bus) observeRedis(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.ch)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("redis subscriber error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			b.logger.Warn("invalid event payload", "error", err)
			continue
		}
		b.broadcast(evt)
	}
}
