package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu       sync.Mutex
	err      error
	channels []string
	payloads [][]byte
}

func (f *fakeRemote) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRemote) Subscribe(context.Context, ...string) *redis.PubSub {
	panic("not used when mirroring is disabled")
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishLocal(t *testing.T) {
	bus := NewBus(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsubscribe := bus.Subscribe(ctx)
	defer unsubscribe()

	require.NoError(t, bus.Publish(ctx, Event{Type: TypePredictionCompleted, Data: map[string]float64{"prediction": 1}}))

	evt := receive(t, ch)
	assert.Equal(t, TypePredictionCompleted, evt.Type)
	assert.NotEmpty(t, evt.ID)
	assert.False(t, evt.Timestamp.IsZero())
}

func TestPublishRemote(t *testing.T) {
	remote := &fakeRemote{}
	bus := NewBus(Options{Client: remote, Channel: "preds"})
	ctx := context.Background()

	ch, unsubscribe := bus.Subscribe(ctx)
	defer unsubscribe()

	require.NoError(t, bus.Publish(ctx, Event{Type: TypePredictionFailed}))

	assert.Equal(t, []string{"preds"}, remote.channels)
	assert.Contains(t, string(remote.payloads[0]), `"type":"prediction.failed"`)
	assert.Equal(t, TypePredictionFailed, receive(t, ch).Type)
}

func TestPublishRemoteFailureTripsBreaker(t *testing.T) {
	remote := &fakeRemote{err: errors.New("connection refused")}
	bus := NewBus(Options{Client: remote, BreakerTimeout: time.Hour})
	ctx := context.Background()

	ch, unsubscribe := bus.Subscribe(ctx)
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		err := bus.Publish(ctx, Event{Type: TypePredictionCompleted})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRemoteUnavailable)
		receive(t, ch)
	}

	err := bus.Publish(ctx, Event{Type: TypePredictionCompleted})
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Equal(t, TypePredictionCompleted, receive(t, ch).Type, "local delivery survives relay failures")
}

func TestSubscribeCancel(t *testing.T) {
	bus := NewBus(Options{})
	ctx, cancel := context.WithCancel(context.Background())

	ch, unsubscribe := bus.Subscribe(ctx)
	cancel()
	unsubscribe()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, bus.Publish(context.Background(), Event{Type: TypePredictionCompleted}))
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(Options{})
	ctx := context.Background()
	_, unsubscribe := bus.Subscribe(ctx)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = bus.Publish(ctx, Event{Type: TypePredictionCompleted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
