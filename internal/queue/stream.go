// Package queue appends prediction records to a Redis Stream so downstream
// consumers can replay them with consumer groups.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oremus-labs/ol-model-service/internal/store"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is used when no stream name is configured.
const DefaultStream = "model-service:predictions"

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Producer publishes prediction records onto a capped Redis Stream.
type Producer struct {
	client streamClient
	stream string
	maxLen int64
}

// NewProducer constructs a producer for the provided stream. maxLen caps the
// stream approximately; zero leaves it unbounded.
func NewProducer(client streamClient, stream string, maxLen int64) *Producer {
	if stream == "" {
		stream = DefaultStream
	}
	return &Producer{client: client, stream: stream, maxLen: maxLen}
}

// Stream returns the stream key.
func (p *Producer) Stream() string {
	return p.stream
}

// Append pushes one record and returns the entry id Redis assigned.
func (p *Producer) Append(ctx context.Context, rec store.Prediction) (string, error) {
	if p == nil || p.client == nil {
		return "", fmt.Errorf("queue producer not configured")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		ID:     "*",
		Values: map[string]interface{}{
			"id":     rec.ID,
			"status": string(rec.Status),
			"data":   data,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	return p.client.XAdd(ctx, args).Result()
}
