package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/oremus-labs/ol-model-service/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	args *redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = a
	return redis.NewStringResult("1700000000000-0", f.err)
}

func TestProducerAppend(t *testing.T) {
	client := &fakeStream{}
	p := NewProducer(client, "", 1000)

	id, err := p.Append(context.Background(), store.Prediction{
		ID:           "p-1",
		ModelVersion: "v1.0.0",
		Status:       store.PredictionSucceeded,
		Prediction:   17.43,
	})
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-0", id)

	require.NotNil(t, client.args)
	assert.Equal(t, DefaultStream, client.args.Stream)
	assert.Equal(t, int64(1000), client.args.MaxLen)
	assert.True(t, client.args.Approx)

	values := client.args.Values.(map[string]interface{})
	assert.Equal(t, "p-1", values["id"])
	assert.Equal(t, "success", values["status"])

	var decoded store.Prediction
	require.NoError(t, json.Unmarshal(values["data"].([]byte), &decoded))
	assert.Equal(t, 17.43, decoded.Prediction)
}

func TestProducerUnbounded(t *testing.T) {
	client := &fakeStream{}
	p := NewProducer(client, "custom", 0)

	_, err := p.Append(context.Background(), store.Prediction{ID: "p-2"})
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Stream())
	assert.Zero(t, client.args.MaxLen)
	assert.False(t, client.args.Approx)
}

func TestProducerErrors(t *testing.T) {
	var nilProducer *Producer
	_, err := nilProducer.Append(context.Background(), store.Prediction{})
	assert.Error(t, err)

	client := &fakeStream{err: errors.New("READONLY")}
	_, err = NewProducer(client, "", 0).Append(context.Background(), store.Prediction{})
	assert.EqualError(t, err, "READONLY")
}
