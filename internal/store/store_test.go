package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "predictions.db")
	s, err := Open(dsn, "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestStorePredictions(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordPrediction(ctx, &Prediction{
		ID:           "a",
		RequestID:    "req-1",
		ModelVersion: "v1.0.0",
		Status:       PredictionSucceeded,
		Prediction:   17.43,
		Confidence:   0.95521,
		FeatureCount: 10,
		Features:     []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		CreatedAt:    base,
	}))
	require.NoError(t, s.RecordPrediction(ctx, &Prediction{
		ID:           "b",
		ModelVersion: "v1.0.0",
		Status:       PredictionFailed,
		FeatureCount: 3,
		Error:        "expected 10 features, got 3",
		CreatedAt:    base.Add(time.Minute),
	}))

	got, err := s.ListPredictions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "b", got[0].ID, "newest first")
	assert.Equal(t, PredictionFailed, got[0].Status)
	assert.Equal(t, "expected 10 features, got 3", got[0].Error)
	assert.Empty(t, got[0].RequestID)

	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "req-1", got[1].RequestID)
	assert.Equal(t, 17.43, got[1].Prediction)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got[1].Features)
	assert.True(t, base.Equal(got[1].CreatedAt))

	limited, err := s.ListPredictions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStorePruneBefore(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, age := range []time.Duration{48 * time.Hour, 25 * time.Hour, time.Hour} {
		require.NoError(t, s.RecordPrediction(ctx, &Prediction{
			ID:           string(rune('a' + i)),
			ModelVersion: "v1.0.0",
			Status:       PredictionSucceeded,
			FeatureCount: 10,
			CreatedAt:    now.Add(-age),
		}))
	}

	removed, err := s.PruneBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	left, err := s.ListPredictions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "c", left[0].ID)
}

func TestStoreRejectsMissingID(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	assert.Error(t, s.RecordPrediction(context.Background(), &Prediction{ModelVersion: "v1.0.0"}))
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	_, err := Open("", "sqlite")
	assert.Error(t, err)

	_, err = Open("/tmp/x.db", "bolt")
	assert.ErrorContains(t, err, "unsupported datastore driver")
}

func TestRebind(t *testing.T) {
	t.Parallel()

	pg := &Store{driver: DriverPostgres}
	assert.Equal(t, "DELETE FROM t WHERE a < $1 AND b = $2", pg.rebind("DELETE FROM t WHERE a < ? AND b = ?"))

	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}
