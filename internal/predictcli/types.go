package predictcli

import (
	"encoding/json"
	"time"
)

// PredictionResult mirrors the /predict response body.
type PredictionResult struct {
	Prediction   float64 `json:"prediction"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version"`
}

// Health mirrors the /health response body.
type Health struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// PredictionRecord mirrors one audit record from /predictions.
type PredictionRecord struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"requestId"`
	ModelVersion string    `json:"modelVersion"`
	Status       string    `json:"status"`
	Prediction   float64   `json:"prediction"`
	Confidence   float64   `json:"confidence"`
	FeatureCount int       `json:"featureCount"`
	Error        string    `json:"error"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EventEnvelope mirrors the SSE payload emitted by /events.
type EventEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
