package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// PredictionRecorder writes per-prediction outcomes into the registry.
// Recording failures are logged and dropped.
type PredictionRecorder struct {
	registry        *Registry
	fallbackVersion string
	logger          *slog.Logger
}

// NewPredictionRecorder returns a recorder that labels failed predictions
// with fallbackVersion, since a failed call yields no version of its own.
func NewPredictionRecorder(registry *Registry, fallbackVersion string, logger *slog.Logger) *PredictionRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &PredictionRecorder{
		registry:        registry,
		fallbackVersion: fallbackVersion,
		logger:          logger,
	}
	for _, status := range []string{statusSuccess, statusError} {
		r.check(registry.Touch(PredictionsTotal, fallbackVersion, status), PredictionsTotal)
	}
	r.check(registry.Touch(PredictionConfidence, fallbackVersion), PredictionConfidence)
	return r
}

// RecordSuccess counts a successful prediction and observes its confidence.
func (r *PredictionRecorder) RecordSuccess(modelVersion string, confidence float64) {
	r.check(r.registry.IncrementCounter(PredictionsTotal, modelVersion, statusSuccess), PredictionsTotal)
	r.check(r.registry.ObserveHistogram(PredictionConfidence, confidence, modelVersion), PredictionConfidence)
}

// RecordFailure counts a failed prediction under the fallback version.
func (r *PredictionRecorder) RecordFailure() {
	r.check(r.registry.IncrementCounter(PredictionsTotal, r.fallbackVersion, statusError), PredictionsTotal)
}

func (r *PredictionRecorder) check(err error, metric string) {
	if err != nil {
		r.logger.Warn("failed to record prediction metric", "metric", metric, "error", err)
	}
}

// RequestRecorder records HTTP request counts and latencies.
type RequestRecorder struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRequestRecorder returns a recorder for HTTP traffic.
func NewRequestRecorder(registry *Registry, logger *slog.Logger) *RequestRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestRecorder{registry: registry, logger: logger}
}

// Declare pre-creates the series for a route's success path so it is visible
// before traffic.
func (r *RequestRecorder) Declare(method, endpoint string) {
	if err := r.registry.Touch(HTTPRequestsTotal, method, endpoint, strconv.Itoa(http.StatusOK)); err != nil {
		r.logger.Warn("failed to declare request series", "endpoint", endpoint, "error", err)
	}
	if err := r.registry.Touch(HTTPRequestDurationSeconds, method, endpoint); err != nil {
		r.logger.Warn("failed to declare request series", "endpoint", endpoint, "error", err)
	}
}

// Record counts one request and observes its duration.
func (r *RequestRecorder) Record(method, endpoint string, status int, elapsed time.Duration) {
	if err := r.registry.IncrementCounter(HTTPRequestsTotal, method, endpoint, strconv.Itoa(status)); err != nil {
		r.logger.Warn("failed to record request count", "endpoint", endpoint, "error", err)
	}
	if err := r.registry.ObserveHistogram(HTTPRequestDurationSeconds, elapsed.Seconds(), method, endpoint); err != nil {
		r.logger.Warn("failed to record request duration", "endpoint", endpoint, "error", err)
	}
}

// ConnectionDelta moves the active connection gauge.
func (r *RequestRecorder) ConnectionDelta(delta float64) {
	if err := r.registry.AddGauge(ActiveConnections, delta); err != nil {
		r.logger.Warn("failed to update active connections", "error", err)
	}
}
