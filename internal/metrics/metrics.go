// Package metrics owns the service's Prometheus registry and the recorders
// that write into it.
package metrics

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

// Metric names exposed on /metrics.
const (
	HTTPRequestsTotal          = "http_requests_total"
	HTTPRequestDurationSeconds = "http_request_duration_seconds"
	PredictionsTotal           = "ml_predictions_total"
	PredictionConfidence       = "ml_prediction_confidence"
	ActiveConnections          = "active_connections_total"
	ServiceUptimeSeconds       = "service_uptime_seconds"
)

// ContentType is the exposition format returned by Export.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var (
	requestDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}
	confidenceBuckets      = []float64{0.85, 0.87, 0.89, 0.91, 0.93, 0.95, 0.97, 0.99, 1.0}
)

// ErrUnknownMetric is returned when a name was never declared on the registry.
var ErrUnknownMetric = errors.New("unknown metric")

// Registry declares every metric once and serializes them for scrapes.
// The name lookups are fixed after New, so concurrent use needs no locking
// beyond what client_golang does per metric.
type Registry struct {
	reg *prometheus.Registry

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]prometheus.Gauge
}

// New creates a registry with the service metrics plus Go runtime and
// process collectors.
func New() *Registry {
	r := &Registry{
		reg:        prometheus.NewRegistry(),
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
		gauges:     map[string]prometheus.Gauge{},
	}

	r.counters[HTTPRequestsTotal] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: HTTPRequestsTotal,
		Help: "Total number of HTTP requests processed",
	}, []string{"method", "endpoint", "status"})

	r.histograms[HTTPRequestDurationSeconds] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    HTTPRequestDurationSeconds,
		Help:    "HTTP request latency in seconds",
		Buckets: requestDurationBuckets,
	}, []string{"method", "endpoint"})

	r.counters[PredictionsTotal] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: PredictionsTotal,
		Help: "Total number of ML predictions made",
	}, []string{"model_version", "status"})

	r.histograms[PredictionConfidence] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    PredictionConfidence,
		Help:    "Distribution of ML prediction confidence scores",
		Buckets: confidenceBuckets,
	}, []string{"model_version"})

	r.gauges[ActiveConnections] = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ActiveConnections,
		Help: "Number of active connections",
	})

	r.gauges[ServiceUptimeSeconds] = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ServiceUptimeSeconds,
		Help: "Service uptime in seconds since start",
	})

	for _, c := range r.counters {
		r.reg.MustRegister(c)
	}
	for _, h := range r.histograms {
		r.reg.MustRegister(h)
	}
	for _, g := range r.gauges {
		r.reg.MustRegister(g)
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// IncrementCounter adds one to the counter child selected by labelValues.
func (r *Registry) IncrementCounter(name string, labelValues ...string) error {
	vec, ok := r.counters[name]
	if !ok {
		return fmt.Errorf("%w: counter %q", ErrUnknownMetric, name)
	}
	c, err := vec.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return fmt.Errorf("counter %s: %w", name, err)
	}
	c.Inc()
	return nil
}

// ObserveHistogram records value on the histogram child selected by labelValues.
func (r *Registry) ObserveHistogram(name string, value float64, labelValues ...string) error {
	vec, ok := r.histograms[name]
	if !ok {
		return fmt.Errorf("%w: histogram %q", ErrUnknownMetric, name)
	}
	h, err := vec.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return fmt.Errorf("histogram %s: %w", name, err)
	}
	h.Observe(value)
	return nil
}

// SetGauge replaces the gauge value.
func (r *Registry) SetGauge(name string, value float64) error {
	g, ok := r.gauges[name]
	if !ok {
		return fmt.Errorf("%w: gauge %q", ErrUnknownMetric, name)
	}
	g.Set(value)
	return nil
}

// AddGauge moves the gauge by delta, which may be negative.
func (r *Registry) AddGauge(name string, delta float64) error {
	g, ok := r.gauges[name]
	if !ok {
		return fmt.Errorf("%w: gauge %q", ErrUnknownMetric, name)
	}
	g.Add(delta)
	return nil
}

// Touch creates the labelled child of a counter or histogram without
// recording anything, so the series is exported before its first event.
func (r *Registry) Touch(name string, labelValues ...string) error {
	if vec, ok := r.counters[name]; ok {
		_, err := vec.GetMetricWithLabelValues(labelValues...)
		return err
	}
	if vec, ok := r.histograms[name]; ok {
		_, err := vec.GetMetricWithLabelValues(labelValues...)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownMetric, name)
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Export renders every registered family in the text exposition format,
// sorted by metric name.
func (r *Registry) Export() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}
