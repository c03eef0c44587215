// Package handlers provides HTTP request handlers for the model service API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/ol-model-service/internal/events"
	"github.com/oremus-labs/ol-model-service/internal/metrics"
	"github.com/oremus-labs/ol-model-service/internal/model"
	"github.com/oremus-labs/ol-model-service/internal/openapi"
	"github.com/oremus-labs/ol-model-service/internal/store"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "requestID"

const invalidInputMessage = "invalid prediction input"

// DefaultMaxBodyBytes caps prediction request bodies when Options leaves the
// limit unset.
const DefaultMaxBodyBytes int64 = 2 << 20

type predictor interface {
	Predict([]float64) (model.Result, error)
}

type predictionRecorder interface {
	RecordSuccess(modelVersion string, confidence float64)
	RecordFailure()
}

type metricsExporter interface {
	Export() (string, error)
}

type auditQueue interface {
	Submit(store.Prediction) bool
}

type predictionHistory interface {
	ListPredictions(context.Context, int) ([]store.Prediction, error)
}

type eventSource interface {
	Subscribe(context.Context) (<-chan events.Event, func())
}

// Options configures handler runtime behavior and optional collaborators.
type Options struct {
	ServiceName  string
	Version      string
	HistoryLimit int
	Logger       *slog.Logger

	// ModelVersion labels audit records for requests that failed before the
	// model produced a result. It should match the version of the loaded model.
	ModelVersion string
	MaxBodyBytes int64

	Audit   auditQueue
	History predictionHistory
	Events  eventSource
}

// Handler encapsulates dependencies for HTTP handlers.
type Handler struct {
	engine   predictor
	recorder predictionRecorder
	exporter metricsExporter
	logger   *slog.Logger
	opts     Options
}

// New creates a new Handler instance.
func New(engine predictor, recorder predictionRecorder, exporter metricsExporter, opts Options) *Handler {
	if opts.ServiceName == "" {
		opts.ServiceName = "ai-model-service"
	}
	if opts.Version == "" {
		if v, err := openapi.APIVersion(); err == nil {
			opts.Version = v
		}
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	if opts.ModelVersion == "" {
		opts.ModelVersion = model.Version
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:   engine,
		recorder: recorder,
		exporter: exporter,
		logger:   logger,
		opts:     opts,
	}
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

// Health returns the health status of the service.
func (h *Handler) Health(c *gin.Context) {
	h.logger.Debug("health check requested")
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   h.opts.ServiceName,
		"version":   h.opts.Version,
		"timestamp": time.Now().UTC(),
	})
}

// Predict scores the submitted feature vector.
func (h *Handler) Predict(c *gin.Context) {
	requestID := c.GetString(RequestIDKey)
	logger := h.logger.With("request_id", requestID)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("prediction body exceeds limit", "limit", tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		logger.Warn("failed to read prediction body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if !json.Valid(body) {
		logger.Warn("prediction body is not valid JSON", "bytes", len(body))
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}
	if err := validateShape(body); err != nil {
		logger.Warn("prediction body has the wrong shape", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "features must be an array of numbers"})
		return
	}

	var req predictRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Warn("failed to decode prediction body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidInputMessage})
		return
	}

	logger.Info("prediction request received", "feature_count", len(req.Features))

	result, err := h.engine.Predict(req.Features)
	if err != nil {
		h.recorder.RecordFailure()
		h.audit(store.Prediction{
			RequestID:    requestID,
			Status:       store.PredictionFailed,
			FeatureCount: len(req.Features),
			Error:        err.Error(),
		})
		fields := []any{"error", err}
		var countErr *model.WrongFeatureCountError
		var valueErr *model.NonFiniteValueError
		switch {
		case errors.As(err, &countErr):
			fields = append(fields, "expected", countErr.Expected, "actual", countErr.Actual)
		case errors.As(err, &valueErr):
			fields = append(fields, "index", valueErr.Index)
		}
		logger.Warn("prediction failed", fields...)
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidInputMessage})
		return
	}

	h.recorder.RecordSuccess(result.ModelVersion, result.Confidence)
	h.audit(store.Prediction{
		RequestID:    requestID,
		ModelVersion: result.ModelVersion,
		Status:       store.PredictionSucceeded,
		Prediction:   result.Prediction,
		Confidence:   result.Confidence,
		FeatureCount: len(req.Features),
		Features:     req.Features,
	})

	logger.Info("prediction completed successfully",
		"prediction", result.Prediction,
		"confidence", result.Confidence,
	)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) audit(p store.Prediction) {
	if h.opts.Audit == nil {
		return
	}
	if p.ModelVersion == "" {
		p.ModelVersion = h.opts.ModelVersion
	}
	if !h.opts.Audit.Submit(p) {
		h.logger.Warn("audit queue full, dropping prediction record", "request_id", p.RequestID)
	}
}

// Metrics serves the registry in the Prometheus text format.
func (h *Handler) Metrics(c *gin.Context) {
	text, err := h.exporter.Export()
	if err != nil {
		h.logger.Error("failed to encode metrics", "error", err)
		c.String(http.StatusInternalServerError, "failed to encode metrics")
		return
	}
	c.Data(http.StatusOK, metrics.ContentType, []byte(text))
}

// ListPredictions returns the newest audit records.
func (h *Handler) ListPredictions(c *gin.Context) {
	if h.opts.History == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "prediction audit is disabled"})
		return
	}

	limit := h.opts.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	records, err := h.opts.History.ListPredictions(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list predictions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list predictions"})
		return
	}
	if records == nil {
		records = []store.Prediction{}
	}
	c.JSON(http.StatusOK, gin.H{"predictions": records})
}

// StreamEvents relays prediction events as server-sent events until the
// client disconnects.
func (h *Handler) StreamEvents(c *gin.Context) {
	if h.opts.Events == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "event stream is disabled"})
		return
	}

	ch, cancel := h.opts.Events.Subscribe(c.Request.Context())
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		evt, ok := <-ch
		if !ok {
			return false
		}
		c.SSEvent(evt.Type, evt)
		return true
	})
}

// OpenAPISpec serves the API document, as YAML when ?format=yaml.
func (h *Handler) OpenAPISpec(c *gin.Context) {
	if strings.EqualFold(c.Query("format"), "yaml") {
		c.Data(http.StatusOK, "application/yaml", openapi.YAML())
		return
	}
	doc, err := openapi.JSON()
	if err != nil {
		h.logger.Error("failed to render OpenAPI document", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render OpenAPI document"})
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}
