// Package model implements the linear scoring model served by the prediction API.
package model

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

const (
	// FeatureCount is the exact number of features every prediction requires.
	FeatureCount = 10

	// Version identifies the parameter set compiled into this binary.
	Version = "v1.0.0"

	confidenceFloor = 0.85
	confidenceSpan  = 0.15
	maxBiasDistance = 50.0
)

var (
	defaultWeights = [FeatureCount]float64{0.15, -0.23, 0.87, -0.45, 0.67, 0.34, -0.12, 0.89, -0.56, 0.78}
	defaultBias    = 2.5
)

// ErrInvalidFeatures matches every feature validation failure.
var ErrInvalidFeatures = errors.New("invalid features")

// WrongFeatureCountError reports a feature vector of the wrong length.
type WrongFeatureCountError struct {
	Expected int
	Actual   int
}

func (e *WrongFeatureCountError) Error() string {
	return fmt.Sprintf("expected %d features, got %d", e.Expected, e.Actual)
}

func (e *WrongFeatureCountError) Is(target error) bool { return target == ErrInvalidFeatures }

// NonFiniteValueError reports the first NaN or infinite feature.
type NonFiniteValueError struct {
	Index int
	Value float64
}

func (e *NonFiniteValueError) Error() string {
	return fmt.Sprintf("invalid feature value at index %d: %v", e.Index, e.Value)
}

func (e *NonFiniteValueError) Is(target error) bool { return target == ErrInvalidFeatures }

// Handle holds the immutable model parameters shared by all requests.
type Handle struct {
	weights [FeatureCount]float64
	bias    float64
	version string
}

// New builds the handle from the compiled-in parameters.
func New() *Handle {
	return &Handle{
		weights: defaultWeights,
		bias:    defaultBias,
		version: Version,
	}
}

// Weights returns a copy of the weight vector.
func (h *Handle) Weights() [FeatureCount]float64 { return h.weights }

// Bias returns the intercept term.
func (h *Handle) Bias() float64 { return h.bias }

// Version returns the model version label.
func (h *Handle) Version() string { return h.version }

// Result is the outcome of a single successful prediction.
type Result struct {
	Prediction   float64 `json:"prediction"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version"`
}

// Engine validates inputs and scores them against a Handle.
type Engine struct {
	handle *Handle
	logger *slog.Logger
}

// NewEngine wires an engine to the shared handle.
func NewEngine(handle *Handle, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{handle: handle, logger: logger}
}

// Handle exposes the parameters the engine scores with.
func (e *Engine) Handle() *Handle { return e.handle }

// Predict scores features. It never records metrics.
func (e *Engine) Predict(features []float64) (Result, error) {
	if err := validate(features); err != nil {
		return Result{}, err
	}

	var dot float64
	for i, w := range e.handle.weights {
		dot += w * features[i]
	}
	prediction := dot + e.handle.bias
	confidence := e.handle.confidence(prediction)

	e.logger.Debug("model prediction completed",
		"prediction", prediction,
		"confidence", confidence,
	)

	return Result{
		Prediction:   prediction,
		Confidence:   confidence,
		ModelVersion: e.handle.version,
	}, nil
}

func validate(features []float64) error {
	if len(features) != FeatureCount {
		return &WrongFeatureCountError{Expected: FeatureCount, Actual: len(features)}
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &NonFiniteValueError{Index: i, Value: v}
		}
	}
	return nil
}

// confidence is highest when the prediction sits on the bias and decays
// linearly to the floor at maxBiasDistance.
func (h *Handle) confidence(prediction float64) float64 {
	distance := math.Min(math.Abs(prediction-h.bias)/maxBiasDistance, 1.0)
	return confidenceFloor + (1-distance)*confidenceSpan
}
