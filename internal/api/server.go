package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/ol-model-service/internal/handlers"
	"github.com/oremus-labs/ol-model-service/internal/metrics"
)

// Options configures the HTTP server wiring.
type Options struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server wraps the Gin engine and associated configuration.
type Server struct {
	engine   *gin.Engine
	requests *metrics.RequestRecorder
	logger   *slog.Logger
}

// NewServer constructs a Server with all HTTP routes configured.
func NewServer(handler *handlers.Handler, requests *metrics.RequestRecorder, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	engine := gin.New()
	// Metrics and logging wrap recovery and CORS so recovered panics and
	// aborted preflights are still counted.
	engine.Use(
		requestIDMiddleware(),
		metricsMiddleware(requests),
		requestLogger(logger),
		gin.Recovery(),
		corsMiddleware(origins),
	)

	s := &Server{engine: engine, requests: requests, logger: logger}

	s.route(http.MethodGet, "/health", handler.Health)
	s.route(http.MethodPost, "/predict", handler.Predict)
	s.route(http.MethodGet, "/metrics", handler.Metrics)
	s.route(http.MethodGet, "/openapi", handler.OpenAPISpec)
	s.route(http.MethodGet, "/predictions", handler.ListPredictions)
	s.route(http.MethodGet, "/events", handler.StreamEvents)

	return s
}

func (s *Server) route(method, path string, h gin.HandlerFunc) {
	s.engine.Handle(method, path, h)
	s.requests.Declare(method, path)
}

// Engine exposes the underlying Gin engine for advanced use (testing, etc.).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// HTTPServer builds the http.Server that serves the engine and tracks open
// connections on the active connection gauge.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     s.engine,
		ReadTimeout: 15 * time.Second,
		// No write timeout: /events responses stay open for the life of the client.
		IdleTimeout: 60 * time.Second,
		ConnState:   s.trackConn,
	}
}

func (s *Server) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.requests.ConnectionDelta(1)
	case http.StateHijacked, http.StateClosed:
		s.requests.ConnectionDelta(-1)
	}
}

// Start launches the HTTP server on the provided address. Listener failures
// other than a clean shutdown are delivered on the returned channel.
func (s *Server) Start(addr string) (*http.Server, <-chan error) {
	srv := s.HTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return srv, errCh
}
