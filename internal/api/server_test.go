package api

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/ol-model-service/internal/events"
	"github.com/oremus-labs/ol-model-service/internal/handlers"
	"github.com/oremus-labs/ol-model-service/internal/metrics"
	"github.com/oremus-labs/ol-model-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const knownVector = `{"features":[1.0,2.0,3.0,4.0,5.0,6.0,7.0,8.0,9.0,10.0]}`

func newTestServer(t *testing.T, opts handlers.Options) (*Server, *metrics.Registry) {
	t.Helper()
	handle := model.New()
	registry := metrics.New()
	predictions := metrics.NewPredictionRecorder(registry, handle.Version(), nil)
	requests := metrics.NewRequestRecorder(registry, nil)
	h := handlers.New(model.NewEngine(handle, nil), predictions, registry, opts)
	return NewServer(h, requests, Options{}), registry
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	s.Engine().ServeHTTP(w, req)
	return w
}

func exported(t *testing.T, registry *metrics.Registry) string {
	t.Helper()
	text, err := registry.Export()
	require.NoError(t, err)
	return text
}

func gaugeLine(registry *metrics.Registry, line string) bool {
	text, err := registry.Export()
	return err == nil && strings.Contains(text, "\n"+line+"\n")
}

func TestMetricsEndpointListsAllSeries(t *testing.T) {
	s, _ := newTestServer(t, handlers.Options{})

	w := serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, metrics.ContentType, w.Header().Get("Content-Type"))

	body := w.Body.String()
	for _, name := range []string{
		metrics.HTTPRequestsTotal,
		metrics.HTTPRequestDurationSeconds,
		metrics.PredictionsTotal,
		metrics.PredictionConfidence,
		metrics.ActiveConnections,
		metrics.ServiceUptimeSeconds,
	} {
		assert.Contains(t, body, "# TYPE "+name+" ", name)
	}
	assert.Contains(t, body, `http_requests_total{endpoint="/predict",method="POST",status="200"} 0`)
}

func TestPredictRouteRecordsRequestMetrics(t *testing.T) {
	s, registry := newTestServer(t, handlers.Options{})

	w := serve(s, http.MethodPost, "/predict", knownVector)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(s, http.MethodPost, "/predict", `{"features":[1,2,3]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	text := exported(t, registry)
	assert.Contains(t, text, `http_requests_total{endpoint="/predict",method="POST",status="200"} 1`)
	assert.Contains(t, text, `http_requests_total{endpoint="/predict",method="POST",status="400"} 1`)
	assert.Contains(t, text, `http_request_duration_seconds_count{endpoint="/predict",method="POST"} 2`)
	assert.Contains(t, text, `ml_predictions_total{model_version="v1.0.0",status="success"} 1`)
	assert.Contains(t, text, `ml_predictions_total{model_version="v1.0.0",status="error"} 1`)
}

func TestUnknownRoutesShareOneLabel(t *testing.T) {
	s, registry := newTestServer(t, handlers.Options{})

	for _, path := range []string{"/a", "/b/c", "/predict/extra"} {
		w := serve(s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}

	text := exported(t, registry)
	assert.Contains(t, text, `http_requests_total{endpoint="unmatched",method="GET",status="404"} 3`)
	assert.NotContains(t, text, `endpoint="/a"`)
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, handlers.Options{})

	w := serve(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, handlers.Options{})

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(knownVector))
	req.Header.Set("Origin", "https://example.com")
	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightIsCounted(t *testing.T) {
	s, registry := newTestServer(t, handlers.Options{})

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	text := exported(t, registry)
	assert.Contains(t, text, `http_requests_total{endpoint="unmatched",method="OPTIONS",status="204"} 1`)
	assert.Contains(t, text, `http_request_duration_seconds_count{endpoint="unmatched",method="OPTIONS"} 1`)
}

func TestRecoveredPanicIsCounted(t *testing.T) {
	s, registry := newTestServer(t, handlers.Options{})
	s.route(http.MethodGet, "/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := serve(s, http.MethodGet, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	text := exported(t, registry)
	assert.Contains(t, text, `http_requests_total{endpoint="/boom",method="GET",status="500"} 1`)
	assert.Contains(t, text, `http_requests_total{endpoint="/boom",method="GET",status="200"} 0`)
}

func TestCORSRestrictedOrigins(t *testing.T) {
	engine := gin.New()
	engine.Use(corsMiddleware([]string{"https://allowed.test"}))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://denied.test")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://allowed.test")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "https://allowed.test", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestActiveConnectionsGauge(t *testing.T) {
	s, registry := newTestServer(t, handlers.Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := s.HTTPServer(ln.Addr().String())
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	transport := &http.Transport{}
	client := &http.Client{Transport: transport}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return gaugeLine(registry, "active_connections_total 1")
	}, 2*time.Second, 10*time.Millisecond)

	transport.CloseIdleConnections()

	require.Eventually(t, func() bool {
		return gaugeLine(registry, "active_connections_total 0")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventStream(t *testing.T) {
	bus := events.NewBus(events.Options{})
	s, _ := newTestServer(t, handlers.Options{Events: bus})

	ts := httptest.NewServer(s.Engine())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)

	lines := make(chan string, 64)
	go func() {
		resp, err := ts.Client().Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var got string
	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, events.Event{Type: events.TypePredictionCompleted})
		for {
			select {
			case line := <-lines:
				if strings.HasPrefix(line, "event:") {
					got = line
					return true
				}
			default:
				return false
			}
		}
	}, 3*time.Second, 20*time.Millisecond)

	assert.Contains(t, got, events.TypePredictionCompleted)
}
