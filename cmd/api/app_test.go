package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/usersync/internal/config"
	"github.com/formbricks/usersync/internal/observability"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		LogLevel:            "info",
		WebhookSecret:       "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw",
		ClerkAPIURL:         "http://127.0.0.1:1",
		MaxRequestBodyBytes: 64,
		ShutdownTimeout:     time.Second,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = shutdownObservability(context.Background(), app.tracerProvider, app.meterProvider)
	})

	return app
}

func serve(app *App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(w, req)

	return w
}

func TestNewApp_Routes(t *testing.T) {
	app := newTestApp(t, testConfig())

	t.Run("health", func(t *testing.T) {
		w := serve(app, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("ready without a database", func(t *testing.T) {
		w := serve(app, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("webhook without signature headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(`{"type":"user.created"}`))
		w := serve(app, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("webhook body over the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(strings.Repeat("x", 65)))
		w := serve(app, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		w := serve(app, httptest.NewRequest(http.MethodGet, "/webhooks/clerk", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("metrics not served when disabled", func(t *testing.T) {
		w := serve(app, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNewApp_LeavesDefaultLoggerAlone(t *testing.T) {
	before := slog.Default().Handler()

	newTestApp(t, testConfig())
	newTestApp(t, testConfig())

	assert.Same(t, before, slog.Default().Handler())
}

func TestNewApp_ServesHealthWithoutBlocking(t *testing.T) {
	app := newTestApp(t, testConfig())

	done := make(chan int, 1)

	go func() {
		done <- serve(app, httptest.NewRequest(http.MethodGet, "/health", nil)).Code
	}()

	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(3 * time.Second):
		t.Fatal("GET /health did not return")
	}
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(newLogHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	require.IsType(t, &observability.TraceContextHandler{}, logger.Handler())

	ctx := context.WithValue(context.Background(), observability.RequestIDKey, "req-123")
	logger.InfoContext(ctx, "hello")
	logger.DebugContext(ctx, "dropped")

	assert.Contains(t, buf.String(), "request_id=req-123")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestNewApp_MetricsEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = true

	app := newTestApp(t, cfg)
	require.NotNil(t, app.meterProvider)

	serve(app, httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(`{}`)))

	w := serve(app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "usersync_webhook_signature_failures_total")
	assert.Contains(t, string(body), "usersync_http_requests_total")
}

func TestNewApp_MalformedSecret(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookSecret = "whsec_not base64!"

	app := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(`{}`))
	w := serve(app, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNewApp_UnsupportedTracesExporter(t *testing.T) {
	cfg := testConfig()
	cfg.OtelTracesExporter = "zipkin"

	_, err := NewApp(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestApp_RunAndShutdown(t *testing.T) {
	app := newTestApp(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- app.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()

	assert.NoError(t, app.Shutdown(shutdownCtx))
}
