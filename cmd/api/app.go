package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/usersync/internal/api/handlers"
	"github.com/formbricks/usersync/internal/api/middleware"
	"github.com/formbricks/usersync/internal/config"
	"github.com/formbricks/usersync/internal/observability"
	"github.com/formbricks/usersync/internal/repository"
	"github.com/formbricks/usersync/internal/service"
	"github.com/formbricks/usersync/internal/webhook"
	"github.com/formbricks/usersync/pkg/clerk"
)

const serviceName = "usersync"

const (
	routeClerkWebhook = "/webhooks/clerk"
	routeHealth       = "/health"
	routeReady        = "/ready"
	routeMetrics      = "/metrics"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	server         *http.Server
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// NewApp builds and wires all components. It does not start the HTTP server;
// call Run to start and block until shutdown or failure. Logging is configured by the
// caller (see setupLogging); NewApp leaves the default logger alone.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	var (
		meterProvider  *sdkmetric.MeterProvider
		metricsHandler http.Handler
		metrics        observability.SyncMetrics
		err            error
	)

	if cfg.MetricsEnabled {
		meterProvider, metricsHandler, metrics, err = observability.NewMeterProvider(ctx,
			observability.MeterProviderConfig{ServiceName: serviceName})
		if err != nil {
			return nil, fmt.Errorf("create meter provider: %w", err)
		}

		otel.SetMeterProvider(meterProvider)
	} else {
		slog.Warn("metrics not enabled (METRICS_ENABLED unset or false)")
	}

	tracerProvider, err := observability.NewTracerProvider(ctx, cfg.OtelTracesExporter)
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), meterProvider); err2 != nil {
			slog.Error("shutdown meter provider after tracer provider error", "error", err2)
		}

		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	if tracerProvider == nil {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	}

	// A malformed secret leaves the verifier nil; every delivery then fails with 500.
	var verifier handlers.WebhookVerifier

	v, err := webhook.NewVerifier(cfg.WebhookSecret)
	if err != nil {
		slog.Error("Webhook verifier not configured", "error", err)
	} else {
		verifier = v
	}

	var clerkRecorder clerk.RequestRecorder
	if metrics != nil {
		clerkRecorder = metrics
	}

	clerkClient := clerk.NewClient(clerk.ClientOptions{
		BaseURL:   cfg.ClerkAPIURL,
		SecretKey: cfg.ClerkSecretKey,
		RetryMax:  cfg.ClerkAPIRetryMax,
		Recorder:  clerkRecorder,
	})

	usersRepo := repository.NewUsersRepository(db)
	syncService := service.NewUserSyncService(usersRepo, clerkClient)

	webhookHandler := handlers.NewClerkWebhookHandler(verifier, syncService, metrics)

	var pinger handlers.Pinger
	if db != nil {
		pinger = db
	}

	healthHandler := handlers.NewHealthHandler(pinger)

	server := newHTTPServer(cfg, webhookHandler, healthHandler, metricsHandler, metrics, meterProvider, tracerProvider)

	return &App{
		cfg:            cfg,
		server:         server,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
	}, nil
}

// newHTTPServer builds the HTTP server and mux.
// Handler chain: RequestID -> Metrics -> otelhttp -> Logging -> MaxBody -> mux, so access logs get
// trace_id/span_id and the metrics middleware sees 413s written by MaxBody.
func newHTTPServer(
	cfg *config.Config,
	clerkWebhook *handlers.ClerkWebhookHandler,
	health *handlers.HealthHandler,
	metricsHandler http.Handler,
	metrics observability.SyncMetrics,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+routeClerkWebhook, clerkWebhook.Handle)
	mux.HandleFunc("GET "+routeHealth, health.Check)
	mux.HandleFunc("GET "+routeReady, health.Ready)

	routes := []string{routeClerkWebhook, routeHealth, routeReady}

	if metricsHandler != nil {
		mux.Handle("GET "+routeMetrics, metricsHandler)
		routes = append(routes, routeMetrics)
	}

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for probes and scrapes.
		otelhttp.WithFilter(func(r *http.Request) bool {
			switch r.URL.Path {
			case routeHealth, routeReady, routeMetrics:
				return false
			default:
				return true
			}
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	var bodyRecorder middleware.RequestBodyTooLargeRecorder
	if metrics != nil {
		bodyRecorder = metrics
	}

	inner := middleware.MaxBody(cfg.MaxRequestBodyBytes, bodyRecorder)(mux)
	inner = middleware.Logging(inner)
	handler := otelhttp.NewHandler(inner, serviceName, otelOpts...)
	handler = middleware.Metrics(metrics, routes...)(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 30 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server, then blocks until ctx is cancelled (e.g. signal) or the server fails.
// Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr <- fmt.Errorf("server: %w", err)
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	first := observability.ShutdownTracerProvider(ctx, tracer)

	if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
		if first == nil {
			first = err
		} else {
			slog.Error("shutdown meter provider", "error", err)
		}
	}

	return first
}

// Shutdown drains in-flight requests, then flushes observability. Call after Run returns.
// The observability error is returned only when the server shut down cleanly.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
