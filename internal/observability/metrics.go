package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	meterScope         = "github.com/formbricks/usersync/internal/observability"
	defaultServiceName = "usersync"
	cardinalityLimit   = 2000
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds). Webhook handling includes a
// database write and, for user.created, a Clerk API call with retries, hence the long tail.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// SyncMetrics is the single metrics interface for the service (HTTP, webhook pipeline, Clerk API).
// Pass nil at call sites when metrics are disabled.
type SyncMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordWebhookEvent(ctx context.Context, eventType, outcome string, duration time.Duration)
	RecordSignatureFailure(ctx context.Context, reason string)
	RecordRequestBodyTooLarge(ctx context.Context)
	RecordClerkMetadataRequest(ctx context.Context, statusClass string)
}

// MeterProviderConfig holds configuration for creating the MeterProvider and metrics.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: usersync).
	ServiceName string
}

// NewMeterProvider creates a MeterProvider with Prometheus exporter and returns the provider,
// an HTTP handler for /metrics, and SyncMetrics that use the provider's Meter.
// Caller must call provider.Shutdown on exit.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (provider *sdkmetric.MeterProvider, metricsHandler http.Handler, metrics SyncMetrics, err error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	// Use a single resource to avoid Schema URL conflicts when merging with resource.Default().
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "usersync_*_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)

	metrics, err = newMetricsFromMeter(mp.Meter(meterScope))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create metrics instruments: %w", err)
	}

	metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return mp, metricsHandler, metrics, nil
}

// ShutdownMeterProvider flushes and shuts down the MeterProvider. Safe to call with nil.
func ShutdownMeterProvider(ctx context.Context, provider *sdkmetric.MeterProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}

	return nil
}

func newMetricsFromMeter(meter metric.Meter) (*syncMetrics, error) {
	requestCount, err := meter.Int64Counter(
		MetricNameRequestCount,
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameRequestCount, err)
	}

	requestDuration, err := meter.Float64Histogram(
		MetricNameRequestDuration,
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameRequestDuration, err)
	}

	webhookEvents, err := meter.Int64Counter(
		MetricNameWebhookEvents,
		metric.WithDescription("Verified webhook events by type and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameWebhookEvents, err)
	}

	webhookEventDuration, err := meter.Float64Histogram(
		MetricNameWebhookEventDuration,
		metric.WithDescription("Time spent dispatching a verified webhook event, in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameWebhookEventDuration, err)
	}

	signatureFailures, err := meter.Int64Counter(
		MetricNameSignatureFailures,
		metric.WithDescription("Webhook deliveries rejected before dispatch (missing headers, bad signature)"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameSignatureFailures, err)
	}

	bodyTooLarge, err := meter.Int64Counter(
		MetricNameRequestBodyTooLarge,
		metric.WithDescription("Requests rejected with 413"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameRequestBodyTooLarge, err)
	}

	clerkRequests, err := meter.Int64Counter(
		MetricNameClerkMetadataRequests,
		metric.WithDescription("Clerk metadata update calls by final status class"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameClerkMetadataRequests, err)
	}

	return &syncMetrics{
		requestCount:         requestCount,
		requestDuration:      requestDuration,
		webhookEvents:        webhookEvents,
		webhookEventDuration: webhookEventDuration,
		signatureFailures:    signatureFailures,
		bodyTooLarge:         bodyTooLarge,
		clerkRequests:        clerkRequests,
	}, nil
}

type syncMetrics struct {
	requestCount         metric.Int64Counter
	requestDuration      metric.Float64Histogram
	webhookEvents        metric.Int64Counter
	webhookEventDuration metric.Float64Histogram
	signatureFailures    metric.Int64Counter
	bodyTooLarge         metric.Int64Counter
	clerkRequests        metric.Int64Counter
}

func (m *syncMetrics) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	m.requestCount.Add(ctx, 1, metric.WithAttributeSet(attribute.NewSet(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
		attribute.String(AttrStatusClass, statusClass),
	)))

	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(attribute.NewSet(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
	)))
}

func (m *syncMetrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrEventType, NormalizeEventType(eventType)),
		attribute.String(AttrOutcome, NormalizeOutcome(outcome)),
	)

	m.webhookEvents.Add(ctx, 1, attrs)
	m.webhookEventDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *syncMetrics) RecordSignatureFailure(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedSignatureReasons)
	m.signatureFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (m *syncMetrics) RecordRequestBodyTooLarge(ctx context.Context) {
	m.bodyTooLarge.Add(ctx, 1)
}

func (m *syncMetrics) RecordClerkMetadataRequest(ctx context.Context, statusClass string) {
	m.clerkRequests.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatusClass, statusClass)))
}

// StatusClass maps an HTTP status code to 1xx..5xx.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status >= 100:
		return "1xx"
	default:
		return "unknown"
	}
}
