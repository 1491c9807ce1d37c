// Package observability provides OpenTelemetry metrics (Prometheus exporter), tracing and
// the slog handler that stamps request and trace IDs on log records.
package observability

import (
	"github.com/formbricks/usersync/internal/datatypes"
)

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameRequestCount          = "usersync_http_requests_total"
	MetricNameRequestDuration       = "usersync_http_request_duration_seconds"
	MetricNameWebhookEvents         = "usersync_webhook_events_total"
	MetricNameWebhookEventDuration  = "usersync_webhook_event_duration_seconds"
	MetricNameSignatureFailures     = "usersync_webhook_signature_failures_total"
	MetricNameRequestBodyTooLarge   = "usersync_request_body_too_large_total"
	MetricNameClerkMetadataRequests = "usersync_clerk_metadata_requests_total"
)

// Attribute keys.
const (
	AttrMethod      = "method"
	AttrRoute       = "route"
	AttrStatusClass = "status_class"
	AttrEventType   = "event_type"
	AttrOutcome     = "outcome"
	AttrReason      = "reason"
)

// Webhook event outcomes.
const (
	OutcomeSynced       = "synced"
	OutcomeAcknowledged = "acknowledged"
	OutcomeInvalid      = "invalid"
	OutcomeFailed       = "failed"
)

// AllowedOutcomes for usersync_webhook_events_total and the duration histogram.
var AllowedOutcomes = map[string]bool{
	OutcomeSynced:       true,
	OutcomeAcknowledged: true,
	OutcomeInvalid:      true,
	OutcomeFailed:       true,
}

// AllowedSignatureReasons for usersync_webhook_signature_failures_total.
var AllowedSignatureReasons = map[string]bool{
	"missing_headers":   true,
	"invalid_signature": true,
}

// NormalizeEventType returns eventType if it is a handled user event, otherwise "other".
// Clerk sends dozens of event types; only the handled ones get their own series.
func NormalizeEventType(eventType string) string {
	if datatypes.IsHandledEventType(eventType) {
		return eventType
	}

	return "other"
}

// NormalizeOutcome returns outcome if in AllowedOutcomes, otherwise "other".
func NormalizeOutcome(outcome string) string {
	if AllowedOutcomes[outcome] {
		return outcome
	}

	return "other"
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}
