package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEventType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"user.created", "user.created", "user.created"},
		{"user.updated", "user.updated", "user.updated"},
		{"user.deleted", "user.deleted", "user.deleted"},
		{"session event", "session.created", "other"},
		{"empty", "", "other"},
		{"typo", "user.creatd", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeEventType(tt.input))
		})
	}
}

func TestNormalizeOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSynced, NormalizeOutcome(OutcomeSynced))
	assert.Equal(t, OutcomeAcknowledged, NormalizeOutcome(OutcomeAcknowledged))
	assert.Equal(t, "other", NormalizeOutcome("timeout"))
}

func TestNormalizeReason(t *testing.T) {
	assert.Equal(t, "invalid_signature", NormalizeReason("invalid_signature", AllowedSignatureReasons))
	assert.Equal(t, "other", NormalizeReason("expired", AllowedSignatureReasons))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(http.StatusOK))
	assert.Equal(t, "3xx", StatusClass(http.StatusFound))
	assert.Equal(t, "4xx", StatusClass(http.StatusBadRequest))
	assert.Equal(t, "5xx", StatusClass(http.StatusServiceUnavailable))
	assert.Equal(t, "1xx", StatusClass(http.StatusContinue))
	assert.Equal(t, "unknown", StatusClass(0))
}

func TestNewMeterProvider_ExposesRecordedMetrics(t *testing.T) {
	ctx := context.Background()

	provider, handler, metrics, err := NewMeterProvider(ctx, MeterProviderConfig{})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, ShutdownMeterProvider(context.Background(), provider))
	})

	metrics.RecordRequest(ctx, http.MethodPost, "/webhooks/clerk", "2xx", 20*time.Millisecond)
	metrics.RecordWebhookEvent(ctx, "user.created", OutcomeSynced, 15*time.Millisecond)
	metrics.RecordSignatureFailure(ctx, "invalid_signature")
	metrics.RecordRequestBodyTooLarge(ctx)
	metrics.RecordClerkMetadataRequest(ctx, "2xx")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "usersync_http_requests_total")
	assert.Contains(t, out, "usersync_webhook_events_total")
	assert.Contains(t, out, `event_type="user.created"`)
	assert.Contains(t, out, `outcome="synced"`)
	assert.Contains(t, out, "usersync_webhook_signature_failures_total")
	assert.Contains(t, out, "usersync_request_body_too_large_total")
	assert.Contains(t, out, "usersync_clerk_metadata_requests_total")
}

func TestShutdownMeterProvider_Nil(t *testing.T) {
	assert.NoError(t, ShutdownMeterProvider(context.Background(), nil))
}
