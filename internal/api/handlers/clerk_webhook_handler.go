package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/formbricks/usersync/internal/api/response"
	"github.com/formbricks/usersync/internal/huberrors"
	"github.com/formbricks/usersync/internal/models"
	"github.com/formbricks/usersync/internal/observability"
	"github.com/formbricks/usersync/internal/service"
	"github.com/formbricks/usersync/internal/webhook"
)

// WebhookVerifier authenticates a delivery. *webhook.Verifier implements it.
type WebhookVerifier interface {
	Verify(headers webhook.DeliveryHeaders, body []byte) error
}

// UserSyncService defines the interface for applying verified Clerk events.
type UserSyncService interface {
	HandleEvent(ctx context.Context, event *models.WebhookEvent) (*service.SyncResult, error)
}

// ClerkWebhookHandler handles Clerk webhook deliveries.
type ClerkWebhookHandler struct {
	verifier WebhookVerifier
	service  UserSyncService
	metrics  observability.SyncMetrics
}

// NewClerkWebhookHandler creates a new Clerk webhook handler. A nil verifier makes every
// delivery fail with 500. metrics may be nil.
func NewClerkWebhookHandler(verifier WebhookVerifier, service UserSyncService, metrics observability.SyncMetrics) *ClerkWebhookHandler {
	return &ClerkWebhookHandler{
		verifier: verifier,
		service:  service,
		metrics:  metrics,
	}
}

// Handle handles POST /webhooks/clerk
// @Summary Receive a Clerk webhook
// @Description Verifies the Svix signature and syncs user.created, user.updated and user.deleted into the user store
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} models.SyncResponse "User synced (empty body for event types that are only acknowledged)"
// @Failure 400 {object} response.ProblemDetails "Missing headers, bad signature, bad payload or missing required fields"
// @Failure 413 {object} response.ProblemDetails
// @Failure 500 {object} response.ProblemDetails "Secret not configured or user store / Clerk API failure"
// @Router /webhooks/clerk [post]
func (h *ClerkWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.verifier == nil {
		slog.ErrorContext(ctx, "Webhook secret not configured, rejecting delivery")
		response.RespondInternalServerError(w, "Webhook secret not configured")

		return
	}

	headers := webhook.HeadersFromRequest(r.Header)
	if !headers.Complete() {
		slog.WarnContext(ctx, "Webhook delivery missing signature headers",
			"has_id", headers.ID != "",
			"has_timestamp", headers.Timestamp != "",
			"has_signature", headers.Signature != "",
		)
		h.recordSignatureFailure(ctx, "missing_headers")
		response.RespondBadRequest(w, "Missing webhook signature headers")

		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read webhook request body", "webhook_id", headers.ID, "error", err)
		response.RespondBadRequest(w, "Failed to read request body")

		return
	}

	if err := h.verifier.Verify(headers, body); err != nil {
		slog.WarnContext(ctx, "Webhook signature verification failed", "webhook_id", headers.ID, "error", err)
		h.recordSignatureFailure(ctx, "invalid_signature")
		response.RespondBadRequest(w, "Invalid webhook signature")

		return
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		slog.WarnContext(ctx, "Failed to decode webhook payload", "webhook_id", headers.ID, "error", err)
		response.RespondBadRequest(w, "Invalid webhook payload")

		return
	}

	start := time.Now()
	result, err := h.service.HandleEvent(ctx, &event)

	switch {
	case errors.Is(err, huberrors.ErrValidation):
		h.recordEvent(ctx, event.Type, observability.OutcomeInvalid, start)
		slog.WarnContext(ctx, "Webhook payload failed validation",
			"webhook_id", headers.ID,
			"event_type", event.Type,
			"error", err,
		)
		response.RespondBadRequest(w, err.Error())
	case err != nil:
		h.recordEvent(ctx, event.Type, observability.OutcomeFailed, start)
		slog.ErrorContext(ctx, "Failed to sync user from webhook",
			"webhook_id", headers.ID,
			"event_type", event.Type,
			"op", downstreamOp(err),
			"error", err,
		)
		response.RespondInternalServerError(w, "Failed to sync user")
	case result.Acknowledged:
		h.recordEvent(ctx, event.Type, observability.OutcomeAcknowledged, start)
		slog.InfoContext(ctx, "Webhook event acknowledged without action",
			"webhook_id", headers.ID,
			"event_type", event.Type,
		)
		response.RespondEmpty(w, http.StatusOK)
	default:
		h.recordEvent(ctx, event.Type, observability.OutcomeSynced, start)
		response.RespondJSON(w, http.StatusOK, models.SyncResponse{Message: "OK", User: result.User})
	}
}

func (h *ClerkWebhookHandler) recordSignatureFailure(ctx context.Context, reason string) {
	if h.metrics != nil {
		h.metrics.RecordSignatureFailure(ctx, reason)
	}
}

func (h *ClerkWebhookHandler) recordEvent(ctx context.Context, eventType, outcome string, start time.Time) {
	if h.metrics != nil {
		h.metrics.RecordWebhookEvent(ctx, eventType, outcome, time.Since(start))
	}
}

func downstreamOp(err error) string {
	var downstream *huberrors.DownstreamError
	if errors.As(err, &downstream) {
		return downstream.Op
	}

	return "unknown"
}
