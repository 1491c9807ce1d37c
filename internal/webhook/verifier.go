// Package webhook verifies inbound Clerk webhook deliveries.
//
// Clerk delivers through Svix, whose signature scheme is the Standard Webhooks scheme with
// svix-* header names: HMAC-SHA256 keyed by the endpoint secret over "id.timestamp.body",
// sent as one or more space-separated "v1,<base64>" signatures.
package webhook

import (
	"errors"
	"fmt"
	"net/http"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

// Svix header names. The Standard Webhooks names (webhook-id etc.) are accepted as a fallback.
const (
	HeaderSvixID        = "svix-id"
	HeaderSvixTimestamp = "svix-timestamp"
	HeaderSvixSignature = "svix-signature"
)

var (
	// ErrSecretNotConfigured means the verifier was built without a signing secret.
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	// ErrMissingHeaders means one of the delivery ID, timestamp or signature headers is absent.
	ErrMissingHeaders = errors.New("missing webhook signature headers")
	// ErrInvalidSignature means the signature did not match or the timestamp was out of tolerance.
	ErrInvalidSignature = errors.New("webhook signature verification failed")
)

// DeliveryHeaders are the three values that authenticate a single delivery.
type DeliveryHeaders struct {
	ID        string
	Timestamp string
	Signature string
}

// Complete reports whether all three values are present.
func (h DeliveryHeaders) Complete() bool {
	return h.ID != "" && h.Timestamp != "" && h.Signature != ""
}

// HeadersFromRequest reads the delivery headers, preferring svix-* over webhook-*.
func HeadersFromRequest(header http.Header) DeliveryHeaders {
	return DeliveryHeaders{
		ID:        firstNonEmpty(header.Get(HeaderSvixID), header.Get(standardwebhooks.HeaderWebhookID)),
		Timestamp: firstNonEmpty(header.Get(HeaderSvixTimestamp), header.Get(standardwebhooks.HeaderWebhookTimestamp)),
		Signature: firstNonEmpty(header.Get(HeaderSvixSignature), header.Get(standardwebhooks.HeaderWebhookSignature)),
	}
}

// Verifier checks delivery signatures against one endpoint secret. Safe for concurrent use.
type Verifier struct {
	wh *standardwebhooks.Webhook
}

// NewVerifier builds a verifier for secret ("whsec_" followed by base64).
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrSecretNotConfigured
	}

	wh, err := standardwebhooks.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}

	return &Verifier{wh: wh}, nil
}

// Verify authenticates body against the delivery headers. body must be the exact bytes
// received; re-encoded JSON will not verify.
func (v *Verifier) Verify(headers DeliveryHeaders, body []byte) error {
	if !headers.Complete() {
		return ErrMissingHeaders
	}

	h := http.Header{}
	h.Set(standardwebhooks.HeaderWebhookID, headers.ID)
	h.Set(standardwebhooks.HeaderWebhookTimestamp, headers.Timestamp)
	h.Set(standardwebhooks.HeaderWebhookSignature, headers.Signature)

	if err := v.wh.Verify(body, h); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
