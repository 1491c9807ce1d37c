// Package clerk is a minimal client for the Clerk Backend API.
package clerk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultBaseURL is the production Clerk Backend API.
	DefaultBaseURL = "https://api.clerk.com"

	defaultRetryMax = 3
	defaultTimeout  = 10 * time.Second

	// maxErrorBody bounds how much of an error response is kept in APIError.
	maxErrorBody = 4 << 10
)

// ErrSecretKeyNotConfigured is returned when the client has no secret key.
var ErrSecretKeyNotConfigured = errors.New("clerk secret key not configured")

// APIError is a non-2xx response from the Clerk API, after retries.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clerk API request failed with status %d: %s", e.StatusCode, e.Body)
}

// RequestRecorder receives the final status class of each metadata call ("2xx", "5xx", "error").
// Pass nil when metrics are disabled.
type RequestRecorder interface {
	RecordClerkMetadataRequest(ctx context.Context, statusClass string)
}

// ClientOptions configures the Clerk API client
type ClientOptions struct {
	// BaseURL is the API origin (default: https://api.clerk.com). Do not include /v1.
	BaseURL string
	// SecretKey is the Clerk secret key (sk_...), sent as a bearer token.
	SecretKey string
	// RetryMax is the maximum number of retries for 429, 5xx and connection errors.
	// Zero disables retries; negative selects the default (3).
	RetryMax int
	// Timeout is the per-attempt HTTP timeout (default: 10 seconds)
	Timeout time.Duration
	// Recorder is optional.
	Recorder RequestRecorder
}

// Client is the Clerk Backend API client. Safe for concurrent use.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *retryablehttp.Client
	recorder   RequestRecorder
}

// NewClient creates a new Clerk API client with custom options
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/v1")

	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.RetryMax < 0 {
		opts.RetryMax = defaultRetryMax
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(retryClient.HTTPClient.Transport)
	retryClient.Logger = nil // Disable logging by default
	// Hand back the last response instead of a generic "giving up" error so the status is visible.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    opts.BaseURL,
		secretKey:  opts.SecretKey,
		httpClient: retryClient,
		recorder:   opts.Recorder,
	}
}

type updateMetadataRequest struct {
	PublicMetadata map[string]any `json:"public_metadata"`
}

// SetUserID stores userID as public_metadata.userId on the Clerk user clerkID.
// Clerk merges public_metadata, so other keys are left untouched.
// See: https://clerk.com/docs/reference/backend-api/tag/Users#operation/UpdateUserMetadata
func (c *Client) SetUserID(ctx context.Context, clerkID, userID string) error {
	if c.secretKey == "" {
		return ErrSecretKeyNotConfigured
	}

	if clerkID == "" {
		return errors.New("clerk user id is required")
	}

	payload, err := json.Marshal(updateMetadataRequest{
		PublicMetadata: map[string]any{"userId": userID},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/users/%s/metadata", c.baseURL, url.PathEscape(clerkID))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPatch, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(ctx, "error")

		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	c.record(ctx, fmt.Sprintf("%dxx", resp.StatusCode/100))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			slog.Error("Failed to read error response body", "error", err)
		}

		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

func (c *Client) record(ctx context.Context, statusClass string) {
	if c.recorder != nil {
		c.recorder.RecordClerkMetadataRequest(ctx, statusClass)
	}
}
