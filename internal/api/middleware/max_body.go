package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/formbricks/usersync/internal/api/response"
)

// RequestBodyTooLargeRecorder records when a request is rejected for exceeding the body limit (optional).
// Pass nil when metrics are disabled.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody returns a middleware that limits request body size to maxBytes.
// When the body exceeds the limit, the response is 413 Request Entity Too Large, whatever the
// handler wrote after its read failed. A declared Content-Length over the limit is rejected
// before the handler runs. Use 0 or negative to disable.
func MaxBody(maxBytes int64, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mayHaveBody(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > maxBytes {
				rejectTooLarge(w, r, recorder)
				return
			}

			body := &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, maxBytes)}
			r.Body = body

			buf := &responseBuffer{ResponseWriter: w}
			next.ServeHTTP(buf, r)

			if body.exceeded {
				rejectTooLarge(w, r, recorder)
				return
			}

			buf.flush()
		})
	}
}

func rejectTooLarge(w http.ResponseWriter, r *http.Request, recorder RequestBodyTooLargeRecorder) {
	if recorder != nil {
		recorder.RecordRequestBodyTooLarge(r.Context())
	}

	response.RespondError(w, http.StatusRequestEntityTooLarge,
		"Request Entity Too Large", "request body exceeds maximum allowed size")
}

// mayHaveBody is true for methods that typically send a request body; only these are buffered.
func mayHaveBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// limitedBody notes whether http.MaxBytesReader tripped.
type limitedBody struct {
	io.ReadCloser

	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		b.exceeded = true
	}

	return n, err //nolint:wrapcheck // io.EOF must reach callers unwrapped
}

// responseBuffer captures status and body so they can be discarded in favour of a 413.
type responseBuffer struct {
	http.ResponseWriter

	status int
	buf    bytes.Buffer
}

func (b *responseBuffer) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	return b.buf.Write(p) //nolint:wrapcheck // bytes.Buffer only fails on OOM
}

func (b *responseBuffer) flush() {
	if b.status != 0 {
		b.ResponseWriter.WriteHeader(b.status)
	}

	_, _ = b.buf.WriteTo(b.ResponseWriter)
}
