package middleware

import (
	"net/http"
	"time"

	"github.com/formbricks/usersync/internal/observability"
)

// otherRoute is the route label for paths outside the registered set.
const otherRoute = "other"

// Metrics returns middleware that records HTTP request count and duration via SyncMetrics.
// routes is the set of registered paths; any other path is recorded as "other" to bound
// cardinality. When metrics is nil, recording is skipped. Put Metrics outermost so duration
// is full request time.
func Metrics(metrics observability.SyncMetrics, routes ...string) func(http.Handler) http.Handler {
	known := make(map[string]bool, len(routes))
	for _, route := range routes {
		known[route] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if !known[route] {
				route = otherRoute
			}

			metrics.RecordRequest(r.Context(), r.Method, route, observability.StatusClass(rw.statusCode), time.Since(start))
		})
	}
}
