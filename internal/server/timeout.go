package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds a request's context lifetime. Cancellation is
// cooperative: handlers must observe ctx.Done(), the connection is not torn
// down. Applied per-route; the SSE endpoints run without it.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
