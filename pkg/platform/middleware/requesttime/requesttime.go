// Package requesttime pins one "now" per request so every row a request
// writes carries the same timestamp.
package requesttime

import (
	"net/http"
	"time"

	"rosterclaim/pkg/requestcontext"
)

// Middleware stores the request start time on the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
