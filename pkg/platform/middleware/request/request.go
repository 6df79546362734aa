// Package request stamps every request with an ID and a fixed "now".
package request

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"onlinemon/pkg/requestcontext"
)

// Middleware copies chi's request ID into the request context and captures
// the request start time. Mount it after middleware.RequestID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithRequestID(ctx, middleware.GetReqID(ctx))
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored by Middleware.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
