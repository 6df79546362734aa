// Package admin guards operator-only endpoints.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "onlinemon/pkg/domain-errors"
	"onlinemon/pkg/platform/httputil"
	"onlinemon/pkg/platform/middleware/metadata"
	request "onlinemon/pkg/platform/middleware/request"
)

// RequireAdminToken rejects requests whose X-Admin-Token header does not
// match expectedToken. An empty expectedToken rejects every request.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
					"client_ip", metadata.GetClientIP(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
