package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onlinemon/pkg/platform/httputil"
	"onlinemon/pkg/platform/middleware/metadata"
	request "onlinemon/pkg/platform/middleware/request"
	"onlinemon/pkg/requestcontext"
)

// Registrar mounts a module's endpoints.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the shared middleware stack, health and metrics endpoints,
// then every module's routes. Handlers stay thin and delegate to services.
func NewRouter(logger *slog.Logger, gatherer prometheus.Gatherer, modules ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	for _, m := range modules {
		m.Register(r)
	}
	return r
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "http request",
				"request_id", request.GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"client_ip", metadata.GetClientIP(r.Context()),
				"duration_ms", time.Since(requestcontext.Now(r.Context())).Milliseconds(),
			)
		})
	}
}
