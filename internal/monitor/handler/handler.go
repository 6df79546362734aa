// Package handler mounts the monitoring HTTP surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"onlinemon/internal/analyzer"
	"onlinemon/internal/monitor"
	"onlinemon/internal/registry"
	"onlinemon/internal/scaler"
	"onlinemon/pkg/domain"
	dErrors "onlinemon/pkg/domain-errors"
	"onlinemon/pkg/platform/httputil"
	"onlinemon/pkg/platform/middleware/admin"
	"onlinemon/pkg/requestcontext"
)

// Service defines the monitoring operations the handler needs.
type Service interface {
	List(ctx context.Context) []registry.Entry
	Get(ctx context.Context, seq domain.SequentialID) (*monitor.HistogramView, error)
	GetByName(ctx context.Context, name string) (*monitor.HistogramView, error)
	GetByUnique(ctx context.Context, u domain.UniqueID) (*monitor.HistogramView, error)
	Groups(ctx context.Context) []monitor.GroupView
	Reset(ctx context.Context)
	Status(ctx context.Context) analyzer.Status
	Scalers(ctx context.Context) (*scaler.Summary, error)
	Spills(ctx context.Context) []scaler.Spill
}

// Handler wires monitoring endpoints to the monitor service.
type Handler struct {
	service    Service
	logger     *slog.Logger
	adminToken string
}

// New constructs a monitoring handler.
func New(service Service, logger *slog.Logger, adminToken string) *Handler {
	return &Handler{
		service:    service,
		logger:     logger,
		adminToken: adminToken,
	}
}

// Register mounts monitoring endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/histograms", h.HandleList)
	r.Get("/histograms/{seq}", h.HandleGet)
	r.Get("/histograms/by-name/{name}", h.HandleGetByName)
	r.Get("/histograms/by-id/{unique}", h.HandleGetByUnique)
	r.Get("/groups", h.HandleGroups)
	r.Get("/status", h.HandleStatus)
	r.Get("/scalers", h.HandleScalers)
	r.Get("/scalers/spills", h.HandleSpills)

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/admin/reset", h.HandleReset)
	})
}

// HandleList handles GET /histograms.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries := h.service.List(r.Context())
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Count: len(entries), Histograms: entries})
}

// HandleGet handles GET /histograms/{seq}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "seq")
	seq, err := strconv.Atoi(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "sequential id must be an integer"))
		return
	}
	h.respond(w, r, "seq", raw)(h.service.Get(r.Context(), domain.SequentialID(seq)))
}

// HandleGetByName handles GET /histograms/by-name/{name}.
func (h *Handler) HandleGetByName(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "histogram name is required"))
		return
	}
	h.respond(w, r, "name", name)(h.service.GetByName(r.Context(), name))
}

// HandleGetByUnique handles GET /histograms/by-id/{unique}.
func (h *Handler) HandleGetByUnique(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "unique")
	u, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unique id must be an integer"))
		return
	}
	h.respond(w, r, "unique_id", raw)(h.service.GetByUnique(r.Context(), domain.UniqueID(u)))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, key, value string) func(*monitor.HistogramView, error) {
	return func(view *monitor.HistogramView, err error) {
		if err != nil {
			ctx := r.Context()
			h.logger.DebugContext(ctx, "histogram lookup failed",
				"request_id", requestcontext.RequestID(ctx),
				key, value,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	}
}

// HandleGroups handles GET /groups.
func (h *Handler) HandleGroups(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Groups(r.Context()))
}

// HandleStatus handles GET /status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Status(r.Context()))
}

// HandleScalers handles GET /scalers.
func (h *Handler) HandleScalers(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Scalers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleSpills handles GET /scalers/spills.
func (h *Handler) HandleSpills(w http.ResponseWriter, r *http.Request) {
	spills := h.service.Spills(r.Context())
	httputil.WriteJSON(w, http.StatusOK, SpillsResponse{Count: len(spills), Spills: spills})
}

// HandleReset handles POST /admin/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.service.Reset(ctx)
	h.logger.InfoContext(ctx, "reset requested",
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

// ListResponse is the body of GET /histograms.
type ListResponse struct {
	Count      int              `json:"count"`
	Histograms []registry.Entry `json:"histograms"`
}

// SpillsResponse is the body of GET /scalers/spills.
type SpillsResponse struct {
	Count  int            `json:"count"`
	Spills []scaler.Spill `json:"spills"`
}
