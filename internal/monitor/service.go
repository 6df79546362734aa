// Package monitor exposes the registered histograms to readers: the HTTP
// surface, the Prometheus collector and the snapshot publisher.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"onlinemon/internal/analyzer"
	"onlinemon/internal/factory"
	"onlinemon/internal/histogram"
	"onlinemon/internal/platform/metrics"
	"onlinemon/internal/registry"
	"onlinemon/internal/scaler"
	"onlinemon/pkg/domain"
	dErrors "onlinemon/pkg/domain-errors"
	"onlinemon/pkg/platform/sentinel"
)

// HistogramView is one histogram with its identifiers.
type HistogramView struct {
	registry.Entry
	Snapshot histogram.Snapshot `json:"snapshot"`
}

// GroupView is the display tree of one detector block.
type GroupView struct {
	Name       string      `json:"name"`
	Histograms []string    `json:"histograms,omitempty"`
	Groups     []GroupView `json:"groups,omitempty"`
}

// StatusProvider reports where the event path is.
type StatusProvider interface {
	Status() analyzer.Status
}

// ScalerProvider reports the spill-by-spill scaler state.
type ScalerProvider interface {
	Summary() scaler.Summary
	Spills() []scaler.Spill
}

// Service answers read queries over the registry and the flattened table.
type Service struct {
	reg     *registry.Registry
	table   *factory.Table
	groups  []*histogram.Group
	status  StatusProvider
	scaler  ScalerProvider
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStatus attaches the event-path status source.
func WithStatus(p StatusProvider) Option {
	return func(s *Service) {
		s.status = p
	}
}

// WithScaler attaches the scaler monitor.
func WithScaler(p ScalerProvider) Option {
	return func(s *Service) {
		s.scaler = p
	}
}

// New builds a Service. table must come from a completed Flatten.
func New(reg *registry.Registry, table *factory.Table, groups []*histogram.Group, opts ...Option) (*Service, error) {
	if reg == nil || table == nil {
		return nil, fmt.Errorf("monitor needs a registry and a flattened table: %w", sentinel.ErrRegistrationOrder)
	}
	s := &Service{
		reg:    reg,
		table:  table,
		groups: groups,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns every registered histogram in sequential order.
func (s *Service) List(_ context.Context) []registry.Entry {
	return s.reg.Entries()
}

// Get returns the histogram registered as seq.
//
// Errors: dErrors.CodeNotFound when seq is not registered.
func (s *Service) Get(ctx context.Context, seq domain.SequentialID) (*HistogramView, error) {
	e, err := s.reg.Entry(seq)
	if err != nil {
		return nil, s.translate(ctx, err, "histogram "+strconv.Itoa(int(seq))+" not found")
	}
	h, err := s.table.At(seq)
	if err != nil {
		return nil, s.translate(ctx, err, "histogram "+strconv.Itoa(int(seq))+" not found")
	}
	return &HistogramView{Entry: e, Snapshot: h.Snapshot()}, nil
}

// GetByName returns the histogram registered under name.
func (s *Service) GetByName(ctx context.Context, name string) (*HistogramView, error) {
	seq, err := s.reg.SequentialOfName(name)
	if err != nil {
		return nil, s.translate(ctx, err, fmt.Sprintf("histogram %q not found", name))
	}
	return s.Get(ctx, seq)
}

// GetByUnique returns the histogram registered for unique ID u.
//
// Errors: dErrors.CodeBadRequest when u does not decode to a classification,
// dErrors.CodeNotFound when nothing is registered for it.
func (s *Service) GetByUnique(ctx context.Context, u domain.UniqueID) (*HistogramView, error) {
	if _, err := domain.Decode(u); err != nil {
		return nil, s.translate(ctx, err, "")
	}
	seq, err := s.reg.SequentialOf(u)
	if err != nil {
		return nil, s.translate(ctx, err, fmt.Sprintf("unique id %d not registered", u))
	}
	return s.Get(ctx, seq)
}

// Snapshots copies every histogram in sequential order.
func (s *Service) Snapshots(_ context.Context) []HistogramView {
	entries := s.reg.Entries()
	hs := s.table.Histograms()
	out := make([]HistogramView, 0, len(hs))
	for i, h := range hs {
		out = append(out, HistogramView{Entry: entries[i], Snapshot: h.Snapshot()})
	}
	return out
}

// Groups returns the display tree of every block.
func (s *Service) Groups(_ context.Context) []GroupView {
	out := make([]GroupView, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, viewOf(g))
	}
	return out
}

func viewOf(g *histogram.Group) GroupView {
	v := GroupView{Name: g.Name}
	for _, h := range g.Histograms() {
		v.Histograms = append(v.Histograms, h.Name())
	}
	for _, sub := range g.Groups() {
		v.Groups = append(v.Groups, viewOf(sub))
	}
	return v
}

// Reset clears every histogram.
func (s *Service) Reset(ctx context.Context) {
	s.table.Reset()
	s.logger.InfoContext(ctx, "histograms reset by operator", "histograms", s.table.Len())
}

// Status returns the event-path position, or a zero status without a
// provider.
func (s *Service) Status(_ context.Context) analyzer.Status {
	if s.status == nil {
		return analyzer.Status{Run: -1}
	}
	return s.status.Status()
}

// Scalers returns the scaler counters and the last completed spill.
//
// Errors: dErrors.CodeNotFound when no scaler is configured.
func (s *Service) Scalers(_ context.Context) (*scaler.Summary, error) {
	if s.scaler == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "scaler monitoring is not configured")
	}
	summary := s.scaler.Summary()
	return &summary, nil
}

// Spills returns the kept spills, oldest first; nil without a scaler.
func (s *Service) Spills(_ context.Context) []scaler.Spill {
	if s.scaler == nil {
		return nil
	}
	return s.scaler.Spills()
}

func (s *Service) translate(ctx context.Context, err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncrementLookupMiss("http")
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrEncodingOverflow), errors.Is(err, sentinel.ErrInvalidInput):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error())
	case errors.Is(err, sentinel.ErrRegistrationOrder), errors.Is(err, sentinel.ErrFlattenIncomplete):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "histogram table is not ready")
	default:
		s.logger.ErrorContext(ctx, "histogram lookup failed", "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "lookup failed")
	}
}
