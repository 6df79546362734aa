// Package factory creates histograms in classification order, registers each
// one exactly once, and flattens them into an index-addressable table.
//
// Usage follows two phases. During startup the Maker builds every detector
// block from the catalogue. Flatten then closes registration and returns the
// Table the event path fills by sequential ID.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"onlinemon/internal/catalogue"
	"onlinemon/internal/histogram"
	"onlinemon/internal/registry"
	"onlinemon/pkg/domain"
	"onlinemon/pkg/platform/sentinel"
)

const tracerName = "onlinemon/internal/factory"

// Maker creates histograms and keeps one handle per sequential ID.
type Maker struct {
	reg    *registry.Registry
	logger *slog.Logger
	tracer trace.Tracer

	mu        sync.Mutex
	handles   map[domain.SequentialID]histogram.Histogram
	table     *Table
	flattened bool
}

// Option configures a Maker.
type Option func(*Maker)

// WithLogger sets the logger used for block summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Maker) {
		m.logger = logger
	}
}

// WithTracer overrides the tracer used for block spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Maker) {
		m.tracer = tracer
	}
}

// New returns a Maker that registers into reg.
func New(reg *registry.Registry, opts ...Option) *Maker {
	m := &Maker{
		reg:     reg,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		handles: make(map[domain.SequentialID]histogram.Histogram),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry the Maker writes to.
func (m *Maker) Registry() *registry.Registry {
	return m.reg
}

// CreateH1 creates a one-dimensional histogram for u and registers it under
// title.
//
// Errors: sentinel.ErrRegistrationOrder after Flatten, sentinel.ErrConflict
// when u or title is taken, sentinel.ErrInvalidInput for a bad axis.
func (m *Maker) CreateH1(u domain.UniqueID, title string, x histogram.Axis) (*histogram.H1, domain.SequentialID, error) {
	h, err := histogram.NewH1(title, title, x)
	if err != nil {
		return nil, 0, fmt.Errorf("create %q: %w", title, err)
	}
	seq, err := m.bind(u, h)
	if err != nil {
		return nil, 0, err
	}
	return h, seq, nil
}

// CreateH2 is CreateH1 for two-dimensional histograms.
func (m *Maker) CreateH2(u domain.UniqueID, title string, x, y histogram.Axis) (*histogram.H2, domain.SequentialID, error) {
	h, err := histogram.NewH2(title, title, x, y)
	if err != nil {
		return nil, 0, fmt.Errorf("create %q: %w", title, err)
	}
	seq, err := m.bind(u, h)
	if err != nil {
		return nil, 0, err
	}
	return h, seq, nil
}

func (m *Maker) bind(u domain.UniqueID, h histogram.Histogram) (domain.SequentialID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flattened {
		return 0, fmt.Errorf("create %q after flatten: %w", h.Name(), sentinel.ErrRegistrationOrder)
	}
	seq, err := m.reg.Register(u, h.Name())
	if err != nil {
		return 0, err
	}
	m.handles[seq] = h
	return seq, nil
}

// BuildBlock creates every histogram of d in catalogue order: kinds as
// listed, channels 1..N inside each kind. The sequential IDs of one kind are
// therefore contiguous and channel ordered.
//
// The returned group holds one sub-group per kind. A failure stops the block
// at the offending histogram; histograms already registered stay registered.
func (m *Maker) BuildBlock(ctx context.Context, d catalogue.Detector) (*histogram.Group, error) {
	_, span := m.tracer.Start(ctx, "factory.BuildBlock", trace.WithAttributes(
		attribute.String("detector", d.Detector.String()),
		attribute.String("subdetector", d.SubDetector.String()),
	))
	defer span.End()

	group := histogram.NewGroup(d.DisplayName())
	first := domain.SequentialID(-1)
	created := 0

	for _, k := range d.Kinds {
		sub := histogram.NewGroup(k.Kind.String())
		for ch := 1; ch <= k.Channels; ch++ {
			h, seq, err := m.create(d, k, ch)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "build block failed")
				return nil, fmt.Errorf("build %s: %w", d.DisplayName(), err)
			}
			if first < 0 {
				first = seq
			}
			sub.Add(h)
			created++
		}
		group.AddGroup(sub)
	}

	span.SetAttributes(attribute.Int("histograms", created))
	m.logger.DebugContext(ctx, "detector block built",
		"block", d.DisplayName(),
		"histograms", created,
		"first_sequential_id", int(first),
	)
	return group, nil
}

func (m *Maker) create(d catalogue.Detector, k catalogue.KindSpec, ch int) (histogram.Histogram, domain.SequentialID, error) {
	u, err := domain.Encode(d.Classification(k.Kind, ch))
	if err != nil {
		return nil, 0, err
	}
	name, title := k.HistogramName(d, ch), k.HistogramTitle(d, ch)

	var h histogram.Histogram
	if k.Kind.Is2D() {
		if k.Y == nil {
			return nil, 0, fmt.Errorf("%s: 2-D kind without y axis: %w", name, sentinel.ErrInvalidInput)
		}
		h, err = histogram.NewH2(name, title, k.X, *k.Y)
	} else {
		h, err = histogram.NewH1(name, title, k.X)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("create %q: %w", name, err)
	}
	seq, err := m.bind(u, h)
	if err != nil {
		return nil, 0, err
	}
	return h, seq, nil
}

// BuildAll builds every block of cat in order and returns one group per
// block.
func (m *Maker) BuildAll(ctx context.Context, cat *catalogue.Catalogue) ([]*histogram.Group, error) {
	groups := make([]*histogram.Group, 0, len(cat.Detectors))
	for _, d := range cat.Detectors {
		g, err := m.BuildBlock(ctx, d)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	m.logger.InfoContext(ctx, "histograms registered",
		"blocks", len(groups),
		"histograms", m.reg.Count(),
	)
	return groups, nil
}

// Flatten closes registration and returns the table in which position s
// holds the histogram registered as s.
//
// Errors: sentinel.ErrFlattenIncomplete listing every sequential ID without
// a histogram; sentinel.ErrRegistrationOrder on a second call.
func (m *Maker) Flatten() (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flattened {
		return nil, fmt.Errorf("flatten called twice: %w", sentinel.ErrRegistrationOrder)
	}

	// Sealing and counting happen under one lock so no registration can
	// slip in between.
	n := m.reg.Seal()
	items := make([]histogram.Histogram, n)
	var gaps error
	for s := 0; s < n; s++ {
		h, ok := m.handles[domain.SequentialID(s)]
		if !ok {
			gaps = multierr.Append(gaps, fmt.Errorf("sequential id %d has no histogram", s))
			continue
		}
		items[s] = h
	}
	if gaps != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrFlattenIncomplete, gaps)
	}

	m.flattened = true
	m.table = &Table{reg: m.reg, items: items}
	return m.table, nil
}

// Table returns the flattened table.
//
// Errors: sentinel.ErrRegistrationOrder before Flatten.
func (m *Maker) Table() (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.flattened {
		return nil, fmt.Errorf("table requested before flatten: %w", sentinel.ErrRegistrationOrder)
	}
	return m.table, nil
}
