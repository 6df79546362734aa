// Package analyzer routes decoded event data into the flattened histogram
// table.
//
// Every routed kind resolves its base sequential ID once, when the Analyzer
// is built. The per-event path then addresses channel c of a block as
// base+c-1 and never consults the registry.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"onlinemon/internal/catalogue"
	"onlinemon/internal/factory"
	"onlinemon/internal/platform/metrics"
	"onlinemon/internal/scaler"
	"onlinemon/internal/unpacker"
	"onlinemon/pkg/domain"
	dErrors "onlinemon/pkg/domain-errors"
	"onlinemon/pkg/platform/sentinel"
)

type route struct {
	block  string
	device string
	spec   catalogue.KindSpec
	base   domain.SequentialID
}

// Status is the analyzer's position in the event stream.
type Status struct {
	Run     int    `json:"run"`
	Event   uint64 `json:"event"`
	Events  uint64 `json:"events"`
	Skipped uint64 `json:"skipped"`
}

// Analyzer fills histograms from events. ProcessEvent must be called from a
// single goroutine; Status may be read concurrently.
type Analyzer struct {
	table   *factory.Table
	routes  []route
	scaler  *scaler.Monitor
	logger  *slog.Logger
	metrics *metrics.Metrics

	haveRun bool
	run     atomic.Int64
	event   atomic.Uint64
	events  atomic.Uint64
	skipped atomic.Uint64
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// WithScaler feeds every event to the spill-by-spill scaler monitor.
func WithScaler(m *scaler.Monitor) Option {
	return func(a *Analyzer) {
		a.scaler = m
	}
}

// New resolves a route for every kind in cat that names its data.
//
// Errors: sentinel.ErrRegistrationOrder when table is nil (not flattened
// yet); sentinel.ErrNotFound when a routed kind was never registered.
func New(cat *catalogue.Catalogue, table *factory.Table, opts ...Option) (*Analyzer, error) {
	if table == nil {
		return nil, fmt.Errorf("analyzer needs a flattened table: %w", sentinel.ErrRegistrationOrder)
	}
	a := &Analyzer{
		table:  table,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.run.Store(-1)

	for _, d := range cat.Detectors {
		for _, k := range d.Kinds {
			if k.Data == "" || d.Device == "" {
				continue
			}
			base, err := table.Base(d.Classification(k.Kind, domain.DefaultChannel))
			if err != nil {
				a.metrics.IncrementLookupMiss("analyzer")
				return nil, fmt.Errorf("route %s %s: %w", d.DisplayName(), k.Kind, err)
			}
			a.routes = append(a.routes, route{
				block:  d.DisplayName(),
				device: d.Device,
				spec:   k,
				base:   base,
			})
		}
	}
	return a, nil
}

// Routes returns the number of routed kinds.
func (a *Analyzer) Routes() int {
	return len(a.routes)
}

// Status returns the latest run and event seen.
func (a *Analyzer) Status() Status {
	return Status{
		Run:     int(a.run.Load()),
		Event:   a.event.Load(),
		Events:  a.events.Load(),
		Skipped: a.skipped.Load(),
	}
}

// ProcessEvent fills every routed histogram from ev. A change of run number
// resets all histograms before ev is filled.
func (a *Analyzer) ProcessEvent(ctx context.Context, ev unpacker.Event) error {
	if run := ev.Run(); !a.haveRun || int64(run) != a.run.Load() {
		if a.haveRun {
			a.table.Reset()
			a.metrics.IncrementRunResets()
			a.logger.InfoContext(ctx, "run changed, histograms reset",
				"previous_run", a.run.Load(),
				"run", run,
			)
		}
		a.haveRun = true
		a.run.Store(int64(run))
	}
	a.event.Store(ev.Number())

	if a.scaler != nil {
		a.scaler.Process(ctx, ev)
	}

	for _, r := range a.routes {
		n, err := a.fill(r, ev)
		if err != nil {
			return fmt.Errorf("fill %s %s: %w", r.block, r.spec.Kind, err)
		}
		a.metrics.AddFills(r.block, n)
	}

	a.events.Add(1)
	a.metrics.IncrementEvents()
	return nil
}

func (a *Analyzer) fill(r route, ev unpacker.Event) (int, error) {
	k := r.spec
	fills := 0
	switch k.Kind {
	case domain.KindHitPat:
		for seg := 0; seg < k.Segments; seg++ {
			if hit(ev, r.device, k.Data, seg) {
				if err := a.table.Fill(r.base, float64(seg)); err != nil {
					return fills, err
				}
				fills++
			}
		}

	case domain.KindMulti:
		multi := 0
		for seg := 0; seg < k.Segments; seg++ {
			if hit(ev, r.device, k.Data, seg) {
				multi++
			}
		}
		if err := a.table.Fill(r.base, float64(multi)); err != nil {
			return fills, err
		}
		fills++

	case domain.KindPlot2D, domain.KindHitPat2D:
		for seg := 0; seg < k.Segments; seg++ {
			for i, n := 0, ev.Entries(r.device, k.Data, seg); i < n; i++ {
				v := ev.Get(r.device, k.Data, seg, i)
				if k.Kind == domain.KindHitPat2D && v == 0 {
					continue
				}
				if err := a.table.FillXY(r.base, float64(seg), float64(v)); err != nil {
					return fills, err
				}
				fills++
			}
		}

	case domain.KindADCwTDC:
		for seg := 0; seg < k.Channels; seg++ {
			if !hit(ev, r.device, k.Gate, seg) {
				continue
			}
			for i, n := 0, ev.Entries(r.device, k.Data, seg); i < n; i++ {
				if err := a.table.Fill(r.base.Offset(seg), float64(ev.Get(r.device, k.Data, seg, i))); err != nil {
					return fills, err
				}
				fills++
			}
		}

	default:
		// One histogram per channel; channel c reads segment c-1.
		for seg := 0; seg < k.Channels; seg++ {
			for i, n := 0, ev.Entries(r.device, k.Data, seg); i < n; i++ {
				v := ev.Get(r.device, k.Data, seg, i)
				if k.Kind == domain.KindTDC && v == 0 {
					continue
				}
				if err := a.table.Fill(r.base.Offset(seg), float64(v)); err != nil {
					return fills, err
				}
				fills++
			}
		}
	}
	return fills, nil
}

// hit reports whether segment has at least one non-zero sample.
func hit(ev unpacker.Event, device, data string, segment int) bool {
	for i, n := 0, ev.Entries(device, data, segment); i < n; i++ {
		if ev.Get(device, data, segment, i) != 0 {
			return true
		}
	}
	return false
}

// Run processes events from src until it is exhausted or ctx is done.
// Events the source cannot decode are logged and skipped.
func (a *Analyzer) Run(ctx context.Context, src unpacker.Source) error {
	a.logger.InfoContext(ctx, "analyzer started", "routes", len(a.routes))
	for {
		ev, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			a.logger.InfoContext(ctx, "event source exhausted", "events", a.events.Load())
			return nil
		case dErrors.HasCode(err, dErrors.CodeBadRequest):
			a.skipped.Add(1)
			a.logger.WarnContext(ctx, "skipping undecodable event", "error", err)
			continue
		case err != nil:
			return err
		}
		if err := a.ProcessEvent(ctx, ev); err != nil {
			return err
		}
	}
}
