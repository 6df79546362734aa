package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"go.uber.org/multierr"

	"onlinemon/internal/platform/metrics"
	"onlinemon/internal/scaler"
	"onlinemon/pkg/platform/circuit"
	"onlinemon/pkg/platform/sentinel"
)

const (
	// DefaultInterval is used when the publisher is given a non-positive interval.
	DefaultInterval = 30 * time.Second
	// DefaultSaveTimeout bounds a single store save.
	DefaultSaveTimeout = 10 * time.Second
	// DefaultRetryInterval is how long a degraded store is left alone.
	DefaultRetryInterval = time.Minute
)

// ErrStoreDegraded is reported for a store that was skipped because its
// breaker is open and the retry interval has not passed yet.
var ErrStoreDegraded = errors.New("store degraded, save skipped")

// Publisher collects all histograms on a fixed interval and saves the batch
// to every configured store.
type Publisher struct {
	source        Source
	stores        []storeState
	interval      time.Duration
	saveTimeout   time.Duration
	retryInterval time.Duration
	clock         clockz.Clock
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// storeState is the publisher's view of one store. PublishNow is not
// called concurrently, so it needs no lock.
type storeState struct {
	store   Store
	breaker *circuit.Breaker
	// retryAt is when a degraded store gets its next attempt.
	retryAt time.Time
	// spillSeq is the highest spill Seq the store has accepted.
	spillSeq uint64
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockz.Clock) Option {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithSaveTimeout bounds each store save. Non-positive values keep the default.
func WithSaveTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.saveTimeout = d
		}
	}
}

// WithRetryInterval sets how long a store with an open breaker is skipped
// between attempts. Non-positive values keep the default.
func WithRetryInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.retryInterval = d
		}
	}
}

// NewPublisher builds a publisher over source writing to stores.
func NewPublisher(source Source, interval time.Duration, stores []Store, opts ...Option) (*Publisher, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot publisher needs a source: %w", sentinel.ErrInvalidInput)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Publisher{
		source:        source,
		interval:      interval,
		saveTimeout:   DefaultSaveTimeout,
		retryInterval: DefaultRetryInterval,
		clock:         clockz.RealClock,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, store := range stores {
		p.stores = append(p.stores, storeState{store: store, breaker: circuit.New(store.Name())})
	}
	return p, nil
}

// PublishNow takes one batch and saves it to every store. A failing store
// does not prevent the others from receiving the batch; all failures are
// returned together. Stores that also keep spills get the spills they have
// not accepted yet.
//
// Each save runs under the save timeout. A store whose breaker is open is
// skipped with ErrStoreDegraded until the retry interval has passed; after
// that it gets one attempt per publish until the breaker closes or the
// attempt fails.
func (p *Publisher) PublishNow(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	batch := p.collect(ctx, id)
	if len(p.stores) == 0 {
		return id, nil
	}
	spills := p.source.Spills(ctx)

	var errs error
	for i := range p.stores {
		st := &p.stores[i]
		name := st.store.Name()
		if st.breaker.IsOpen() && p.clock.Now().Before(st.retryAt) {
			p.logger.DebugContext(ctx, "snapshot save skipped on degraded store",
				"store", name,
				"batch_id", id,
				"retry_at", st.retryAt,
			)
			errs = multierr.Append(errs, fmt.Errorf("store %s: %w", name, ErrStoreDegraded))
			continue
		}

		start := p.clock.Now()
		err := p.save(ctx, st, batch, spills)
		p.metrics.ObserveSnapshotSave(name, p.clock.Since(start), err)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store %s: %w", name, err))
		}
		p.record(ctx, st, id, err)
	}
	if errs == nil {
		p.logger.DebugContext(ctx, "snapshot batch published",
			"batch_id", id,
			"histograms", len(batch),
			"stores", len(p.stores),
		)
	}
	return id, errs
}

func (p *Publisher) save(ctx context.Context, st *storeState, batch []Snapshot, spills []scaler.Spill) error {
	ctx, cancel := p.clock.WithTimeout(ctx, p.saveTimeout)
	defer cancel()

	if err := st.store.Save(ctx, batch); err != nil {
		return err
	}
	ss, ok := st.store.(SpillStore)
	if !ok {
		return nil
	}
	pending := unsent(spills, st.spillSeq)
	if len(pending) == 0 {
		return nil
	}
	if err := ss.SaveSpills(ctx, pending); err != nil {
		return fmt.Errorf("save spills: %w", err)
	}
	st.spillSeq = pending[len(pending)-1].Seq
	return nil
}

// unsent returns the spills after seq. spills is ordered by Seq.
func unsent(spills []scaler.Spill, seq uint64) []scaler.Spill {
	for i, sp := range spills {
		if sp.Seq > seq {
			return spills[i:]
		}
	}
	return nil
}

// record feeds the outcome to the store's breaker. While the breaker is open
// repeated failures are logged at debug level only and push the next attempt
// one retry interval out.
func (p *Publisher) record(ctx context.Context, st *storeState, id uuid.UUID, err error) {
	b := st.breaker
	if err == nil {
		if _, change := b.RecordSuccess(); change.Closed {
			p.metrics.SetStoreDegraded(b.Name(), false)
			p.logger.InfoContext(ctx, "snapshot store recovered", "store", b.Name())
		}
		return
	}

	degraded, change := b.RecordFailure()
	if degraded {
		st.retryAt = p.clock.Now().Add(p.retryInterval)
	}
	switch {
	case change.Opened:
		p.metrics.SetStoreDegraded(b.Name(), true)
		p.logger.ErrorContext(ctx, "snapshot store degraded",
			"store", b.Name(),
			"batch_id", id,
			"retry_at", st.retryAt,
			"error", err,
		)
	case degraded:
		p.logger.DebugContext(ctx, "snapshot save failed on degraded store",
			"store", b.Name(),
			"batch_id", id,
			"retry_at", st.retryAt,
			"error", err,
		)
	default:
		p.logger.WarnContext(ctx, "snapshot save failed",
			"store", b.Name(),
			"batch_id", id,
			"error", err,
		)
	}
}

// Degraded returns the names of stores whose breaker is open.
func (p *Publisher) Degraded() []string {
	var out []string
	for _, st := range p.stores {
		if st.breaker.IsOpen() {
			out = append(out, st.breaker.Name())
		}
	}
	return out
}

func (p *Publisher) collect(ctx context.Context, id uuid.UUID) []Snapshot {
	run := p.source.Status(ctx).Run
	at := p.clock.Now().UTC()
	views := p.source.Snapshots(ctx)
	batch := make([]Snapshot, 0, len(views))
	for _, v := range views {
		batch = append(batch, FromView(id, run, at, v))
	}
	return batch
}

// Run publishes every interval until ctx is done. Save failures are logged
// and the loop keeps going.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "snapshot publisher started",
		"interval", p.interval.String(),
		"save_timeout", p.saveTimeout.String(),
		"stores", len(p.stores),
	)
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "snapshot publisher stopped")
			return nil
		case <-p.clock.After(p.interval):
			// Errors are already logged per store.
			_, _ = p.PublishNow(ctx)
		}
	}
}
