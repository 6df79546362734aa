// Package snapshot periodically copies every histogram out of the process
// and hands the batch to one or more stores.
package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"onlinemon/internal/analyzer"
	"onlinemon/internal/histogram"
	"onlinemon/internal/monitor"
	"onlinemon/internal/scaler"
	"onlinemon/pkg/domain"
)

//go:generate mockgen -source=snapshot.go -destination=mocks/mocks.go -package=mocks Store,SpillStore,Source

// Snapshot is one histogram as published in a batch. Every snapshot of a
// batch shares BatchID, Run and TakenAt.
type Snapshot struct {
	BatchID    uuid.UUID           `json:"batch_id"`
	Run        int                 `json:"run"`
	Sequential domain.SequentialID `json:"sequential_id"`
	Unique     domain.UniqueID     `json:"unique_id"`
	Name       string              `json:"name"`
	Dimension  int                 `json:"dimension"`
	X          histogram.Axis      `json:"x"`
	Y          *histogram.Axis     `json:"y,omitempty"`
	Entries    uint64              `json:"entries"`
	Bins       []uint64            `json:"bins"`
	TakenAt    time.Time           `json:"taken_at"`
}

// Store persists a batch of snapshots.
type Store interface {
	// Save writes the batch. Implementations overwrite earlier snapshots of
	// the same histogram where they keep only the latest.
	Save(ctx context.Context, batch []Snapshot) error
	// Name labels the store in logs and metrics.
	Name() string
}

// SpillStore is implemented by stores that also keep completed scaler
// spills. Spills arrive in Seq order and each is sent once per store.
type SpillStore interface {
	SaveSpills(ctx context.Context, spills []scaler.Spill) error
}

// Source yields the histogram contents, the run they belong to and the
// completed scaler spills, oldest first.
type Source interface {
	Snapshots(ctx context.Context) []monitor.HistogramView
	Status(ctx context.Context) analyzer.Status
	Spills(ctx context.Context) []scaler.Spill
}

// FromView converts a monitor view into a batch member.
func FromView(batch uuid.UUID, run int, at time.Time, v monitor.HistogramView) Snapshot {
	return Snapshot{
		BatchID:    batch,
		Run:        run,
		Sequential: v.Sequential,
		Unique:     v.Unique,
		Name:       v.Name,
		Dimension:  v.Snapshot.Dimension,
		X:          v.Snapshot.X,
		Y:          v.Snapshot.Y,
		Entries:    v.Snapshot.Entries,
		Bins:       v.Snapshot.Counts,
		TakenAt:    at,
	}
}
