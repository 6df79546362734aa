// Package postgres keeps the latest snapshot of each histogram plus a batch
// log in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"onlinemon/internal/scaler"
	"onlinemon/internal/snapshot"
	"onlinemon/pkg/domain"
	"onlinemon/pkg/platform/sentinel"
	"onlinemon/pkg/platform/tx"
)

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS histogram_snapshots (
	sequential_id INTEGER PRIMARY KEY,
	unique_id     BIGINT NOT NULL,
	name          TEXT NOT NULL,
	batch_id      UUID NOT NULL,
	run           INTEGER NOT NULL,
	dimension     SMALLINT NOT NULL,
	entries       BIGINT NOT NULL,
	bins          BIGINT[] NOT NULL,
	taken_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS histogram_snapshot_batches (
	batch_id   UUID PRIMARY KEY,
	run        INTEGER NOT NULL,
	histograms INTEGER NOT NULL,
	taken_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS scaler_spills (
	seq            BIGINT PRIMARY KEY,
	run            INTEGER NOT NULL,
	number         INTEGER NOT NULL,
	event          BIGINT NOT NULL,
	counts         JSONB NOT NULL,
	k_pi_ratio     DOUBLE PRECISION NOT NULL,
	daq_efficiency DOUBLE PRECISION NOT NULL,
	duty_factor    DOUBLE PRECISION NOT NULL
);
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store upserts snapshots by sequential ID.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed snapshot store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the snapshot tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure snapshot schema: %w", err)
	}
	return nil
}

// Name implements snapshot.Store.
func (s *Store) Name() string { return "postgres" }

// Save implements snapshot.Store. The batch is written in one transaction,
// or in the caller's transaction when ctx carries one.
func (s *Store) Save(ctx context.Context, batch []snapshot.Snapshot) error {
	if len(batch) == 0 {
		return nil
	}
	if t, ok := tx.From(ctx); ok {
		return save(ctx, t, batch)
	}

	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save snapshots: %w", err)
	}
	defer func() {
		_ = t.Rollback()
	}()
	if err := save(ctx, t, batch); err != nil {
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit save snapshots: %w", err)
	}
	return nil
}

func save(ctx context.Context, db execer, batch []snapshot.Snapshot) error {
	query := `
		INSERT INTO histogram_snapshots
			(sequential_id, unique_id, name, batch_id, run, dimension, entries, bins, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sequential_id) DO UPDATE SET
			unique_id = EXCLUDED.unique_id,
			name = EXCLUDED.name,
			batch_id = EXCLUDED.batch_id,
			run = EXCLUDED.run,
			dimension = EXCLUDED.dimension,
			entries = EXCLUDED.entries,
			bins = EXCLUDED.bins,
			taken_at = EXCLUDED.taken_at
	`
	for _, snap := range batch {
		_, err := db.ExecContext(ctx, query,
			int(snap.Sequential),
			int64(snap.Unique),
			snap.Name,
			snap.BatchID,
			snap.Run,
			snap.Dimension,
			int64(snap.Entries),
			pq.Array(toInt64(snap.Bins)),
			snap.TakenAt,
		)
		if err != nil {
			return fmt.Errorf("upsert snapshot %s: %w", snap.Name, err)
		}
	}

	first := batch[0]
	_, err := db.ExecContext(ctx, `
		INSERT INTO histogram_snapshot_batches (batch_id, run, histograms, taken_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_id) DO NOTHING
	`, first.BatchID, first.Run, len(batch), first.TakenAt)
	if err != nil {
		return fmt.Errorf("record snapshot batch: %w", err)
	}
	return nil
}

// SaveSpills implements snapshot.SpillStore. Spills already stored are left
// as they are.
func (s *Store) SaveSpills(ctx context.Context, spills []scaler.Spill) error {
	if len(spills) == 0 {
		return nil
	}
	if t, ok := tx.From(ctx); ok {
		return saveSpills(ctx, t, spills)
	}

	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save spills: %w", err)
	}
	defer func() {
		_ = t.Rollback()
	}()
	if err := saveSpills(ctx, t, spills); err != nil {
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit save spills: %w", err)
	}
	return nil
}

func saveSpills(ctx context.Context, db execer, spills []scaler.Spill) error {
	query := `
		INSERT INTO scaler_spills
			(seq, run, number, event, counts, k_pi_ratio, daq_efficiency, duty_factor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (seq) DO NOTHING
	`
	for _, sp := range spills {
		counts, err := json.Marshal(sp.Counts)
		if err != nil {
			return fmt.Errorf("encode spill %d counts: %w", sp.Seq, err)
		}
		_, err = db.ExecContext(ctx, query,
			int64(sp.Seq),
			sp.Run,
			sp.Number,
			int64(sp.Event),
			counts,
			sp.KPiRatio,
			sp.DAQEfficiency,
			sp.DutyFactor,
		)
		if err != nil {
			return fmt.Errorf("insert spill %d: %w", sp.Seq, err)
		}
	}
	return nil
}

// LoadSpills returns the stored spills of run, oldest first.
func (s *Store) LoadSpills(ctx context.Context, run int) ([]scaler.Spill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, number, event, counts, k_pi_ratio, daq_efficiency, duty_factor
		FROM scaler_spills WHERE run = $1 ORDER BY seq
	`, run)
	if err != nil {
		return nil, fmt.Errorf("load spills of run %d: %w", run, err)
	}
	defer rows.Close()

	var out []scaler.Spill
	for rows.Next() {
		var (
			sp     = scaler.Spill{Run: run}
			seq    int64
			event  int64
			counts []byte
		)
		if err := rows.Scan(&seq, &sp.Number, &event, &counts, &sp.KPiRatio, &sp.DAQEfficiency, &sp.DutyFactor); err != nil {
			return nil, fmt.Errorf("scan spill: %w", err)
		}
		if err := json.Unmarshal(counts, &sp.Counts); err != nil {
			return nil, fmt.Errorf("decode spill %d counts: %w", seq, err)
		}
		sp.Seq = uint64(seq)
		sp.Event = uint64(event)
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load spills of run %d: %w", run, err)
	}
	return out, nil
}

// Load reads back the latest snapshot of seq. Axes are not stored.
func (s *Store) Load(ctx context.Context, seq domain.SequentialID) (snapshot.Snapshot, error) {
	var (
		snap    snapshot.Snapshot
		unique  int64
		entries int64
		bins    pq.Int64Array
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT unique_id, name, batch_id, run, dimension, entries, bins, taken_at
		FROM histogram_snapshots WHERE sequential_id = $1
	`, int(seq)).Scan(&unique, &snap.Name, &snap.BatchID, &snap.Run, &snap.Dimension, &entries, &bins, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Snapshot{}, fmt.Errorf("snapshot %d: %w", seq, sentinel.ErrNotFound)
		}
		return snapshot.Snapshot{}, fmt.Errorf("load snapshot %d: %w", seq, err)
	}
	snap.Sequential = seq
	snap.Unique = domain.UniqueID(unique)
	snap.Entries = uint64(entries)
	snap.Bins = make([]uint64, len(bins))
	for i, b := range bins {
		snap.Bins[i] = uint64(b)
	}
	return snap, nil
}

// BatchCount returns how many batches have been recorded.
func (s *Store) BatchCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM histogram_snapshot_batches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshot batches: %w", err)
	}
	return n, nil
}

func toInt64(bins []uint64) []int64 {
	out := make([]int64, len(bins))
	for i, b := range bins {
		out[i] = int64(b)
	}
	return out
}
