// Package redis keeps the latest snapshot of each histogram in Redis hashes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"onlinemon/internal/scaler"
	"onlinemon/internal/snapshot"
	"onlinemon/pkg/domain"
	"onlinemon/pkg/platform/sentinel"
)

const (
	// KeyPrefix prefixes the per-histogram hash key.
	KeyPrefix = "onlinemon:snap:"
	// BatchKey holds the id and time of the last saved batch.
	BatchKey = "onlinemon:snap:batch"
	// SpillKey is the list of completed spills, oldest first, as JSON.
	SpillKey = "onlinemon:spills"
)

// Store writes each snapshot to the hash onlinemon:snap:<seq> in a single
// pipeline per batch.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL expires snapshot keys after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New returns a Redis-backed snapshot store.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Key returns the hash key for seq.
func Key(seq domain.SequentialID) string {
	return KeyPrefix + strconv.Itoa(int(seq))
}

// Name implements snapshot.Store.
func (s *Store) Name() string { return "redis" }

// Save implements snapshot.Store.
func (s *Store) Save(ctx context.Context, batch []snapshot.Snapshot) error {
	if len(batch) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, snap := range batch {
		bins, err := json.Marshal(snap.Bins)
		if err != nil {
			return fmt.Errorf("encode bins of %s: %w", snap.Name, err)
		}
		key := Key(snap.Sequential)
		pipe.HSet(ctx, key,
			"batch_id", snap.BatchID.String(),
			"run", snap.Run,
			"unique_id", int64(snap.Unique),
			"name", snap.Name,
			"dimension", snap.Dimension,
			"entries", snap.Entries,
			"bins", string(bins),
			"taken_at", snap.TakenAt.Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
	pipe.HSet(ctx, BatchKey,
		"batch_id", batch[0].BatchID.String(),
		"taken_at", batch[0].TakenAt.Format(time.RFC3339Nano),
		"histograms", len(batch),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot batch: %w", err)
	}
	return nil
}

// SaveSpills implements snapshot.SpillStore. The list keeps the last
// scaler.DefaultHistory spills.
func (s *Store) SaveSpills(ctx context.Context, spills []scaler.Spill) error {
	if len(spills) == 0 {
		return nil
	}
	values := make([]any, 0, len(spills))
	for _, sp := range spills {
		raw, err := json.Marshal(sp)
		if err != nil {
			return fmt.Errorf("encode spill %d: %w", sp.Seq, err)
		}
		values = append(values, raw)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, SpillKey, values...)
	pipe.LTrim(ctx, SpillKey, -scaler.DefaultHistory, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save spills: %w", err)
	}
	return nil
}

// LoadSpills reads the kept spills back, oldest first.
func (s *Store) LoadSpills(ctx context.Context) ([]scaler.Spill, error) {
	raw, err := s.client.LRange(ctx, SpillKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load spills: %w", err)
	}
	out := make([]scaler.Spill, 0, len(raw))
	for _, r := range raw {
		var sp scaler.Spill
		if err := json.Unmarshal([]byte(r), &sp); err != nil {
			return nil, fmt.Errorf("decode spill: %w", err)
		}
		out = append(out, sp)
	}
	return out, nil
}

// Load reads back the latest snapshot of seq. Axes are not stored.
func (s *Store) Load(ctx context.Context, seq domain.SequentialID) (snapshot.Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, Key(seq)).Result()
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("load snapshot %d: %w", seq, err)
	}
	if len(fields) == 0 {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot %d: %w", seq, sentinel.ErrNotFound)
	}
	return decode(seq, fields)
}
