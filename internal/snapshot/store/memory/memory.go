// Package memory keeps published snapshot batches in process.
package memory

import (
	"context"
	"sync"

	"onlinemon/internal/scaler"
	"onlinemon/internal/snapshot"
	"onlinemon/pkg/domain"
)

// DefaultHistory bounds the number of batches kept.
const DefaultHistory = 16

// Store holds the latest snapshot per histogram plus a bounded batch
// history, and the last scaler.DefaultHistory spills.
type Store struct {
	mu      sync.RWMutex
	latest  map[domain.SequentialID]snapshot.Snapshot
	batches [][]snapshot.Snapshot
	spills  []scaler.Spill
	history int
}

// New returns an empty store keeping up to history batches. history <= 0
// uses DefaultHistory.
func New(history int) *Store {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Store{
		latest:  make(map[domain.SequentialID]snapshot.Snapshot),
		history: history,
	}
}

// Name implements snapshot.Store.
func (s *Store) Name() string { return "memory" }

// Save implements snapshot.Store.
func (s *Store) Save(ctx context.Context, batch []snapshot.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]snapshot.Snapshot, len(batch))
	copy(cp, batch)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range cp {
		s.latest[snap.Sequential] = snap
	}
	s.batches = append(s.batches, cp)
	if over := len(s.batches) - s.history; over > 0 {
		s.batches = append([][]snapshot.Snapshot(nil), s.batches[over:]...)
	}
	return nil
}

// SaveSpills implements snapshot.SpillStore.
func (s *Store) SaveSpills(ctx context.Context, spills []scaler.Spill) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spills = append(s.spills, spills...)
	if over := len(s.spills) - scaler.DefaultHistory; over > 0 {
		s.spills = append([]scaler.Spill(nil), s.spills[over:]...)
	}
	return nil
}

// Spills returns the kept spills, oldest first.
func (s *Store) Spills() []scaler.Spill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scaler.Spill(nil), s.spills...)
}

// Latest returns the most recent snapshot of seq.
func (s *Store) Latest(seq domain.SequentialID) (snapshot.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.latest[seq]
	return snap, ok
}

// Batches returns the kept batches, oldest first.
func (s *Store) Batches() [][]snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([][]snapshot.Snapshot(nil), s.batches...)
}
