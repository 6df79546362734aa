package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onlinemon/internal/scaler"
	"onlinemon/internal/snapshot"
)

func batch(entries ...uint64) []snapshot.Snapshot {
	id := uuid.New()
	out := make([]snapshot.Snapshot, 0, len(entries))
	for _, n := range entries {
		out = append(out, snapshot.Snapshot{BatchID: id, Entries: n, Name: "h"})
	}
	return out
}

func TestStore_LatestAndHistory(t *testing.T) {
	ctx := context.Background()
	s := New(2)

	require.NoError(t, s.Save(ctx, batch(1)))
	require.NoError(t, s.Save(ctx, batch(2)))
	require.NoError(t, s.Save(ctx, batch(3)))

	latest, ok := s.Latest(0)
	require.True(t, ok)
	assert.Equal(t, uint64(3), latest.Entries)

	batches := s.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, uint64(2), batches[0][0].Entries)

	_, ok = s.Latest(7)
	assert.False(t, ok)
	assert.Equal(t, "memory", s.Name())
}

func TestStore_CopiesBatch(t *testing.T) {
	in := batch(5)
	s := New(0)
	require.NoError(t, s.Save(context.Background(), in))

	in[0].Entries = 99
	latest, _ := s.Latest(0)
	assert.Equal(t, uint64(5), latest.Entries)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, New(1).Save(ctx, batch(1)), context.Canceled)
}

func TestStore_SpillsAreBounded(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	var _ snapshot.SpillStore = s

	for seq := uint64(1); seq <= scaler.DefaultHistory+2; seq++ {
		require.NoError(t, s.SaveSpills(ctx, []scaler.Spill{{Seq: seq}}))
	}
	spills := s.Spills()
	require.Len(t, spills, scaler.DefaultHistory)
	assert.Equal(t, uint64(3), spills[0].Seq)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.SaveSpills(cancelled, []scaler.Spill{{Seq: 99}}), context.Canceled)
}
