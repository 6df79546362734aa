//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"onlinemon/internal/scaler"
	"onlinemon/internal/snapshot"
	snapredis "onlinemon/internal/snapshot/store/redis"
	"onlinemon/pkg/domain"
	"onlinemon/pkg/platform/sentinel"
	"onlinemon/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *snapredis.Store
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = snapredis.New(s.redis.Client, snapredis.WithTTL(time.Hour))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func batch(entries uint64) []snapshot.Snapshot {
	return []snapshot.Snapshot{{
		BatchID:    uuid.New(),
		Run:        3,
		Sequential: 0,
		Unique:     domain.MustEncode(domain.NewClassification(domain.DetectorBH1, domain.KindADC)),
		Name:       "BH1_ADC_1",
		Dimension:  1,
		Entries:    entries,
		Bins:       []uint64{0, entries, 0},
		TakenAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}
}

func (s *RedisStoreSuite) TestSaveOverwritesLatest() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, batch(1)))
	second := batch(5)
	s.Require().NoError(s.store.Save(ctx, second))

	got, err := s.store.Load(ctx, 0)
	s.Require().NoError(err)
	s.Equal(second[0].BatchID, got.BatchID)
	s.Equal(uint64(5), got.Entries)
	s.Equal([]uint64{0, 5, 0}, got.Bins)

	ttl, err := s.redis.Client.TTL(ctx, snapredis.Key(0)).Result()
	s.Require().NoError(err)
	s.Positive(ttl)

	id, err := s.redis.Client.HGet(ctx, snapredis.BatchKey, "batch_id").Result()
	s.Require().NoError(err)
	s.Equal(second[0].BatchID.String(), id)

	keys, err := s.redis.Keys(ctx, snapredis.KeyPrefix+"*")
	s.Require().NoError(err)
	s.ElementsMatch([]string{snapredis.Key(0), snapredis.BatchKey}, keys)
}

func (s *RedisStoreSuite) TestLoadMissing() {
	_, err := s.store.Load(context.Background(), 9)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSaveSpillsKeepsOrder() {
	ctx := context.Background()
	s.Require().NoError(s.store.SaveSpills(ctx, []scaler.Spill{
		{Seq: 1, Run: 3, Counts: map[string]uint64{"K": 10}, KPiRatio: 0.25},
		{Seq: 2, Run: 3, Counts: map[string]uint64{"K": 12}},
	}))
	s.Require().NoError(s.store.SaveSpills(ctx, []scaler.Spill{{Seq: 3, Run: 3}}))

	got, err := s.store.LoadSpills(ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal(uint64(1), got[0].Seq)
	s.Equal(uint64(10), got[0].Counts["K"])
	s.InDelta(0.25, got[0].KPiRatio, 1e-12)
	s.Equal(uint64(3), got[2].Seq)
}
