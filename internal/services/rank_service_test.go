package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/cravequest/backend/internal/cache"
)

func TestRankForResolvesTiers(t *testing.T) {
	db := openServiceTestDB(t)
	seedTestRanks(t, db)

	svc, err := NewRankService(db, nil)
	require.NoError(t, err)

	for points, expected := range map[int]string{
		0:    "Beginner",
		99:   "Beginner",
		100:  "Bronze",
		499:  "Bronze",
		500:  "Silver",
		2000: "Gold",
	} {
		rank, err := svc.RankFor(context.Background(), points)
		require.NoError(t, err)
		require.Equal(t, expected, rank, "points=%d", points)
	}
}

func TestRankForDefaultsOnEmptyTable(t *testing.T) {
	db := openServiceTestDB(t)

	svc, err := NewRankService(db, nil)
	require.NoError(t, err)

	rank, err := svc.RankFor(context.Background(), 250)
	require.NoError(t, err)
	require.Equal(t, DefaultRank, rank)
}

func TestRankTableServedFromCache(t *testing.T) {
	db := openServiceTestDB(t)
	seedTestRanks(t, db)

	mini := miniredis.RunT(t)
	redisCache := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mini.Addr()}))
	t.Cleanup(func() { _ = redisCache.Close() })

	svc, err := NewRankService(db, redisCache)
	require.NoError(t, err)

	rank, err := svc.RankFor(context.Background(), 150)
	require.NoError(t, err)
	require.Equal(t, "Bronze", rank)
	require.True(t, mini.Exists(rankCacheKey))

	// Remove the table from the database; the cached copy still answers.
	require.NoError(t, db.Exec("DELETE FROM ranks").Error)
	rank, err = svc.RankFor(context.Background(), 150)
	require.NoError(t, err)
	require.Equal(t, "Bronze", rank)

	// Invalidation forces a reload, which now sees the empty table.
	svc.Invalidate(context.Background())
	rank, err = svc.RankFor(context.Background(), 150)
	require.NoError(t, err)
	require.Equal(t, DefaultRank, rank)
}
