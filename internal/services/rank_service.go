package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cravequest/backend/internal/cache"
	"github.com/cravequest/backend/internal/models"
)

// DefaultRank is returned whenever a point total falls outside the rank table.
const DefaultRank = "Beginner"

const (
	rankCacheKey = "cravequest:ranks"
	rankCacheTTL = 5 * time.Minute
)

// RankService resolves point totals to display tiers. The rank table changes
// rarely, so reads go through an advisory Redis cache when one is configured.
type RankService struct {
	db    *gorm.DB
	cache *cache.RedisCache
}

// NewRankService constructs a RankService. The cache may be nil.
func NewRankService(db *gorm.DB, redis *cache.RedisCache) (*RankService, error) {
	if db == nil {
		return nil, errors.New("rank service: db is required")
	}
	return &RankService{db: db, cache: redis}, nil
}

// Table returns the full rank table ordered by ascending threshold.
func (s *RankService) Table(ctx context.Context) ([]models.Rank, error) {
	if cached, ok := s.cache.Get(ctx, rankCacheKey); ok {
		var ranks []models.Rank
		if err := json.Unmarshal([]byte(cached), &ranks); err == nil && len(ranks) > 0 {
			return ranks, nil
		}
	}

	var ranks []models.Rank
	if err := s.db.WithContext(ctx).
		Order("min_points ASC").
		Find(&ranks).Error; err != nil {
		return nil, fmt.Errorf("rank service: load table: %w", err)
	}

	if payload, err := json.Marshal(ranks); err == nil {
		s.cache.Set(ctx, rankCacheKey, string(payload), rankCacheTTL)
	}
	return ranks, nil
}

// RankFor maps a point total to its tier, falling back to DefaultRank when no
// range contains the total.
func (s *RankService) RankFor(ctx context.Context, points int) (string, error) {
	ranks, err := s.Table(ctx)
	if err != nil {
		return "", err
	}

	for _, rank := range ranks {
		if points >= rank.MinPoints && points <= rank.MaxPoints {
			return rank.RankType, nil
		}
	}
	return DefaultRank, nil
}

// Invalidate drops the cached table, used after reseeding ranks.
func (s *RankService) Invalidate(ctx context.Context) {
	s.cache.Del(ctx, rankCacheKey)
}
