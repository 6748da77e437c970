package cache

import (
	"context"
	"time"

	"decaldesk/backend/internal/domain"
)

type LeaderboardCache interface {
	Get(ctx context.Context, key string) ([]domain.LeaderboardEntry, bool, error)
	Set(ctx context.Context, key string, entries []domain.LeaderboardEntry, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type NoopLeaderboardCache struct{}

func (NoopLeaderboardCache) Get(_ context.Context, _ string) ([]domain.LeaderboardEntry, bool, error) {
	return nil, false, nil
}

func (NoopLeaderboardCache) Set(_ context.Context, _ string, _ []domain.LeaderboardEntry, _ time.Duration) error {
	return nil
}

func (NoopLeaderboardCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
