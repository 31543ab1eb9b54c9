package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"kvizmajstor/internal/app"
)

const leaderboardKey = "leaderboard:total"

// Leaderboard keeps the global standings in a Redis sorted set, shared by
// every instance of the service.
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

func (l *Leaderboard) RecordScore(ctx context.Context, userID string, delta int) error {
	if err := l.client.ZIncrBy(ctx, leaderboardKey, float64(delta), userID).Err(); err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

func (l *Leaderboard) Top(ctx context.Context, n int) ([]app.RankedUser, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read standings: %w", err)
	}
	ranked := make([]app.RankedUser, 0, len(rows))
	for _, row := range rows {
		userID, ok := row.Member.(string)
		if !ok {
			continue
		}
		ranked = append(ranked, app.RankedUser{UserID: userID, Score: int(row.Score)})
	}
	return ranked, nil
}
