package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/rankpulse/internal/pairing"
)

const recentPairsKey = "rankpulse:recent"

// RecentPairs is a pairing.RecentSet shared by every instance. The list is
// trimmed to capacity on each push, oldest entries first out.
type RecentPairs struct {
	rdb      goredis.Cmdable
	capacity int
}

var _ pairing.RecentSet = (*RecentPairs)(nil)

func NewRecentPairs(rdb goredis.Cmdable, capacity int) *RecentPairs {
	if capacity <= 0 {
		capacity = pairing.DefaultRecentCapacity
	}
	return &RecentPairs{rdb: rdb, capacity: capacity}
}

func (r *RecentPairs) Recent(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.LRange(ctx, recentPairsKey, 0, -1).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("failed to read recent pairs: %w", err)
	}
	return ids, nil
}

func (r *RecentPairs) Push(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}

	// Pipeline: RPUSH, LTRIM
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, recentPairsKey, values...)
	pipe.LTrim(ctx, recentPairsKey, int64(-r.capacity), -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record recent pair: %w", err)
	}
	return nil
}
