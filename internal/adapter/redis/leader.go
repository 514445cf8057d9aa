package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/rankpulse/internal/app"
)

const (
	reconcileLeaderKey = "rankpulse:reconcile:leader"
	defaultLockTTL     = 5 * time.Minute
)

// releaseScript deletes the lock only while it still holds our instance id.
var releaseScript = goredis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// LeaderElector hands the reconciliation pass to one instance at a time
// using SET NX with a TTL, so a crashed leader frees the lock on expiry.
type LeaderElector struct {
	rdb        goredis.Cmdable
	instanceID string
	lockKey    string
	lockTTL    time.Duration
}

var _ app.Leadership = (*LeaderElector)(nil)

// NewLeaderElector creates a leader election coordinator. instanceID must be
// unique per instance (e.g. hostname-PID). A non-positive lockTTL uses the default.
func NewLeaderElector(rdb goredis.Cmdable, instanceID string, lockTTL time.Duration) *LeaderElector {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &LeaderElector{
		rdb:        rdb,
		instanceID: instanceID,
		lockKey:    reconcileLeaderKey,
		lockTTL:    lockTTL,
	}
}

// TryAcquire reports whether this instance holds the lock after the call.
// Re-acquiring a lock we already hold extends it.
func (l *LeaderElector) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.lockKey, l.instanceID, l.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lock: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := l.rdb.Get(ctx, l.lockKey).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check leader: %w", err)
	}
	if current != l.instanceID {
		return false, nil
	}

	if err := l.rdb.Expire(ctx, l.lockKey, l.lockTTL).Err(); err != nil {
		return false, fmt.Errorf("failed to renew leader lock: %w", err)
	}
	return true, nil
}

// Release gives up leadership if this instance still holds it.
func (l *LeaderElector) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.lockKey}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release leader lock: %w", err)
	}
	return nil
}
