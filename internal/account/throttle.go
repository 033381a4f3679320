package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"member-portal/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const throttleKeyPrefix = "portal:login_failures:"

// RedisThrottle counts failed logins per email in a fixed window.
type RedisThrottle struct {
	rdb         *redis.Client
	maxFailures int64
	window      time.Duration
}

func NewRedisThrottle(rdb *redis.Client, maxFailures int, window time.Duration) (*RedisThrottle, error) {
	if rdb == nil {
		return nil, errors.New("account: redis client is required")
	}
	if maxFailures <= 0 || window <= 0 {
		return nil, errors.New("account: throttle limits must be positive")
	}
	return &RedisThrottle{rdb: rdb, maxFailures: int64(maxFailures), window: window}, nil
}

func (t *RedisThrottle) Blocked(ctx context.Context, email string) (bool, error) {
	n, err := utils.WindowCount(ctx, t.rdb, throttleKey(email))
	if err != nil {
		return false, err
	}
	return n >= t.maxFailures, nil
}

func (t *RedisThrottle) RecordFailure(ctx context.Context, email string) error {
	_, err := utils.IncrWindow(ctx, t.rdb, throttleKey(email), t.window)
	return err
}

func (t *RedisThrottle) Reset(ctx context.Context, email string) error {
	return t.rdb.Del(ctx, throttleKey(email)).Err()
}

// Emails are hashed so the keyspace does not hold addresses in clear.
func throttleKey(email string) string {
	sum := sha256.Sum256([]byte(email))
	return throttleKeyPrefix + hex.EncodeToString(sum[:16])
}
