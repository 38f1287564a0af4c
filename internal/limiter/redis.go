package limiter

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failKeyPrefix  = "eventcert:verify:fails:"
	blockKeyPrefix = "eventcert:verify:block:"
)

// incrWindow bumps the fail counter and gives it a TTL in the same server-side step.
// A counter left without expiry gets one on the next failure.
const incrWindow = `
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n`

// RedisCmds is the subset of *redis.Client the limiter uses.
type RedisCmds interface {
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Redis is a limiter sharing counters between instances through Redis key expiry.
type Redis struct {
	client   RedisCmds
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(client RedisCmds, window time.Duration, maxFails int, blockFor time.Duration) *Redis {
	return &Redis{client: client, window: window, maxFails: maxFails, blockFor: blockFor}
}

// Allow reports whether the client has no active block.
func (l *Redis) Allow(ctx context.Context, ipHash []byte) (bool, time.Duration, error) {
	d, err := l.client.PTTL(ctx, blockKeyPrefix+hex.EncodeToString(ipHash)).Result()
	if err != nil {
		return false, 0, err
	}
	// -2 (missing) and -1 (no expiry) come back as raw negative durations.
	if d > 0 {
		return false, d, nil
	}
	return true, 0, nil
}

// Failure increments the window counter and sets a block key once maxFails is reached.
func (l *Redis) Failure(ctx context.Context, ipHash []byte) (bool, time.Duration, error) {
	id := hex.EncodeToString(ipHash)
	fails, err := l.client.Eval(ctx, incrWindow, []string{failKeyPrefix + id}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	if fails < int64(l.maxFails) {
		return false, 0, nil
	}
	if err = l.client.Set(ctx, blockKeyPrefix+id, "1", l.blockFor).Err(); err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
