package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter implements a fixed-window counter backed by Redis. It covers
// queueless policies only; a remote counter cannot hold local waiters.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Allow consumes one permit from the policy window identified by key.
func (l *RedisLimiter) Allow(ctx context.Context, policy Policy, key string, now time.Time) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	windowSec := int64(policy.Window / time.Second)
	if windowSec < 1 {
		windowSec = 1
	}
	redisKey := l.buildKey(policy.Name, key, now.Unix()/windowSec)
	// TTL one second past the window so a roll never races the expiry.
	res, errEval := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowSec+1).Result()
	if errEval != nil {
		return false, errEval
	}
	count, ok := res.(int64)
	if !ok {
		switch v := res.(type) {
		case int:
			count = int64(v)
		case uint64:
			count = int64(v)
		default:
			return false, errors.New("rate limit redis: unexpected response type")
		}
	}
	return count <= int64(policy.PermitLimit), nil
}

func (l *RedisLimiter) buildKey(policyName, key string, windowIndex int64) string {
	if l.prefix == "" {
		return fmt.Sprintf("%s:%s:%d", policyName, key, windowIndex)
	}
	return fmt.Sprintf("%s:%s:%s:%d", l.prefix, policyName, key, windowIndex)
}
