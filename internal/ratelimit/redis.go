package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow increments KEYS[1] unless it already reached ARGV[1]. The
// first increment arms an ARGV[2] ms expiry, which is the window.
var fixedWindow = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	if current >= limit then
		return 0
	end

	current = redis.call('INCR', key)
	if current == 1 or redis.call('PTTL', key) < 0 then
		redis.call('PEXPIRE', key, window_ms)
	end
	return 1
`)

type Redis struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, keyPrefix: "ratelimit:"}
}

func (l *Redis) key(userID, action string) string {
	return l.keyPrefix + userID + ":" + action
}

func (l *Redis) TryConsume(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	allowed, err := fixedWindow.Run(ctx, l.client, []string{l.key(userID, action)}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return allowed == 1, nil
}

// Reset clears the counter for one user and action.
func (l *Redis) Reset(ctx context.Context, userID, action string) error {
	return l.client.Del(ctx, l.key(userID, action)).Err()
}
