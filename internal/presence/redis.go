package presence

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
)

const onlineUsersKey = "presence:online"

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func connKey(userID, connID string) string {
	return "presence:conn:" + userID + ":" + connID
}

func userConnsKey(userID string) string {
	return "presence:user:" + userID + ":conns"
}

// Heartbeat (re)arms the connection key for one TTL. There is no explicit
// offline call; a connection that stops heartbeating lapses on its own.
func (p *Redis) Heartbeat(ctx context.Context, userID, connID string) error {
	pipe := p.client.TxPipeline()

	pipe.Set(ctx, connKey(userID, connID), strconv.FormatInt(time.Now().UnixMilli(), 10), p.ttl)
	pipe.SAdd(ctx, userConnsKey(userID), connID)
	pipe.Expire(ctx, userConnsKey(userID), p.ttl+time.Hour)
	pipe.SAdd(ctx, onlineUsersKey, userID)

	_, err := pipe.Exec(ctx)
	return err
}

func (p *Redis) IsOnline(ctx context.Context, userID string) (bool, error) {
	live, err := p.liveConnections(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(live) > 0, nil
}

// ListOnline returns the online users sorted by id, pruning users whose
// connections have all lapsed.
func (p *Redis) ListOnline(ctx context.Context) ([]string, error) {
	log := observability.GetLogger(ctx)

	users, err := p.client.SMembers(ctx, onlineUsersKey).Result()
	if err != nil {
		return nil, err
	}

	online := make([]string, 0, len(users))
	var stale []any
	for _, userID := range users {
		live, err := p.liveConnections(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(live) == 0 {
			stale = append(stale, userID)
			continue
		}
		online = append(online, userID)
	}

	if len(stale) > 0 {
		if err := p.client.SRem(ctx, onlineUsersKey, stale...).Err(); err != nil {
			log.Warn("presence: fail to prune offline users", zap.Int("count", len(stale)), zap.Error(err))
		}
	}

	sort.Strings(online)
	return online, nil
}

func (p *Redis) liveConnections(ctx context.Context, userID string) ([]string, error) {
	log := observability.GetLogger(ctx)

	connIDs, err := p.client.SMembers(ctx, userConnsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(connIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(connIDs))
	for i, cID := range connIDs {
		keys[i] = connKey(userID, cID)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var (
		live  []string
		stale []any
	)
	for i, v := range values {
		if v == nil {
			stale = append(stale, connIDs[i])
			continue
		}
		live = append(live, connIDs[i])
	}

	if len(stale) > 0 {
		if err := p.client.SRem(ctx, userConnsKey(userID), stale...).Err(); err != nil {
			log.Warn("presence: fail to cleanup stale connections", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return live, nil
}

func (p *Redis) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
