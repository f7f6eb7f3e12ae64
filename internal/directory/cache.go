package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultCacheTTL = time.Hour

// Cached keeps profiles in Redis in front of another Directory. Membership
// is never cached. Cache failures fall through to the backing directory.
type Cached struct {
	next Directory
	r    *redis.Client
	ttl  time.Duration
}

func NewCached(next Directory, r *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, r: r, ttl: ttl}
}

func key(id string) string { return "profile:" + id }

func (c *Cached) Profiles(ctx context.Context, userIDs []string) (map[string]domain.Identity, error) {
	out := make(map[string]domain.Identity, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = key(id)
	}

	var missing []string
	vals, err := c.r.MGet(ctx, keys...).Result()
	if err != nil {
		observability.GetLogger(ctx).Warn("directory: profile cache read failed", zap.Error(err))
		missing = userIDs
	} else {
		for i, v := range vals {
			s, ok := v.(string)
			var ident domain.Identity
			if !ok || json.Unmarshal([]byte(s), &ident) != nil {
				missing = append(missing, userIDs[i])
				continue
			}
			out[userIDs[i]] = ident
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.next.Profiles(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := c.r.Pipeline()
	for id, ident := range fetched {
		out[id] = ident
		b, err := json.Marshal(ident)
		if err != nil {
			continue
		}
		pipe.Set(ctx, key(id), b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		observability.GetLogger(ctx).Warn("directory: profile cache write failed", zap.Error(err))
	}
	return out, nil
}

func (c *Cached) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return c.next.IsMember(ctx, roomID, userID)
}

// Invalidate drops a cached profile.
func (c *Cached) Invalidate(ctx context.Context, userID string) error {
	return c.r.Del(ctx, key(userID)).Err()
}
