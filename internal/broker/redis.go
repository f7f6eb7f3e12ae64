package broker

import (
	"context"
	"strings"
	"sync"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisChannelPrefix = "chat:"

// Redis relays room events over Redis pub/sub, one channel per room, all
// multiplexed on a single subscriber connection.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub

	mu       sync.RWMutex
	handlers map[string]Handler

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedis(client *redis.Client) *Redis {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Redis{
		client:   client,
		pubsub:   client.Subscribe(ctx),
		handlers: make(map[string]Handler),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.loop(ctx)
	return r
}

func (r *Redis) channel(roomID string) string {
	return redisChannelPrefix + roomID
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Publish(ctx context.Context, roomID string, payload []byte) error {
	return r.client.Publish(ctx, r.channel(roomID), payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, roomID string, h Handler) error {
	r.mu.Lock()
	r.handlers[roomID] = h
	r.mu.Unlock()

	if err := r.pubsub.Subscribe(ctx, r.channel(roomID)); err != nil {
		r.mu.Lock()
		delete(r.handlers, roomID)
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Redis) Unsubscribe(ctx context.Context, roomID string) error {
	r.mu.Lock()
	delete(r.handlers, roomID)
	r.mu.Unlock()

	return r.pubsub.Unsubscribe(ctx, r.channel(roomID))
}

func (r *Redis) loop(ctx context.Context) {
	defer close(r.done)
	log := observability.GetLogger(ctx)

	ch := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Warn("broker: redis pubsub channel closed")
				return
			}
			roomID := strings.TrimPrefix(msg.Channel, redisChannelPrefix)

			r.mu.RLock()
			h := r.handlers[roomID]
			r.mu.RUnlock()
			if h == nil {
				log.Debug("broker: message for unsubscribed room", zap.String("room_id", roomID))
				continue
			}
			h(ctx, roomID, []byte(msg.Payload))
		}
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	r.cancel()
	err := r.pubsub.Close()
	<-r.done
	return err
}
