package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"go.uber.org/zap"
)

type roomRef struct {
	mu         sync.Mutex
	members    int
	subscribed bool
}

// Bridge reference counts local room members so that each instance holds a
// single backend subscription per room: the first local joiner subscribes and
// the last leaver unsubscribes. A failed subscribe is retried on the next join.
type Bridge struct {
	backend Backend

	mu    sync.Mutex
	rooms map[string]*roomRef
}

func NewBridge(backend Backend) *Bridge {
	return &Bridge{
		backend: backend,
		rooms:   make(map[string]*roomRef),
	}
}

func (b *Bridge) ref(roomID string) *roomRef {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.rooms[roomID]
	if !ok {
		r = &roomRef{}
		b.rooms[roomID] = r
	}
	return r
}

func (b *Bridge) Publish(ctx context.Context, roomID string, env Envelope) error {
	payload, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.backend.Publish(ctx, roomID, payload); err != nil {
		observability.BrokerPublishFailuresTotal.WithLabelValues(b.backend.Name()).Inc()
		return fmt.Errorf("%w: publish %s: %v", domain.ErrBrokerUnavailable, roomID, err)
	}
	return nil
}

// Subscribe counts one more local member of roomID and makes sure the backend
// subscription exists, delivering to h.
func (b *Bridge) Subscribe(ctx context.Context, roomID string, h Handler) error {
	r := b.ref(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members++
	if r.subscribed {
		return nil
	}

	if err := b.backend.Subscribe(ctx, roomID, h); err != nil {
		return fmt.Errorf("%w: subscribe %s: %v", domain.ErrBrokerUnavailable, roomID, err)
	}
	r.subscribed = true
	observability.BrokerSubscriptionsActive.Inc()
	observability.GetLogger(ctx).Debug("broker: subscribed", zap.String("room_id", roomID), zap.String("backend", b.backend.Name()))
	return nil
}

// Unsubscribe counts one less local member and drops the backend subscription
// with the last one. Extra calls are ignored.
func (b *Bridge) Unsubscribe(ctx context.Context, roomID string) error {
	r := b.ref(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members == 0 {
		return nil
	}
	r.members--
	if r.members > 0 || !r.subscribed {
		return nil
	}

	r.subscribed = false
	observability.BrokerSubscriptionsActive.Dec()
	if err := b.backend.Unsubscribe(ctx, roomID); err != nil {
		return fmt.Errorf("%w: unsubscribe %s: %v", domain.ErrBrokerUnavailable, roomID, err)
	}
	observability.GetLogger(ctx).Debug("broker: unsubscribed", zap.String("room_id", roomID), zap.String("backend", b.backend.Name()))
	return nil
}

// Members returns the local member count the bridge holds for roomID.
func (b *Bridge) Members(roomID string) int {
	r := b.ref(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members
}

func (b *Bridge) Subscribed(roomID string) bool {
	r := b.ref(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribed
}

func (b *Bridge) Ping(ctx context.Context) error {
	return b.backend.Ping(ctx)
}

func (b *Bridge) Close() error {
	return b.backend.Close()
}
