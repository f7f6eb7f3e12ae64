// Package broker carries room events between relay instances.
package broker

import (
	"context"
)

// Handler receives raw payloads published to a room. Backends call it from
// their own delivery goroutine, in publish order per room.
type Handler func(ctx context.Context, roomID string, payload []byte)

// Backend is a room-scoped publish/subscribe transport shared by every relay
// instance. Subscribe and Unsubscribe are only called on the transitions the
// Bridge decides; backends keep at most one subscription per room.
type Backend interface {
	Name() string
	Publish(ctx context.Context, roomID string, payload []byte) error
	Subscribe(ctx context.Context, roomID string, h Handler) error
	Unsubscribe(ctx context.Context, roomID string) error
	Ping(ctx context.Context) error
	Close() error
}
