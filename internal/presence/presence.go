// Package presence tracks which users are online from per-connection
// heartbeats. A connection is online until its heartbeat key expires, and a
// user is online while any of their connections is.
package presence

import (
	"context"
	"time"
)

const DefaultTTL = 30 * time.Second

type Tracker interface {
	Heartbeat(ctx context.Context, userID, connID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	ListOnline(ctx context.Context) ([]string, error)
}
