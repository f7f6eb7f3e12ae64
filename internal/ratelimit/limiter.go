// Package ratelimit implements per-user fixed window counters.
package ratelimit

import (
	"context"
	"time"
)

const ActionSendMessage = "send_message"

// Limiter admits at most limit events per (user, action) in each window.
// The window starts at the first admitted event; denied attempts do not
// count against the next window.
type Limiter interface {
	TryConsume(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error)
}
