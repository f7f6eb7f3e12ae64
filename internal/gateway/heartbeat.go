package gateway

import (
	"context"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"go.uber.org/zap"
)

// startHeartbeat refreshes the connection's presence key until done closes.
func (g *Gateway) startHeartbeat(connID, userID string, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(g.cfg.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				g.heartbeat(context.Background(), userID, connID)
			case <-done:
				return
			}
		}
	}()
}

func (g *Gateway) heartbeat(ctx context.Context, userID, connID string) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.IOTimeout)
	defer cancel()

	if err := g.presence.Heartbeat(hctx, userID, connID); err != nil {
		observability.GetLogger(ctx).Warn("presence: heartbeat failed",
			zap.String("user_id", userID),
			zap.String("connection_id", connID),
			zap.Error(err),
		)
	}
}
