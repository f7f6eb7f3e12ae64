package gateway

import (
	"context"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/broker"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/protocol"
	"go.uber.org/zap"
)

// StartTyping marks the connection's user as typing in its room. Repeated
// starts only push back the automatic stop.
func (g *Gateway) StartTyping(ctx context.Context, id ConnectionID) error {
	c, ok := g.reg.get(id)
	if !ok {
		return domain.ErrConnectionClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roomID == "" {
		return domain.ErrRoomNotJoined
	}

	wasTyping := c.typing != nil
	if wasTyping {
		c.typing.Stop()
	}
	c.typingSeq++
	seq, roomID := c.typingSeq, c.roomID
	c.typing = time.AfterFunc(g.cfg.TypingTimeout, func() {
		g.expireTyping(id, roomID, seq)
	})

	if !wasTyping {
		g.emitTypingLocked(ctx, c, roomID, true)
	}
	return nil
}

func (g *Gateway) StopTyping(ctx context.Context, id ConnectionID) error {
	c, ok := g.reg.get(id)
	if !ok {
		return domain.ErrConnectionClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roomID == "" {
		return domain.ErrRoomNotJoined
	}
	if g.clearTypingLocked(c) {
		g.emitTypingLocked(ctx, c, c.roomID, false)
	}
	return nil
}

// expireTyping runs on the typing timer. A timer that lost a race with a
// newer start, a stop or a room change finds a different seq and does nothing.
func (g *Gateway) expireTyping(id ConnectionID, roomID string, seq uint64) {
	c, ok := g.reg.get(id)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.typing == nil || c.typingSeq != seq || c.roomID != roomID {
		return
	}
	c.typing = nil
	g.emitTypingLocked(context.Background(), c, roomID, false)
}

func (g *Gateway) clearTypingLocked(c *connection) bool {
	if c.typing == nil {
		return false
	}
	c.typing.Stop()
	c.typing = nil
	c.typingSeq++
	return true
}

// emitTypingLocked delivers the indicator to the room's other local members
// and publishes it for other instances.
func (g *Gateway) emitTypingLocked(ctx context.Context, c *connection, roomID string, isTyping bool) {
	env := broker.Envelope{
		Type:   broker.EventTyping,
		RoomID: roomID,
		Origin: broker.Origin{InstanceID: g.cfg.InstanceID, ConnectionID: c.id.String()},
		Typing: &protocol.TypingPayload{
			UserID:    c.identity.UserID,
			Username:  c.identity.DisplayName(),
			IsTyping:  isTyping,
			Timestamp: g.now().UnixMilli(),
		},
	}
	g.fanout.Deliver(ctx, env)

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.IOTimeout)
	defer cancel()
	if err := g.bus.Publish(pctx, roomID, env); err != nil {
		observability.GetLogger(ctx).Debug("gateway: typing publish failed", zap.String("room_id", roomID), zap.Error(err))
	}
}
