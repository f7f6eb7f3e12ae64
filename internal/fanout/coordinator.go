// Package fanout turns room events into frames for the locally connected
// members of a room, exactly once per message and in the same order for every
// member.
package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/broker"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/protocol"
	"go.uber.org/zap"
)

const DefaultDedupWindow = 256

// Broadcaster enqueues a frame to every local member of a room except the
// connection named by skip. It must not block.
type Broadcaster interface {
	Broadcast(roomID string, frame []byte, skip string) int
}

type roomState struct {
	mu   sync.Mutex
	seen *idRing
}

type Coordinator struct {
	members    Broadcaster
	instanceID string
	window     int

	mu    sync.Mutex
	rooms map[string]*roomState
}

func New(members Broadcaster, instanceID string, window int) *Coordinator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Coordinator{
		members:    members,
		instanceID: instanceID,
		window:     window,
		rooms:      make(map[string]*roomState),
	}
}

func (c *Coordinator) room(roomID string) *roomState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.rooms[roomID]
	if !ok {
		st = &roomState{seen: newIDRing(c.window)}
		c.rooms[roomID] = st
	}
	return st
}

// OnBrokerEvent is the broker.Handler for every room subscription of this
// instance. Malformed payloads are logged, counted and dropped.
func (c *Coordinator) OnBrokerEvent(ctx context.Context, roomID string, raw []byte) {
	log := observability.GetLogger(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			observability.FanoutDroppedTotal.WithLabelValues("panic").Inc()
			log.Error("fanout: panic while delivering", zap.String("room_id", roomID), zap.Any("panic", rec))
		}
	}()

	env, err := broker.ParseEnvelope(raw)
	if err == nil && env.RoomID != roomID {
		err = fmt.Errorf("%w: envelope for room %q on room %q", domain.ErrMalformedEvent, env.RoomID, roomID)
	}
	if err != nil {
		observability.FanoutDroppedTotal.WithLabelValues("malformed").Inc()
		log.Warn("fanout: dropping malformed event", zap.String("room_id", roomID), zap.Error(err))
		return
	}

	// typing is delivered locally before it is published, so our own echo is redundant
	if env.Type == broker.EventTyping && env.Origin.InstanceID == c.instanceID {
		observability.FanoutDroppedTotal.WithLabelValues("own_echo").Inc()
		return
	}

	c.Deliver(ctx, env)
}

// Deliver hands env to local members. Message events are deduplicated by id
// within the room; it reports whether anything was delivered.
func (c *Coordinator) Deliver(ctx context.Context, env broker.Envelope) bool {
	log := observability.GetLogger(ctx)

	switch env.Type {
	case broker.EventMessage:
		if env.Message == nil {
			return false
		}
		st := c.room(env.RoomID)
		st.mu.Lock()
		defer st.mu.Unlock()

		if st.seen.Contains(env.Message.ID) {
			observability.FanoutDroppedTotal.WithLabelValues("duplicate").Inc()
			return false
		}
		st.seen.Add(env.Message.ID)

		frame, err := protocol.Encode(protocol.EventNewMessage, env.Message)
		if err != nil {
			log.Error("fanout: encode message", zap.String("room_id", env.RoomID), zap.Error(err))
			return false
		}
		n := c.members.Broadcast(env.RoomID, frame, "")
		observability.FanoutDeliveredTotal.Add(float64(n))
		return true

	case broker.EventTyping:
		frame, err := protocol.Encode(protocol.EventUserTyping, env.Typing)
		if err != nil {
			log.Error("fanout: encode typing", zap.String("room_id", env.RoomID), zap.Error(err))
			return false
		}

		skip := ""
		if env.Origin.InstanceID == c.instanceID {
			skip = env.Origin.ConnectionID
		}

		st := c.room(env.RoomID)
		st.mu.Lock()
		n := c.members.Broadcast(env.RoomID, frame, skip)
		st.mu.Unlock()

		observability.FanoutDeliveredTotal.Add(float64(n))
		return true

	default:
		observability.FanoutDroppedTotal.WithLabelValues("unknown_type").Inc()
		log.Warn("fanout: unknown event type", zap.String("room_id", env.RoomID), zap.String("type", string(env.Type)))
		return false
	}
}
