// Package gateway owns every live client connection of this relay instance:
// identity binding, room membership, sends and typing state. Transports
// (WebSocket) drive it; the fanout coordinator delivers through it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/broker"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/fanout"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/protocol"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/ratelimit"
	"go.uber.org/zap"
)

// Transport is the outbound half of a client connection.
type Transport interface {
	// TrySend enqueues frame without blocking. A full queue closes the
	// transport and reports false.
	TrySend(frame []byte) bool
	Close()
}

type Store interface {
	Append(ctx context.Context, roomID string, msg domain.Message) (domain.Message, error)
}

type Broker interface {
	Publish(ctx context.Context, roomID string, env broker.Envelope) error
	Subscribe(ctx context.Context, roomID string, h broker.Handler) error
	Unsubscribe(ctx context.Context, roomID string) error
}

type Presence interface {
	Heartbeat(ctx context.Context, userID, connID string) error
}

type Limiter interface {
	TryConsume(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error)
}

// Membership answers whether a user may join a room. A nil Membership admits everyone.
type Membership interface {
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

type Config struct {
	InstanceID        string
	SendLimit         int
	SendWindow        time.Duration
	MaxTextLength     int
	TypingTimeout     time.Duration
	HeartbeatInterval time.Duration
	IOTimeout         time.Duration
	DedupWindow       int
}

func DefaultConfig(instanceID string) Config {
	return Config{
		InstanceID:        instanceID,
		SendLimit:         20,
		SendWindow:        60 * time.Second,
		MaxTextLength:     domain.MaxTextLength,
		TypingTimeout:     3 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		IOTimeout:         3 * time.Second,
		DedupWindow:       fanout.DefaultDedupWindow,
	}
}

type connection struct {
	id        ConnectionID
	transport Transport
	done      chan struct{}

	mu        sync.Mutex
	identity  domain.Identity
	bound     bool
	roomID    string
	typing    *time.Timer
	typingSeq uint64
	closed    bool
}

type Gateway struct {
	cfg        Config
	store      Store
	bus        Broker
	presence   Presence
	limiter    Limiter
	membership Membership

	reg    *registry
	rooms  *roomTable
	fanout *fanout.Coordinator
	now    func() time.Time
}

func New(cfg Config, store Store, bus Broker, presence Presence, limiter Limiter, membership Membership) *Gateway {
	g := &Gateway{
		cfg:        cfg,
		store:      store,
		bus:        bus,
		presence:   presence,
		limiter:    limiter,
		membership: membership,
		reg:        newRegistry(),
		rooms:      newRoomTable(),
		now:        time.Now,
	}
	g.fanout = fanout.New(g, cfg.InstanceID, cfg.DedupWindow)
	return g
}

// Fanout exposes the coordinator that receives this instance's broker events.
func (g *Gateway) Fanout() *fanout.Coordinator {
	return g.fanout
}

// Connect registers a transport. A non-zero identity binds the connection
// immediately; otherwise the first join binds it.
func (g *Gateway) Connect(t Transport, ident domain.Identity) ConnectionID {
	c := &connection{transport: t, done: make(chan struct{})}
	id := g.reg.insert(c)

	if !ident.IsZero() {
		c.mu.Lock()
		g.bindLocked(c, ident)
		c.mu.Unlock()
	}

	observability.WebSocketConnectionsTotal.Inc()
	observability.GetLogger(context.Background()).Debug("gateway: connected", zap.String("connection_id", id.String()), zap.String("user_id", ident.UserID))
	return id
}

func (g *Gateway) bindLocked(c *connection, ident domain.Identity) {
	c.identity = ident
	c.bound = true
	g.reg.acquireUser(ident.UserID)
	g.startHeartbeat(c.id.String(), ident.UserID, c.done)
}

// authorizeLocked resolves the identity a room operation acts as. Payload
// identity is only accepted for a connection that is not yet bound.
func (g *Gateway) authorizeLocked(c *connection, userID, username string) (domain.Identity, error) {
	if c.bound {
		if userID != "" && userID != c.identity.UserID {
			return domain.Identity{}, fmt.Errorf("%w: user %q does not match connection identity", domain.ErrUnauthorized, userID)
		}
		return c.identity, nil
	}
	if userID == "" {
		return domain.Identity{}, fmt.Errorf("%w: connection is not authenticated", domain.ErrUnauthorized)
	}
	g.bindLocked(c, domain.Identity{UserID: userID, Username: username})
	return c.identity, nil
}

// JoinRoom moves the connection into roomID, leaving any previous room.
// Rejoining the current room is a no-op apart from a presence heartbeat.
func (g *Gateway) JoinRoom(ctx context.Context, id ConnectionID, roomID, userID, username string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room id is required", domain.ErrInvalidInput)
	}

	c, ok := g.reg.get(id)
	if !ok {
		return domain.ErrConnectionClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectionClosed
	}

	ident, err := g.authorizeLocked(c, userID, username)
	if err != nil {
		return err
	}

	log := observability.GetLogger(ctx).With(
		zap.String("connection_id", id.String()),
		zap.String("user_id", ident.UserID),
		zap.String("room_id", roomID),
	)

	if c.roomID == roomID {
		g.heartbeat(ctx, ident.UserID, id.String())
		return nil
	}

	if g.membership != nil {
		mctx, cancel := context.WithTimeout(ctx, g.cfg.IOTimeout)
		member, err := g.membership.IsMember(mctx, roomID, ident.UserID)
		cancel()
		if err != nil {
			return fmt.Errorf("membership lookup: %w", err)
		}
		if !member {
			return domain.ErrNotMember
		}
	}

	if c.roomID != "" {
		g.leaveLocked(ctx, c, true)
	}

	sctx, cancel := context.WithTimeout(ctx, g.cfg.IOTimeout)
	if err := g.bus.Subscribe(sctx, roomID, g.fanout.OnBrokerEvent); err != nil {
		log.Warn("gateway: broker subscribe failed, room is local only", zap.Error(err))
	}
	cancel()

	rc := g.rooms.channel(roomID)
	firstForUser := rc.add(c, ident.UserID)
	c.roomID = roomID

	g.heartbeat(ctx, ident.UserID, id.String())

	if firstForUser {
		g.broadcastPresence(rc, protocol.EventUserJoined, ident, id)
	}
	log.Info("gateway: joined room")
	return nil
}

// LeaveCurrentRoom removes the connection from its room, if any.
func (g *Gateway) LeaveCurrentRoom(ctx context.Context, id ConnectionID) error {
	c, ok := g.reg.get(id)
	if !ok {
		return domain.ErrConnectionClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	g.leaveLocked(ctx, c, true)
	return nil
}

// leaveLocked stops typing, drops the room membership and its broker
// reference. With notify, remaining members hear user-left unless the user
// still has another local connection in the room.
func (g *Gateway) leaveLocked(ctx context.Context, c *connection, notify bool) {
	roomID := c.roomID
	if roomID == "" {
		return
	}

	if g.clearTypingLocked(c) {
		g.emitTypingLocked(ctx, c, roomID, false)
	}

	rc := g.rooms.lookup(roomID)
	if rc != nil {
		rc.remove(c.id)
	}
	c.roomID = ""

	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.IOTimeout)
	if err := g.bus.Unsubscribe(uctx, roomID); err != nil {
		observability.GetLogger(ctx).Warn("gateway: broker unsubscribe failed", zap.String("room_id", roomID), zap.Error(err))
	}
	cancel()

	if notify && rc != nil && !rc.hasUser(c.identity.UserID, c.id) {
		g.broadcastPresence(rc, protocol.EventUserLeft, c.identity, c.id)
	}
}

// SendMessage sends text from the connection's user to its current room.
// roomID may be empty; a non-empty roomID must name the joined room.
func (g *Gateway) SendMessage(ctx context.Context, id ConnectionID, roomID, text, kind string) (domain.Message, error) {
	c, ok := g.reg.get(id)
	if !ok {
		return domain.Message{}, domain.ErrConnectionClosed
	}

	c.mu.Lock()
	ident, current := c.identity, c.roomID
	c.mu.Unlock()

	if current == "" || (roomID != "" && roomID != current) {
		return domain.Message{}, domain.ErrRoomNotJoined
	}

	k, err := domain.ParseKind(kind)
	if err != nil {
		observability.MessagesSentTotal.WithLabelValues("invalid").Inc()
		return domain.Message{}, err
	}

	msg, err := g.Send(ctx, ident, current, text, k, id.String())
	if err != nil {
		return domain.Message{}, err
	}

	// a sent message ends the typing indicator
	if err := g.StopTyping(ctx, id); err != nil && !errors.Is(err, domain.ErrRoomNotJoined) && !errors.Is(err, domain.ErrConnectionClosed) {
		observability.GetLogger(ctx).Debug("gateway: stop typing after send", zap.Error(err))
	}
	return msg, nil
}

// Send validates, rate limits and durably appends a message, then delivers it
// to local members and publishes it to other instances. The message is
// accepted once the store has it; a failed publish only degrades fanout.
// origin names the sending connection, empty for non-connection senders.
func (g *Gateway) Send(ctx context.Context, author domain.Identity, roomID, text string, kind domain.Kind, origin string) (domain.Message, error) {
	log := observability.GetLogger(ctx).With(zap.String("room_id", roomID), zap.String("user_id", author.UserID))

	msg, err := domain.NewMessage(roomID, author, text, kind, g.now(), g.cfg.MaxTextLength)
	if err != nil {
		observability.MessagesSentTotal.WithLabelValues("invalid").Inc()
		return domain.Message{}, err
	}

	lctx, cancel := context.WithTimeout(ctx, g.cfg.IOTimeout)
	allowed, err := g.limiter.TryConsume(lctx, author.UserID, ratelimit.ActionSendMessage, g.cfg.SendLimit, g.cfg.SendWindow)
	cancel()
	switch {
	case err != nil:
		log.Warn("gateway: rate limiter unavailable, admitting send", zap.Error(err))
	case !allowed:
		observability.MessagesSentTotal.WithLabelValues("rate_limited").Inc()
		observability.RateLimitedTotal.WithLabelValues(ratelimit.ActionSendMessage).Inc()
		return domain.Message{}, domain.ErrRateLimited
	}

	rc := g.rooms.channel(roomID)
	rc.sendMu.Lock()
	defer rc.sendMu.Unlock()

	actx, cancel := context.WithTimeout(ctx, g.cfg.IOTimeout)
	stored, err := g.store.Append(actx, roomID, msg)
	cancel()
	if err != nil {
		observability.MessagesSentTotal.WithLabelValues("store_error").Inc()
		log.Error("gateway: append failed", zap.Error(err))
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return domain.Message{}, err
	}

	env := broker.Envelope{
		Type:    broker.EventMessage,
		RoomID:  roomID,
		Origin:  broker.Origin{InstanceID: g.cfg.InstanceID, ConnectionID: origin},
		Message: &stored,
	}
	g.fanout.Deliver(ctx, env)

	pctx, cancel := context.WithTimeout(ctx, g.cfg.IOTimeout)
	err = g.bus.Publish(pctx, roomID, env)
	cancel()
	if err != nil {
		observability.MessagesSentTotal.WithLabelValues("accepted_degraded").Inc()
		log.Warn("gateway: publish failed, fanout degraded to local members", zap.String("message_id", stored.ID), zap.Error(err))
		return stored, nil
	}

	observability.MessagesSentTotal.WithLabelValues("ok").Inc()
	return stored, nil
}

// Disconnect releases everything the connection holds. It is safe to call
// more than once and with stale handles. The presence key is left to lapse.
func (g *Gateway) Disconnect(ctx context.Context, id ConnectionID) {
	c, ok := g.reg.remove(id)
	if !ok {
		return
	}

	c.mu.Lock()
	c.closed = true
	close(c.done)
	ident, bound := c.identity, c.bound
	remaining := 0
	if bound {
		remaining = g.reg.releaseUser(ident.UserID)
	}
	// user-left only once the user has no local connection anywhere
	g.leaveLocked(ctx, c, remaining == 0)
	c.mu.Unlock()

	observability.WebSocketConnectionsTotal.Dec()
	observability.GetLogger(ctx).Debug("gateway: disconnected", zap.String("connection_id", id.String()), zap.String("user_id", ident.UserID))
}

// Shutdown closes every live transport. Their read loops then Disconnect.
func (g *Gateway) Shutdown() {
	for _, c := range g.reg.all() {
		c.transport.Close()
	}
}

// Broadcast implements fanout.Broadcaster. skip is a ConnectionID string or empty.
func (g *Gateway) Broadcast(roomID string, frame []byte, skip string) int {
	rc := g.rooms.lookup(roomID)
	if rc == nil {
		return 0
	}

	var skipID ConnectionID
	if skip != "" {
		if id, err := ParseConnectionID(skip); err == nil {
			skipID = id
		}
	}
	return rc.broadcast(frame, skipID)
}

func (g *Gateway) ConnectionCount() int {
	return g.reg.count()
}

// UserConnections returns how many local connections are bound to userID.
func (g *Gateway) UserConnections(userID string) int {
	return g.reg.userConnections(userID)
}

// LocalMembers returns the number of local connections in roomID.
func (g *Gateway) LocalMembers(roomID string) int {
	rc := g.rooms.lookup(roomID)
	if rc == nil {
		return 0
	}
	return rc.size()
}

// CurrentRoom returns the room the connection is in, or "".
func (g *Gateway) CurrentRoom(id ConnectionID) string {
	c, ok := g.reg.get(id)
	if !ok {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (g *Gateway) broadcastPresence(rc *roomChannel, event string, ident domain.Identity, skip ConnectionID) {
	frame, err := protocol.Encode(event, protocol.PresencePayload{
		UserID:    ident.UserID,
		Username:  ident.DisplayName(),
		Timestamp: g.now().UnixMilli(),
	})
	if err != nil {
		observability.GetLogger(context.Background()).Error("gateway: encode presence", zap.String("event", event), zap.Error(err))
		return
	}
	rc.broadcast(frame, skip)
}
