// Package websocket adapts gorilla WebSocket connections to the gateway: it
// authenticates the upgrade, decodes client frames into gateway operations
// and writes server frames back.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/gateway"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/identity"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxMalformed consecutive undecodable frames close the connection.
const maxMalformed = 3

type Handler struct {
	gateway   *gateway.Gateway
	resolver  identity.Resolver
	queueSize int
}

func NewHandler(gw *gateway.Gateway, resolver identity.Resolver, queueSize int) *Handler {
	return &Handler{
		gateway:   gw,
		resolver:  resolver,
		queueSize: queueSize,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := observability.GetLogger(r.Context())

	ident, err := h.resolver.Resolve(r)
	if err != nil {
		http.Error(w, domain.PublicMessage(err), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("upgrade error", zap.Error(err))
		return
	}

	session := NewSession(uuid.NewString(), conn, h.queueSize)
	id := h.gateway.Connect(session, ident)
	session.Start()
	log.Info("connected",
		zap.String("connection_id", id.String()),
		zap.String("session_id", session.ID),
		zap.String("user_id", ident.UserID),
	)

	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.readLoop(session, id)
}

func (h *Handler) readLoop(s *Session, id gateway.ConnectionID) {
	ctx := context.Background()
	log := observability.GetLogger(ctx).With(zap.String("connection_id", id.String()))

	defer func() {
		h.gateway.Disconnect(ctx, id)
		s.Close()
		log.Info("disconnected")
	}()

	malformed := 0
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("read loop error", zap.Error(err))
			}
			return
		}

		err = h.dispatch(ctx, id, raw)
		if errors.Is(err, domain.ErrMalformedEvent) {
			malformed++
		} else {
			malformed = 0
		}
		if err != nil {
			log.Debug("event rejected", zap.String("code", domain.Code(err)), zap.Error(err))
			s.TrySend(protocol.ErrorFrame(err))
		}
		if malformed >= maxMalformed {
			s.CloseWithReason(websocket.CloseUnsupportedData, "too many malformed frames")
			return
		}
	}
}

// dispatch applies one client frame to the gateway. The returned error is
// reported to this connection only.
func (h *Handler) dispatch(ctx context.Context, id gateway.ConnectionID, raw []byte) error {
	frame, err := protocol.Decode(raw)
	if err != nil {
		return err
	}

	switch frame.Event {
	case protocol.EventJoinRoom:
		var p protocol.RoomPayload
		if err := frame.Payload(&p); err != nil {
			return err
		}
		return h.gateway.JoinRoom(ctx, id, p.RoomID, p.UserID, p.Username)

	case protocol.EventLeaveRoom:
		var p protocol.RoomPayload
		if len(frame.Data) > 0 {
			if err := frame.Payload(&p); err != nil {
				return err
			}
		}
		if p.RoomID != "" && p.RoomID != h.gateway.CurrentRoom(id) {
			return domain.ErrRoomNotJoined
		}
		return h.gateway.LeaveCurrentRoom(ctx, id)

	case protocol.EventSendMessage:
		var p protocol.SendMessagePayload
		if err := frame.Payload(&p); err != nil {
			return err
		}
		_, err := h.gateway.SendMessage(ctx, id, p.RoomID, p.Message.Text, p.Message.Type)
		return err

	case protocol.EventTypingStart:
		return h.gateway.StartTyping(ctx, id)

	case protocol.EventTypingStop:
		return h.gateway.StopTyping(ctx, id)

	default:
		return fmt.Errorf("%w: unknown event %q", domain.ErrInvalidInput, frame.Event)
	}
}
