package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/directory"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/identity"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/stream"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const MaxHistoryLimit = 100

type Sender interface {
	Send(ctx context.Context, author domain.Identity, roomID, text string, kind domain.Kind, origin string) (domain.Message, error)
}

type History interface {
	ReadRange(ctx context.Context, roomID string, r stream.Range) ([]domain.Message, error)
}

type OnlineLister interface {
	ListOnline(ctx context.Context) ([]string, error)
}

type RoomHandler struct {
	sender       Sender
	history      History
	directory    directory.Directory
	historyLimit int
}

func NewRoomHandler(sender Sender, history History, dir directory.Directory, historyLimit int) *RoomHandler {
	if historyLimit <= 0 || historyLimit > MaxHistoryLimit {
		historyLimit = stream.DefaultLimit
	}
	return &RoomHandler{sender: sender, history: history, directory: dir, historyLimit: historyLimit}
}

func (h *RoomHandler) authorize(r *http.Request, roomID string) (domain.Identity, error) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	if h.directory == nil {
		return ident, nil
	}
	member, err := h.directory.IsMember(r.Context(), roomID, ident.UserID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("membership lookup: %w", err)
	}
	if !member {
		return domain.Identity{}, domain.ErrNotMember
	}
	return ident, nil
}

// ListMessages GET /api/rooms/{roomID}/messages?limit=&before=&after=
func (h *RoomHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if _, err := h.authorize(r, roomID); err != nil {
		DomainError(w, r, err)
		return
	}

	q := r.URL.Query()
	limit := h.historyLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			DomainError(w, r, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidInput))
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	msgs, err := h.history.ReadRange(r.Context(), roomID, stream.Range{
		After:  q.Get("after"),
		Before: q.Get("before"),
		Limit:  limit,
	})
	if err != nil {
		DomainError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}

	if h.directory != nil && len(msgs) > 0 {
		profiles, err := h.directory.Profiles(r.Context(), directory.Authors(msgs))
		if err != nil {
			// history without avatars beats no history
			observability.GetLogger(r.Context()).Warn("history: profile lookup failed", zap.String("room_id", roomID), zap.Error(err))
		} else {
			directory.Enrich(msgs, profiles)
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type sendRequest struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// SendMessage POST /api/rooms/{roomID}/messages
func (h *RoomHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	ident, err := h.authorize(r, roomID)
	if err != nil {
		DomainError(w, r, err)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, domain.CodeInvalidInput, "invalid json")
		return
	}
	kind, err := domain.ParseKind(req.Type)
	if err != nil {
		DomainError(w, r, err)
		return
	}

	msg, err := h.sender.Send(r.Context(), ident, roomID, req.Text, kind, "")
	if err != nil {
		DomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"data": msg})
}

type PresenceHandler struct {
	presence OnlineLister
}

func NewPresenceHandler(p OnlineLister) *PresenceHandler {
	return &PresenceHandler{presence: p}
}

// Online GET /api/presence/online
func (h *PresenceHandler) Online(w http.ResponseWriter, r *http.Request) {
	users, err := h.presence.ListOnline(r.Context())
	if err != nil {
		observability.GetLogger(r.Context()).Error("presence: list online failed", zap.Error(err))
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "presence temporarily unavailable")
		return
	}
	if users == nil {
		users = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}
