// Package protocol defines the JSON frames exchanged with WebSocket clients.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
)

// Client to server events.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
)

// Server to client events.
const (
	EventNewMessage = "new-message"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventUserTyping = "user-typing"
	EventError      = "error"
)

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type RoomPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

type SendMessagePayload struct {
	RoomID  string        `json:"roomId"`
	Message ClientMessage `json:"message"`
}

// ClientMessage is the message as drafted by the client. Only Text and Type
// are trusted; the author comes from the connection and the id from the store.
type ClientMessage struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text"`
	Type      string `json:"type,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type PresencePayload struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

type TypingPayload struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	IsTyping  bool   `json:"isTyping"`
	Timestamp int64  `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// Decode parses an inbound frame. Frames without an event name are malformed.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("%w: missing event", domain.ErrMalformedEvent)
	}
	return f, nil
}

// Payload unmarshals the frame data into v.
func (f Frame) Payload(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s requires data", domain.ErrMalformedEvent, f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, f.Event, err)
	}
	return nil
}

func ErrorFrame(err error) []byte {
	b, _ := Encode(EventError, ErrorPayload{
		Message: domain.PublicMessage(err),
		Code:    domain.Code(err),
	})
	return b
}
