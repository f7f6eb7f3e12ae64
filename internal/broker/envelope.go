package broker

import (
	"encoding/json"
	"fmt"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/protocol"
)

type EventType string

const (
	EventMessage EventType = "new-message"
	EventTyping  EventType = "user-typing"
)

// Origin identifies the instance and connection an event was produced by.
type Origin struct {
	InstanceID   string `json:"instanceId"`
	ConnectionID string `json:"connectionId,omitempty"`
}

// Envelope is the inter-instance event carried on the broker.
type Envelope struct {
	Type    EventType               `json:"type"`
	RoomID  string                  `json:"roomId"`
	Origin  Origin                  `json:"origin"`
	Message *domain.Message         `json:"message,omitempty"`
	Typing  *protocol.TypingPayload `json:"typing,omitempty"`
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes and validates a broker payload. Every failure wraps
// domain.ErrMalformedEvent.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if e.RoomID == "" {
		return Envelope{}, fmt.Errorf("%w: missing room id", domain.ErrMalformedEvent)
	}

	switch e.Type {
	case EventMessage:
		if e.Message == nil || e.Message.ID == "" {
			return Envelope{}, fmt.Errorf("%w: message event without message id", domain.ErrMalformedEvent)
		}
		if e.Message.RoomID != "" && e.Message.RoomID != e.RoomID {
			return Envelope{}, fmt.Errorf("%w: message room %q does not match envelope room %q", domain.ErrMalformedEvent, e.Message.RoomID, e.RoomID)
		}
	case EventTyping:
		if e.Typing == nil || e.Typing.UserID == "" {
			return Envelope{}, fmt.Errorf("%w: typing event without user", domain.ErrMalformedEvent)
		}
	default:
		return Envelope{}, fmt.Errorf("%w: unknown event type %q", domain.ErrMalformedEvent, e.Type)
	}
	return e, nil
}
