package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxTextLength = 1000

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

// ParseKind accepts both the lower and upper case spellings clients send.
// An empty kind is text.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return KindText, nil
	case "image":
		return KindImage, nil
	case "file":
		return KindFile, nil
	default:
		return "", fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, s)
	}
}

// Message Invariants:
// 1. Ordering: ID is assigned by the stream store and strictly increases within a room.
// 2. Immutability: once stored a message is never changed or reordered.
type Message struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar,omitempty"`
	Text      string `json:"text"`
	Kind      Kind   `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessage validates an outgoing message. The ID stays empty until the
// stream store accepts it. maxLen <= 0 means MaxTextLength.
func NewMessage(roomID string, author Identity, text string, kind Kind, now time.Time, maxLen int) (Message, error) {
	if roomID == "" {
		return Message{}, fmt.Errorf("%w: room id is required", ErrInvalidInput)
	}
	if author.UserID == "" {
		return Message{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return Message{}, fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}
	if maxLen <= 0 {
		maxLen = MaxTextLength
	}
	if utf8.RuneCountInString(text) > maxLen {
		return Message{}, fmt.Errorf("%w: message too long (max %d characters)", ErrInvalidInput, maxLen)
	}
	kind, err := ParseKind(string(kind))
	if err != nil {
		return Message{}, err
	}

	return Message{
		RoomID:    roomID,
		UserID:    author.UserID,
		Username:  author.DisplayName(),
		Avatar:    author.Avatar,
		Text:      text,
		Kind:      kind,
		Timestamp: now.UnixMilli(),
	}, nil
}
