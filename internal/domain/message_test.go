package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	alice := Identity{UserID: "u1", Username: "alice"}

	tests := []struct {
		name     string
		roomID   string
		author   Identity
		text     string
		kind     Kind
		wantErr  error
		wantKind Kind
	}{
		{"valid text", "r1", alice, "hello", KindText, nil, KindText},
		{"empty kind defaults to text", "r1", alice, "hello", "", nil, KindText},
		{"upper case kind", "r1", alice, "pic", "IMAGE", nil, KindImage},
		{"missing room", "", alice, "hello", KindText, ErrInvalidInput, ""},
		{"missing author", "r1", Identity{}, "hello", KindText, ErrInvalidInput, ""},
		{"empty text", "r1", alice, "", KindText, ErrInvalidInput, ""},
		{"whitespace text", "r1", alice, "  \n\t ", KindText, ErrInvalidInput, ""},
		{"too long", "r1", alice, strings.Repeat("a", 1001), KindText, ErrInvalidInput, ""},
		{"exactly max", "r1", alice, strings.Repeat("a", 1000), KindText, nil, KindText},
		{"max counts runes", "r1", alice, strings.Repeat("é", 1000), KindText, nil, KindText},
		{"unknown kind", "r1", alice, "hello", "video", ErrInvalidInput, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.roomID, tt.author, tt.text, tt.kind, now, 0)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", msg.Kind, tt.wantKind)
			}
			if msg.ID != "" {
				t.Errorf("id must be assigned by the store, got %q", msg.ID)
			}
			if msg.Timestamp != now.UnixMilli() {
				t.Errorf("timestamp = %d", msg.Timestamp)
			}
			if msg.Username != "alice" {
				t.Errorf("username = %q", msg.Username)
			}
		})
	}
}

func TestNewMessage_CustomLimit(t *testing.T) {
	_, err := NewMessage("r1", Identity{UserID: "u1"}, "abcdef", KindText, time.Now(), 5)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIdentity_DisplayName(t *testing.T) {
	if got := (Identity{UserID: "u1"}).DisplayName(); got != "u1" {
		t.Errorf("got %q", got)
	}
	if got := (Identity{UserID: "u1", Username: "bob"}).DisplayName(); got != "bob" {
		t.Errorf("got %q", got)
	}
}
