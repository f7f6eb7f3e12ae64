package broker

import (
	"testing"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"message", `{"type":"new-message","roomId":"r1","origin":{"instanceId":"i1"},"message":{"id":"1-0","roomId":"r1","text":"hi"}}`, false},
		{"typing", `{"type":"user-typing","roomId":"r1","origin":{"instanceId":"i1","connectionId":"1.1"},"typing":{"userId":"u1","isTyping":true}}`, false},
		{"not json", `{{{`, true},
		{"missing room", `{"type":"new-message","message":{"id":"1-0"}}`, true},
		{"message without id", `{"type":"new-message","roomId":"r1","message":{"text":"hi"}}`, true},
		{"message without body", `{"type":"new-message","roomId":"r1"}`, true},
		{"room mismatch", `{"type":"new-message","roomId":"r1","message":{"id":"1-0","roomId":"r2"}}`, true},
		{"typing without user", `{"type":"user-typing","roomId":"r1","typing":{"isTyping":true}}`, true},
		{"unknown type", `{"type":"reaction","roomId":"r1"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrMalformedEvent)
				return
			}
			assert.NoError(t, err)
		})
	}
}
