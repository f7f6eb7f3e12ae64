package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	f, err := Decode([]byte(`{"event":"join-room","data":{"roomId":"r1","userId":"u1","username":"alice"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventJoinRoom, f.Event)

	var p RoomPayload
	require.NoError(t, f.Payload(&p))
	assert.Equal(t, RoomPayload{RoomID: "r1", UserID: "u1", Username: "alice"}, p)
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"data":{}}`, `[]`} {
		_, err := Decode([]byte(raw))
		assert.True(t, errors.Is(err, domain.ErrMalformedEvent), "input %q: %v", raw, err)
	}

	f, err := Decode([]byte(`{"event":"send-message"}`))
	require.NoError(t, err)
	var p SendMessagePayload
	assert.ErrorIs(t, f.Payload(&p), domain.ErrMalformedEvent)
}

func TestErrorFrame(t *testing.T) {
	raw := ErrorFrame(fmt.Errorf("send: %w", domain.ErrRateLimited))

	var f Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.Equal(t, EventError, f.Event)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, domain.CodeRateLimited, p.Code)
	assert.Contains(t, p.Message, "rate limit exceeded")
}
