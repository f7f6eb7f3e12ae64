package broker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	mu           sync.Mutex
	subscribes   map[string]int
	unsubscribes map[string]int
	published    map[string][][]byte
	failSub      error
	failPub      error
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{
		subscribes:   map[string]int{},
		unsubscribes: map[string]int{},
		published:    map[string][][]byte{},
	}
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Publish(ctx context.Context, roomID string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPub != nil {
		return b.failPub
	}
	b.published[roomID] = append(b.published[roomID], payload)
	return nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, roomID string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSub != nil {
		return b.failSub
	}
	b.subscribes[roomID]++
	return nil
}

func (b *recordingBackend) Unsubscribe(ctx context.Context, roomID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribes[roomID]++
	return nil
}

func (b *recordingBackend) Ping(ctx context.Context) error { return nil }
func (b *recordingBackend) Close() error                   { return nil }

func noopHandler(context.Context, string, []byte) {}

func TestBridge_OneSubscriptionPerRoom(t *testing.T) {
	backend := newRecordingBackend()
	b := NewBridge(backend)
	ctx := context.Background()

	require.NoError(t, b.Subscribe(ctx, "r1", noopHandler))
	require.NoError(t, b.Subscribe(ctx, "r1", noopHandler))
	require.NoError(t, b.Subscribe(ctx, "r1", noopHandler))
	assert.Equal(t, 1, backend.subscribes["r1"])
	assert.Equal(t, 3, b.Members("r1"))

	require.NoError(t, b.Unsubscribe(ctx, "r1"))
	require.NoError(t, b.Unsubscribe(ctx, "r1"))
	assert.Equal(t, 0, backend.unsubscribes["r1"])
	assert.True(t, b.Subscribed("r1"))

	require.NoError(t, b.Unsubscribe(ctx, "r1"))
	assert.Equal(t, 1, backend.unsubscribes["r1"])
	assert.False(t, b.Subscribed("r1"))

	// extra leave never drives the count negative
	require.NoError(t, b.Unsubscribe(ctx, "r1"))
	assert.Equal(t, 0, b.Members("r1"))
	assert.Equal(t, 1, backend.unsubscribes["r1"])

	// a later joiner subscribes again
	require.NoError(t, b.Subscribe(ctx, "r1", noopHandler))
	assert.Equal(t, 2, backend.subscribes["r1"])
}

func TestBridge_ConcurrentJoinLeave(t *testing.T) {
	backend := newRecordingBackend()
	b := NewBridge(backend)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Subscribe(ctx, "r1", noopHandler)
			_ = b.Unsubscribe(ctx, "r1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, b.Members("r1"))
	assert.False(t, b.Subscribed("r1"))
	assert.Equal(t, backend.subscribes["r1"], backend.unsubscribes["r1"])
}

func TestBridge_SubscribeFailureRetriedOnNextJoin(t *testing.T) {
	backend := newRecordingBackend()
	backend.failSub = errors.New("connection refused")
	b := NewBridge(backend)
	ctx := context.Background()

	err := b.Subscribe(ctx, "r1", noopHandler)
	assert.ErrorIs(t, err, domain.ErrBrokerUnavailable)
	assert.Equal(t, 1, b.Members("r1"))
	assert.False(t, b.Subscribed("r1"))

	backend.mu.Lock()
	backend.failSub = nil
	backend.mu.Unlock()

	require.NoError(t, b.Subscribe(ctx, "r1", noopHandler))
	assert.True(t, b.Subscribed("r1"))
	assert.Equal(t, 1, backend.subscribes["r1"])
}

func TestBridge_PublishFailure(t *testing.T) {
	backend := newRecordingBackend()
	backend.failPub = errors.New("broker down")
	b := NewBridge(backend)

	err := b.Publish(context.Background(), "r1", Envelope{Type: EventMessage, RoomID: "r1"})
	assert.ErrorIs(t, err, domain.ErrBrokerUnavailable)
}

func TestBridge_PublishEncodesEnvelope(t *testing.T) {
	backend := newRecordingBackend()
	b := NewBridge(backend)

	env := Envelope{
		Type:    EventMessage,
		RoomID:  "r1",
		Origin:  Origin{InstanceID: "i1", ConnectionID: "3.1"},
		Message: &domain.Message{ID: "1-0", RoomID: "r1", UserID: "u1", Text: "hi"},
	}
	require.NoError(t, b.Publish(context.Background(), "r1", env))
	require.Len(t, backend.published["r1"], 1)

	got, err := ParseEnvelope(backend.published["r1"][0])
	require.NoError(t, err)
	assert.Equal(t, env, got)
}
