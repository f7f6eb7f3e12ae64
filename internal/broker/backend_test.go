package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (i *inbox) handle(_ context.Context, roomID string, payload []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, roomID+":"+string(payload))
}

func (i *inbox) snapshot() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.msgs...)
}

func TestMemoryBus_CrossInstance(t *testing.T) {
	bus := NewMemoryBus()
	a, b := bus.Backend(), bus.Backend()
	ctx := context.Background()

	var inA, inB inbox
	require.NoError(t, a.Subscribe(ctx, "r1", inA.handle))
	require.NoError(t, b.Subscribe(ctx, "r1", inB.handle))

	require.NoError(t, a.Publish(ctx, "r1", []byte("one")))
	require.NoError(t, a.Publish(ctx, "r2", []byte("elsewhere")))
	require.NoError(t, b.Publish(ctx, "r1", []byte("two")))

	assert.Equal(t, []string{"r1:one", "r1:two"}, inA.snapshot())
	assert.Equal(t, []string{"r1:one", "r1:two"}, inB.snapshot())

	require.NoError(t, b.Unsubscribe(ctx, "r1"))
	require.NoError(t, a.Publish(ctx, "r1", []byte("three")))
	assert.Len(t, inB.snapshot(), 2)
	assert.Len(t, inA.snapshot(), 3)

	require.NoError(t, a.Close())
	require.NoError(t, b.Publish(ctx, "r1", []byte("four")))
	assert.Len(t, inA.snapshot(), 3)
}

func TestMemory_PublishCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewMemory().Publish(ctx, "r1", []byte("x")))
}

func TestRedisBackend_PubSub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	backend := NewRedis(client)
	defer backend.Close()

	ctx := context.Background()
	var in inbox
	require.NoError(t, backend.Subscribe(ctx, "r1", in.handle))

	// the SUBSCRIBE is asynchronous, so keep publishing until one lands
	assert.Eventually(t, func() bool {
		_ = backend.Publish(ctx, "r1", []byte("hello"))
		return len(in.snapshot()) > 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "r1:hello", in.snapshot()[0])

	require.NoError(t, backend.Unsubscribe(ctx, "r1"))
	assert.Eventually(t, func() bool {
		return len(mr.PubSubChannels("chat:*")) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNATSSubject(t *testing.T) {
	assert.Equal(t, "chat.room.cjE", natsSubject("r1"))
	// dots and wildcards never leak into the subject
	assert.NotContains(t, natsSubject("a.b.*.>")[len(natsSubjectPrefix):], ".")
}
