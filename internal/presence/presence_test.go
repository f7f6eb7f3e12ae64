package presence

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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type trackerFactory func(t *testing.T) (Tracker, func(time.Duration))

func testTrackerContract(t *testing.T, newTracker trackerFactory) {
	ctx := context.Background()

	t.Run("heartbeat marks online until ttl", func(t *testing.T) {
		tr, advance := newTracker(t)
		require.NoError(t, tr.Heartbeat(ctx, "u1", "c1"))

		online, err := tr.IsOnline(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, online)

		advance(29 * time.Second)
		online, _ = tr.IsOnline(ctx, "u1")
		assert.True(t, online)

		advance(2 * time.Second)
		online, _ = tr.IsOnline(ctx, "u1")
		assert.False(t, online)
	})

	t.Run("user stays online while any connection heartbeats", func(t *testing.T) {
		tr, advance := newTracker(t)
		require.NoError(t, tr.Heartbeat(ctx, "u1", "c1"))
		require.NoError(t, tr.Heartbeat(ctx, "u1", "c2"))

		// c1 goes silent, c2 keeps beating
		for i := 0; i < 4; i++ {
			advance(10 * time.Second)
			require.NoError(t, tr.Heartbeat(ctx, "u1", "c2"))
		}

		online, err := tr.IsOnline(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, online)

		advance(31 * time.Second)
		online, _ = tr.IsOnline(ctx, "u1")
		assert.False(t, online)
	})

	t.Run("list online prunes lapsed users", func(t *testing.T) {
		tr, advance := newTracker(t)
		require.NoError(t, tr.Heartbeat(ctx, "bob", "c1"))
		advance(20 * time.Second)
		require.NoError(t, tr.Heartbeat(ctx, "alice", "c2"))

		users, err := tr.ListOnline(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, users)

		advance(15 * time.Second)
		users, err = tr.ListOnline(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, users)
	})

	t.Run("unknown user is offline", func(t *testing.T) {
		tr, _ := newTracker(t)
		online, err := tr.IsOnline(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, online)
	})
}

func TestMemoryTracker(t *testing.T) {
	testTrackerContract(t, func(t *testing.T) (Tracker, func(time.Duration)) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		return NewMemory(30*time.Second, clock.Now), clock.Advance
	})
}

func TestRedisTracker(t *testing.T) {
	testTrackerContract(t, func(t *testing.T) (Tracker, func(time.Duration)) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedis(client, 30*time.Second), mr.FastForward
	})
}

func TestRedisTracker_KeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tr := NewRedis(client, 30*time.Second)
	require.NoError(t, tr.Heartbeat(context.Background(), "u1", "c1"))

	assert.True(t, mr.Exists("presence:conn:u1:c1"))
	assert.Equal(t, 30*time.Second, mr.TTL("presence:conn:u1:c1"))

	members, err := mr.Members("presence:user:u1:conns")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, members)

	online, err := mr.Members("presence:online")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, online)
}

func TestRedisTracker_StaleConnectionsCleaned(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tr := NewRedis(client, 30*time.Second)
	ctx := context.Background()
	require.NoError(t, tr.Heartbeat(ctx, "u1", "c1"))
	mr.FastForward(31 * time.Second)
	require.NoError(t, tr.Heartbeat(ctx, "u1", "c2"))

	online, err := tr.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online)

	members, err := mr.Members("presence:user:u1:conns")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, members)
}
