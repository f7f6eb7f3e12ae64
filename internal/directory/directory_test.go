package directory

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writable interface {
	Directory
	Upsert(ctx context.Context, ident domain.Identity) error
	AddMember(ctx context.Context, roomID, userID string) error
}

func runContract(t *testing.T, d writable) {
	ctx := context.Background()

	require.NoError(t, d.Upsert(ctx, domain.Identity{UserID: "alice", Username: "Alice", Avatar: "a.png"}))
	require.NoError(t, d.Upsert(ctx, domain.Identity{UserID: "bob", Username: "Bob"}))

	profiles, err := d.Profiles(ctx, []string{"alice", "bob", "ghost"})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Equal(t, "a.png", profiles["alice"].Avatar)
	assert.Equal(t, "Bob", profiles["bob"].Username)

	empty, err := d.Profiles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	ok, err := d.IsMember(ctx, "lobby", "anyone")
	require.NoError(t, err)
	assert.True(t, ok, "rooms without a member list are open")

	require.NoError(t, d.AddMember(ctx, "private", "alice"))
	ok, err = d.IsMember(ctx, "private", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.IsMember(ctx, "private", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatic(t *testing.T) {
	runContract(t, NewStatic())

	var zero Static
	ok, err := zero.IsMember(context.Background(), "r1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgres(db)
	require.NoError(t, p.Migrate(context.Background()))
	_, err = db.Exec(`TRUNCATE relay_users, relay_room_members`)
	require.NoError(t, err)

	runContract(t, p)
}

func TestCachedServesRepeatLookupsFromRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	backing := NewStatic()
	require.NoError(t, backing.Upsert(ctx, domain.Identity{UserID: "alice", Username: "Alice"}))
	c := NewCached(backing, rdb, 0)

	profiles, err := c.Profiles(ctx, []string{"alice", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", profiles["alice"].Username)
	assert.True(t, mr.Exists("profile:alice"))
	assert.False(t, mr.Exists("profile:ghost"))

	// a backing change is invisible until the entry is invalidated
	require.NoError(t, backing.Upsert(ctx, domain.Identity{UserID: "alice", Username: "Alice B."}))
	profiles, err = c.Profiles(ctx, []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", profiles["alice"].Username)

	require.NoError(t, c.Invalidate(ctx, "alice"))
	profiles, err = c.Profiles(ctx, []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", profiles["alice"].Username)
}

func TestCachedFallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	backing := NewStatic()
	require.NoError(t, backing.Upsert(ctx, domain.Identity{UserID: "alice", Username: "Alice"}))

	profiles, err := NewCached(backing, rdb, 0).Profiles(ctx, []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", profiles["alice"].Username)
}

func TestEnrich(t *testing.T) {
	msgs := []domain.Message{
		{ID: "1", UserID: "alice", Username: "alice"},
		{ID: "2", UserID: "bob", Username: "bob"},
		{ID: "3", UserID: "alice", Username: "alice"},
	}
	assert.Equal(t, []string{"alice", "bob"}, Authors(msgs))

	Enrich(msgs, map[string]domain.Identity{"alice": {UserID: "alice", Username: "Alice", Avatar: "a.png"}})
	assert.Equal(t, "Alice", msgs[0].Username)
	assert.Equal(t, "a.png", msgs[2].Avatar)
	assert.Equal(t, "bob", msgs[1].Username)
}
