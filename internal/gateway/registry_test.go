package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReusesSlotsWithNewGeneration(t *testing.T) {
	r := newRegistry()

	first := r.insert(&connection{})
	second := r.insert(&connection{})
	assert.Equal(t, 2, r.count())

	_, ok := r.remove(first)
	require.True(t, ok)
	_, ok = r.remove(first)
	assert.False(t, ok)

	third := r.insert(&connection{})
	assert.Equal(t, first.index, third.index)
	assert.NotEqual(t, first.gen, third.gen)

	_, ok = r.get(first)
	assert.False(t, ok)
	_, ok = r.get(third)
	assert.True(t, ok)
	_, ok = r.get(second)
	assert.True(t, ok)
	assert.Len(t, r.all(), 2)
}

func TestRegistryRejectsZeroAndUnknownHandles(t *testing.T) {
	r := newRegistry()
	r.insert(&connection{})

	_, ok := r.get(ConnectionID{})
	assert.False(t, ok)
	_, ok = r.get(ConnectionID{index: 7, gen: 1})
	assert.False(t, ok)
	_, ok = r.remove(ConnectionID{index: 7, gen: 1})
	assert.False(t, ok)
}

func TestRegistryUserCountNeverNegative(t *testing.T) {
	r := newRegistry()

	assert.Equal(t, 1, r.acquireUser("alice"))
	assert.Equal(t, 2, r.acquireUser("alice"))
	assert.Equal(t, 1, r.releaseUser("alice"))
	assert.Equal(t, 0, r.releaseUser("alice"))
	assert.Equal(t, 0, r.releaseUser("alice"))
	assert.Equal(t, 0, r.userConnections("alice"))
}

func TestConnectionIDRoundTrip(t *testing.T) {
	id := ConnectionID{index: 12, gen: 3}
	assert.Equal(t, "12.3", id.String())

	parsed, err := ParseConnectionID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, bad := range []string{"", "12", "a.1", "1.b", "1.0", "-1.2"} {
		_, err := ParseConnectionID(bad)
		assert.Error(t, err, bad)
	}
}
