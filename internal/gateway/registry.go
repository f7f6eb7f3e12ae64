package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ConnectionID is a generational handle into the registry arena. A handle
// whose slot has since been reused no longer resolves, so a late cleanup for
// a closed connection can never touch its successor. The zero value is invalid.
type ConnectionID struct {
	index uint32
	gen   uint32
}

func (id ConnectionID) IsZero() bool { return id.gen == 0 }

func (id ConnectionID) String() string {
	return strconv.FormatUint(uint64(id.index), 10) + "." + strconv.FormatUint(uint64(id.gen), 10)
}

// ParseConnectionID is the inverse of ConnectionID.String.
func ParseConnectionID(s string) (ConnectionID, error) {
	idx, gen, ok := strings.Cut(s, ".")
	if !ok {
		return ConnectionID{}, fmt.Errorf("bad connection id %q", s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return ConnectionID{}, fmt.Errorf("bad connection id %q: %w", s, err)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil || g == 0 {
		return ConnectionID{}, fmt.Errorf("bad connection id %q", s)
	}
	return ConnectionID{index: uint32(i), gen: uint32(g)}, nil
}

type slot struct {
	gen  uint32
	conn *connection
}

type registry struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
	live  int
	users map[string]int // local connection count per bound user
}

func newRegistry() *registry {
	return &registry{users: make(map[string]int)}
}

func (r *registry) insert(c *connection) ConnectionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{})
	}

	s := &r.slots[idx]
	s.gen++
	s.conn = c
	c.id = ConnectionID{index: idx, gen: s.gen}
	r.live++
	return c.id
}

func (r *registry) get(id ConnectionID) (*connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id.IsZero() || int(id.index) >= len(r.slots) {
		return nil, false
	}
	s := r.slots[id.index]
	if s.gen != id.gen || s.conn == nil {
		return nil, false
	}
	return s.conn, true
}

// remove frees the slot of id. Stale handles are ignored.
func (r *registry) remove(id ConnectionID) (*connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id.IsZero() || int(id.index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[id.index]
	if s.gen != id.gen || s.conn == nil {
		return nil, false
	}

	c := s.conn
	s.conn = nil
	r.free = append(r.free, id.index)
	r.live--
	return c, true
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

func (r *registry) all() []*connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*connection, 0, r.live)
	for _, s := range r.slots {
		if s.conn != nil {
			out = append(out, s.conn)
		}
	}
	return out
}

// acquireUser counts one more local connection for userID and returns the total.
func (r *registry) acquireUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID]++
	return r.users[userID]
}

// releaseUser counts one less and returns what remains. It never goes below zero.
func (r *registry) releaseUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.users[userID]
	if n <= 1 {
		delete(r.users, userID)
		return 0
	}
	r.users[userID] = n - 1
	return n - 1
}

func (r *registry) userConnections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[userID]
}
