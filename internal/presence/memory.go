package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a single-process tracker with the same expiry semantics as Redis.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	users map[string]map[string]time.Time // user -> conn -> expiry
}

// NewMemory returns an in-process tracker. now may be nil.
func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{
		ttl:   ttl,
		now:   now,
		users: make(map[string]map[string]time.Time),
	}
}

func (m *Memory) Heartbeat(ctx context.Context, userID, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns := m.users[userID]
	if conns == nil {
		conns = make(map[string]time.Time)
		m.users[userID] = conns
	}
	conns[connID] = m.now().Add(m.ttl)
	return nil
}

func (m *Memory) IsOnline(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(userID), nil
}

func (m *Memory) ListOnline(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	online := make([]string, 0, len(m.users))
	for userID := range m.users {
		if m.pruneLocked(userID) {
			online = append(online, userID)
		}
	}
	sort.Strings(online)
	return online, nil
}

// pruneLocked drops lapsed connections and reports whether any remain.
func (m *Memory) pruneLocked(userID string) bool {
	now := m.now()
	conns := m.users[userID]
	for connID, expiry := range conns {
		if !now.Before(expiry) {
			delete(conns, connID)
		}
	}
	if len(conns) == 0 {
		delete(m.users, userID)
		return false
	}
	return true
}
