package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	ends  time.Time
}

type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

// NewMemory returns an in-process limiter. now may be nil.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now, windows: make(map[string]*window)}
}

func (l *Memory) TryConsume(ctx context.Context, userID, action string, limit int, d time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := userID + ":" + action
	now := l.now()

	w := l.windows[key]
	if w == nil || !now.Before(w.ends) {
		w = &window{ends: now.Add(d)}
		l.windows[key] = w
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}
