package stream

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
)

// Memory keeps every room's log in process. Ids are decimal per-room sequence numbers.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string][]domain.Message
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string][]domain.Message)}
}

func (m *Memory) Append(ctx context.Context, roomID string, msg domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.rooms[roomID]
	msg.ID = strconv.Itoa(len(log) + 1)
	msg.RoomID = roomID
	m.rooms[roomID] = append(log, msg)
	return msg, nil
}

func (m *Memory) ReadRange(ctx context.Context, roomID string, r Range) ([]domain.Message, error) {
	after, err := parseSeq(r.After)
	if err != nil {
		return nil, err
	}
	before, err := parseSeq(r.Before)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	log := m.rooms[roomID]
	// ids are 1-based positions
	lo := min(int(after), len(log))
	hi := len(log)
	if r.Before != "" && int(before)-1 < hi {
		hi = max(int(before)-1, 0)
	}
	if lo >= hi {
		return []domain.Message{}, nil
	}

	window := log[lo:hi]
	limit := r.limit()
	if len(window) > limit {
		if r.After != "" {
			window = window[:limit]
		} else {
			window = window[len(window)-limit:]
		}
	}

	out := make([]domain.Message, len(window))
	copy(out, window)
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func parseSeq(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("%w: bad cursor %q", domain.ErrInvalidInput, cursor)
	}
	return seq, nil
}
