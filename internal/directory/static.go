package directory

import (
	"context"
	"sync"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
)

// Static is an in-memory Directory. The zero value knows nobody and admits
// everyone to every room.
type Static struct {
	mu       sync.RWMutex
	profiles map[string]domain.Identity
	members  map[string]map[string]struct{}
}

func NewStatic() *Static {
	return &Static{
		profiles: make(map[string]domain.Identity),
		members:  make(map[string]map[string]struct{}),
	}
}

func (s *Static) Upsert(_ context.Context, ident domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profiles == nil {
		s.profiles = make(map[string]domain.Identity)
	}
	s.profiles[ident.UserID] = ident
	return nil
}

func (s *Static) AddMember(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members == nil {
		s.members = make(map[string]map[string]struct{})
	}
	if s.members[roomID] == nil {
		s.members[roomID] = make(map[string]struct{})
	}
	s.members[roomID][userID] = struct{}{}
	return nil
}

func (s *Static) Profiles(ctx context.Context, userIDs []string) (map[string]domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Identity, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Static) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, listed := s.members[roomID]
	if !listed {
		return true, nil
	}
	_, ok := members[userID]
	return ok, nil
}
