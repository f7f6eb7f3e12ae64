// Package directory looks up user profiles and room membership.
package directory

import (
	"context"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
)

type Directory interface {
	// Profiles returns the known identities among userIDs. Unknown users are
	// absent from the map.
	Profiles(ctx context.Context, userIDs []string) (map[string]domain.Identity, error)
	// IsMember reports whether userID may join roomID. Rooms without a
	// member list are open to everyone.
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// Enrich fills in the username and avatar of each message from profiles,
// keeping what the message already carries when the author is unknown.
func Enrich(msgs []domain.Message, profiles map[string]domain.Identity) {
	for i := range msgs {
		p, ok := profiles[msgs[i].UserID]
		if !ok {
			continue
		}
		if p.Username != "" {
			msgs[i].Username = p.Username
		}
		if p.Avatar != "" {
			msgs[i].Avatar = p.Avatar
		}
	}
}

// Authors returns the distinct user ids of msgs in first-seen order.
func Authors(msgs []domain.Message) []string {
	seen := make(map[string]struct{}, len(msgs))
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		out = append(out, m.UserID)
	}
	return out
}
