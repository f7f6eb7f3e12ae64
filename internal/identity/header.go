package identity

import (
	"net/http"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
	HeaderAvatar   = "X-User-Avatar"
)

// HeaderResolver trusts identity headers set by an upstream proxy, falling
// back to userId/username query parameters. Requests carrying neither are
// anonymous. Only for deployments behind an authenticating edge.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) (domain.Identity, error) {
	ident := domain.Identity{
		UserID:   r.Header.Get(HeaderUserID),
		Username: r.Header.Get(HeaderUsername),
		Avatar:   r.Header.Get(HeaderAvatar),
	}
	if ident.UserID == "" {
		q := r.URL.Query()
		ident.UserID = q.Get("userId")
		ident.Username = q.Get("username")
	}
	if ident.UserID == "" {
		return domain.Identity{}, nil
	}
	return ident, nil
}
