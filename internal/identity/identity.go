// Package identity resolves the user behind an inbound HTTP or WebSocket
// request.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
)

// Resolver extracts the caller's identity from a request. A resolver that
// admits anonymous callers returns a zero Identity and no error.
type Resolver interface {
	Resolve(r *http.Request) (domain.Identity, error)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, ident domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, ident)
}

func FromContext(ctx context.Context) (domain.Identity, bool) {
	ident, ok := ctx.Value(ctxKey{}).(domain.Identity)
	return ident, ok && !ident.IsZero()
}

// Middleware requires an identity on every request and stores it in the
// request context. fail writes the rejection.
func Middleware(res Resolver, fail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, err := res.Resolve(r)
			if err == nil && ident.IsZero() {
				err = domain.ErrUnauthorized
			}
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

// bearerToken reads "Authorization: Bearer <token>" and falls back to the
// token query parameter, which browsers need for WebSocket upgrades.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
