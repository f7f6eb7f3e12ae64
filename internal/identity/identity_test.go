package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signed(t *testing.T, ident domain.Identity, issuer, audience string, ttl time.Duration) string {
	t.Helper()
	token, err := Sign(secret, ident, issuer, audience, ttl)
	require.NoError(t, err)
	return token
}

func TestJWTResolver(t *testing.T) {
	alice := domain.Identity{UserID: "alice", Username: "Alice", Avatar: "https://img/alice.png"}
	res := NewJWT(secret, "relay-auth", "relay")

	tests := []struct {
		name    string
		request func() *http.Request
		want    domain.Identity
		wantErr bool
	}{
		{
			name: "bearer header",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/ws", nil)
				r.Header.Set("Authorization", "Bearer "+signed(t, alice, "relay-auth", "relay", time.Minute))
				return r
			},
			want: alice,
		},
		{
			name: "query token",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/ws?token="+signed(t, alice, "relay-auth", "relay", time.Minute), nil)
			},
			want: alice,
		},
		{
			name: "missing token",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/ws", nil)
			},
			wantErr: true,
		},
		{
			name: "wrong scheme",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/ws", nil)
				r.Header.Set("Authorization", "Basic "+signed(t, alice, "relay-auth", "relay", time.Minute))
				return r
			},
			wantErr: true,
		},
		{
			name: "expired",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/ws?token="+signed(t, alice, "relay-auth", "relay", -time.Minute), nil)
			},
			wantErr: true,
		},
		{
			name: "wrong issuer",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/ws?token="+signed(t, alice, "someone-else", "relay", time.Minute), nil)
			},
			wantErr: true,
		},
		{
			name: "wrong audience",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/ws?token="+signed(t, alice, "relay-auth", "billing", time.Minute), nil)
			},
			wantErr: true,
		},
		{
			name: "no subject",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/ws?token="+signed(t, domain.Identity{}, "relay-auth", "relay", time.Minute), nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := res.Resolve(tt.request())
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJWTRejectsOtherSecretsAndAlgorithms(t *testing.T) {
	res := NewJWT(secret, "", "")

	forged, err := Sign("other-secret", domain.Identity{UserID: "alice"}, "", "", time.Minute)
	require.NoError(t, err)
	_, err = res.Verify(forged)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = res.Verify(unsigned)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestHeaderResolver(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set(HeaderUserID, "bob")
	r.Header.Set(HeaderUsername, "Bob")
	ident, err := HeaderResolver{}.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: "bob", Username: "Bob"}, ident)

	r = httptest.NewRequest(http.MethodGet, "/ws?userId=carol&username=Carol", nil)
	ident, err = HeaderResolver{}.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "carol", ident.UserID)

	ident, err = HeaderResolver{}.Resolve(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.True(t, ident.IsZero())
}

func TestMiddleware(t *testing.T) {
	var seen domain.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	fail := func(w http.ResponseWriter, _ *http.Request, err error) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
	}
	h := Middleware(HeaderResolver{}, fail)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presence/online", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/presence/online", nil)
	req.Header.Set(HeaderUserID, "bob")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "bob", seen.UserID)
}
