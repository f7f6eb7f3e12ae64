package identity

import (
	"fmt"
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver verifies HS256 access tokens. The subject is the user id;
// optional username and avatar claims fill in the display identity.
type JWTResolver struct {
	secret   []byte
	issuer   string
	audience string
}

func NewJWT(secret, issuer, audience string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), issuer: issuer, audience: audience}
}

func (j *JWTResolver) Resolve(r *http.Request) (domain.Identity, error) {
	token := bearerToken(r)
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}
	return j.Verify(token)
}

func (j *JWTResolver) Verify(tokenString string) (domain.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: invalid token: %v", domain.ErrUnauthorized, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Identity{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}

	username, _ := claims["username"].(string)
	avatar, _ := claims["avatar"].(string)
	return domain.Identity{UserID: sub, Username: username, Avatar: avatar}, nil
}

// Sign issues an HS256 token for ident. The relay only verifies tokens; Sign
// serves tooling and tests.
func Sign(secret string, ident domain.Identity, issuer, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": ident.UserID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if audience != "" {
		claims["aud"] = audience
	}
	if ident.Username != "" {
		claims["username"] = ident.Username
	}
	if ident.Avatar != "" {
		claims["avatar"] = ident.Avatar
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}
