// Package principal resolves the caller of a request from a signed JWT issued by
// the identity provider, honoring the provider's Redis token blacklist.
package principal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenBlacklistPrefix = "auth:token:blacklist:"
	authCookieName       = "access_token"
)

var (
	ErrUnauthenticated = errors.New("unauthorized")
	ErrWeakSecretKey   = errors.New("jwt secret must be at least 32 bytes")
)

// Claims is the token payload shared with the identity provider.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// Verifier turns bearer tokens into principals.
type Verifier struct {
	secret []byte
	rdb    *redis.Client
}

// NewVerifier builds a Verifier. rdb may be nil, in which case revoked tokens
// are not detected.
func NewVerifier(secret string, rdb *redis.Client) (*Verifier, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecretKey
	}
	return &Verifier{secret: []byte(secret), rdb: rdb}, nil
}

// FromRequest resolves the principal of an HTTP request.
func (v *Verifier) FromRequest(r *http.Request) (Principal, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return Principal{}, err
	}
	return v.Verify(r.Context(), token)
}

// Verify validates a raw token. Failures of the token itself are reported as
// ErrUnauthenticated; blacklist lookup failures are returned as is.
func (v *Verifier) Verify(ctx context.Context, raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: invalid user id", ErrUnauthenticated)
	}
	role, err := ParseRole(string(claims.Role))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.ID == "" {
		return Principal{}, fmt.Errorf("%w: jti missing", ErrUnauthenticated)
	}

	if v.rdb != nil {
		exists, err := v.rdb.Exists(ctx, tokenBlacklistPrefix+claims.ID).Result()
		if err != nil {
			return Principal{}, fmt.Errorf("check token blacklist: %w", err)
		}
		if exists == 1 {
			return Principal{}, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
		}
	}

	return Principal{ID: id, Name: strings.TrimSpace(claims.Name), Role: role}, nil
}

// TokenFromRequest reads the bearer token from the Authorization header, falling
// back to the access_token cookie set by the identity provider.
func TokenFromRequest(r *http.Request) (string, error) {
	if token, err := ExtractBearerToken(r.Header.Get("Authorization")); err == nil {
		return token, nil
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token, nil
		}
	}
	return "", ErrUnauthenticated
}

func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrUnauthenticated
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrUnauthenticated
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

// SignToken mints a token for p. The identity provider does this in production;
// local tooling and tests use it to impersonate principals.
func SignToken(p Principal, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: p.ID.String(),
		Name:   p.Name,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
