package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for malformed, expired or revoked tokens
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims is the decoded content of a bearer token.
type Claims struct {
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// TokenManager issues and verifies HS256 bearer tokens. The subject is
// the username; each token carries a unique id so it can be revoked.
type TokenManager struct {
	secret     []byte
	expiration time.Duration
	revocation *RevocationStore
}

// NewTokenManager creates a token manager. revocation may be nil, in
// which case logout does not invalidate outstanding tokens.
func NewTokenManager(secret string, expiration time.Duration, revocation *RevocationStore) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		expiration: expiration,
		revocation: revocation,
	}
}

// Issue creates a signed token for the user.
func (m *TokenManager) Issue(username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": username,
		"jti": uuid.NewString(),
		"exp": now.Add(m.expiration).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a token, including the revocation check.
func (m *TokenManager) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	jti, _ := mapClaims["jti"].(string)

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	if m.revocation != nil && jti != "" {
		revoked, err := m.revocation.IsRevoked(ctx, jti)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}

	return &Claims{
		Username:  sub,
		TokenID:   jti,
		ExpiresAt: exp.Time,
	}, nil
}

// Revoke denylists the token until its natural expiry. Without a
// revocation store this is a no-op.
func (m *TokenManager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revocation == nil || claims.TokenID == "" {
		return nil
	}
	return m.revocation.Revoke(ctx, claims.TokenID, time.Until(claims.ExpiresAt))
}
