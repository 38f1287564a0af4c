// Package service contains the certificate pipeline, template management and bearer authentication.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/model"
)

// Claims are the HS256 bearer claims minted by the platform's session service.
// Subject carries the user UUID.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// AuthService verifies bearer tokens.
type AuthService interface {
	// Authenticate validates a raw JWT and returns the caller.
	Authenticate(ctx context.Context, raw string) (model.Actor, error)
}

type AuthServiceImpl struct {
	signKey []byte
	leeway  time.Duration
}

// NewAuthService constructs AuthService for tokens signed with signKey.
func NewAuthService(signKey []byte) *AuthServiceImpl {
	return &AuthServiceImpl{signKey: signKey, leeway: 30 * time.Second}
}

// Authenticate checks signature, method and time claims. Every failure is errs.ErrUnauthorized.
func (s *AuthServiceImpl) Authenticate(_ context.Context, raw string) (model.Actor, error) {
	if raw == "" {
		return model.Actor{}, fmt.Errorf("%w: no bearer token", errs.ErrUnauthorized)
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return model.Actor{}, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return model.Actor{}, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	role := claims.Role
	if role == "" {
		role = model.RoleStudent
	}
	return model.Actor{UserID: id, Role: role}, nil
}

// IssueToken signs a token for actor. Used by operator tooling and tests; regular sessions
// come from the platform.
func (s *AuthServiceImpl) IssueToken(actor model.Actor, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: actor.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	return signed, exp, err
}
