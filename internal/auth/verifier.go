package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role mirrors the platform's token roles. Service tokens authenticate
// service-to-service calls and never carry a user identity.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleUser    Role = "User"
	RoleService Role = "Service"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoIdentity   = errors.New("token carries no user identity")
)

// Identity is the verified subject of a bearer token.
type Identity struct {
	UserID string
	Role   Role
}

// Verifier checks a bearer credential and resolves the identity it proves.
// Implementations must treat any failure as "not verified"; the broker never
// distinguishes failure modes to the connecting peer.
type Verifier interface {
	Verify(token string) (Identity, error)
}

type claims struct {
	Role        Role   `json:"role"`
	UserID      string `json:"user_id,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier verifies HS512-signed platform tokens.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for tokens signed with the shared secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token. Admin and User tokens resolve to
// their user identity; Service tokens are valid but identity-less and
// therefore can never authenticate a client session.
func (v *TokenVerifier) Verify(tokenString string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	switch c.Role {
	case RoleAdmin, RoleUser:
		if c.UserID == "" {
			return Identity{}, ErrNoIdentity
		}
		return Identity{UserID: c.UserID, Role: c.Role}, nil
	case RoleService:
		return Identity{}, ErrNoIdentity
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
}

// Sign issues a token for the given identity, valid for ttl. Producers and
// tests use this; the broker itself only verifies.
func (v *TokenVerifier) Sign(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Role:   identity.Role,
		UserID: identity.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, c)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
