package auth

import (
	"context"
	"fmt"
	"time"

	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RevocationStore remembers revoked token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type claims struct {
	Role     Role   `json:"role"`
	ClientID string `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret      []byte
	ttl         time.Duration
	revocations RevocationStore
	now         func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration, revocations RevocationStore) *TokenManager {
	return &TokenManager{
		secret:      []byte(secret),
		ttl:         ttl,
		revocations: revocations,
		now:         time.Now,
	}
}

// Issue signs a token for role and subject. clientID is recorded for
// client tokens and ignored otherwise.
func (m *TokenManager) Issue(role Role, subject string, clientID uuid.UUID) (string, *Principal, error) {
	now := m.now()
	p := &Principal{
		Role:      role,
		Subject:   subject,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(m.ttl),
	}
	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.TokenID,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
	}
	if role == RoleClient {
		p.ClientID = clientID
		c.ClientID = clientID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, p, nil
}

// Parse validates the token signature, expiry and revocation status.
func (m *TokenManager) Parse(ctx context.Context, tokenString string) (*Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token: %v", e.ErrUnauthorized, err)
	}
	if c.ID == "" || (c.Role != RoleAdmin && c.Role != RoleClient) {
		return nil, fmt.Errorf("%w: invalid token claims", e.ErrUnauthorized)
	}

	p := &Principal{
		Role:      c.Role,
		Subject:   c.Subject,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}
	if c.Role == RoleClient {
		id, err := uuid.Parse(c.ClientID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid client id claim", e.ErrUnauthorized)
		}
		p.ClientID = id
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(ctx, p.TokenID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token revoked", e.ErrUnauthorized)
		}
	}
	return p, nil
}

// Revoke invalidates the principal's token for the rest of its lifetime.
func (m *TokenManager) Revoke(ctx context.Context, p *Principal) error {
	if m.revocations == nil {
		return nil
	}
	if err := m.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
