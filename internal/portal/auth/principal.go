// Package auth resolves the caller of a request into a Principal. Tokens
// are HS256 JWTs carrying the role and, for clients, the client id; logout
// revokes a token's id until it expires.
package auth

import (
	"context"
	"fmt"
	"time"

	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Principal is the authenticated caller.
type Principal struct {
	Role    Role
	Subject string
	// ClientID is set for RoleClient only.
	ClientID  uuid.UUID
	TokenID   string
	ExpiresAt time.Time
}

type contextKey string

const principalContextKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok && p != nil
}

// RequireRole returns the principal in ctx if it has the given role, and
// ErrUnauthorized otherwise.
func RequireRole(ctx context.Context, role Role) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: authentication required", e.ErrUnauthorized)
	}
	if p.Role != role {
		return nil, fmt.Errorf("%w: %s role required", e.ErrUnauthorized, role)
	}
	if role == RoleClient && p.ClientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client identity missing", e.ErrUnauthorized)
	}
	return p, nil
}
