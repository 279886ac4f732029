package auth

import (
	"fmt"
	"net/http"
	"strings"

	e "github.com/gartstein/staffing/internal/portal/errors"
)

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware authenticates bearer tokens with a TokenManager.
type Middleware struct {
	tokens   *TokenManager
	writeErr ErrorWriter
}

func NewMiddleware(tokens *TokenManager, writeErr ErrorWriter) *Middleware {
	return &Middleware{tokens: tokens, writeErr: writeErr}
}

// Require rejects requests without a valid token for role and stores the
// principal in the request context otherwise.
func (m *Middleware) Require(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractTokenFromHeader(r)
			if err != nil {
				m.writeErr(w, r, err)
				return
			}

			p, err := m.tokens.Parse(r.Context(), tokenString)
			if err != nil {
				m.writeErr(w, r, err)
				return
			}
			if p.Role != role {
				m.writeErr(w, r, fmt.Errorf("%w: %s role required", e.ErrUnauthorized, role))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func extractTokenFromHeader(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("%w: authorization header required", e.ErrUnauthorized)
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("%w: invalid authorization format: missing Bearer prefix", e.ErrUnauthorized)
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenString == "" {
		return "", fmt.Errorf("%w: invalid authorization format: empty token", e.ErrUnauthorized)
	}
	return tokenString, nil
}
