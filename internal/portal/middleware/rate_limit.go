package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	e "github.com/gartstein/staffing/internal/portal/errors"
	"go.uber.org/zap"
)

// RateLimitStore decides whether another attempt by identifier is allowed.
type RateLimitStore interface {
	Allow(ctx context.Context, identifier string, now time.Time) (bool, time.Duration, error)
}

type RateLimiter struct {
	store    RateLimitStore
	name     string
	writeErr func(http.ResponseWriter, *http.Request, error)
	logger   *zap.Logger
	now      func() time.Time
}

// NewRateLimiter limits requests per client IP. name scopes the counters so
// different route groups are limited independently.
func NewRateLimiter(
	store RateLimitStore,
	name string,
	writeErr func(http.ResponseWriter, *http.Request, error),
	logger *zap.Logger,
) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		store:    store,
		name:     name,
		writeErr: writeErr,
		logger:   logger.Named("rate_limiter"),
		now:      time.Now,
	}
}

// Handler rejects requests over the limit with ErrRateLimited and a
// Retry-After header. Store failures let the request through.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	if l == nil || l.store == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		allowed, retryAfter, err := l.store.Allow(r.Context(), l.name+":"+ip, l.now())
		if err != nil {
			l.logger.Error("Rate limit check failed, allowing request",
				zap.Error(err),
				zap.String("rule", l.name),
			)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			l.logger.Warn("Rate limit exceeded",
				zap.String("rule", l.name),
				zap.String("client_ip", MaskIP(ip)),
			)
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			l.writeErr(w, r, fmt.Errorf("%w: retry in %d seconds", e.ErrRateLimited, seconds))
			return
		}
		next.ServeHTTP(w, r)
	})
}
