package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRevocationPrefix = "portal:revoked"

// RevocationStore records revoked token ids with a TTL matching the token's
// remaining lifetime, so entries disappear once the token would have expired
// anyway.
type RevocationStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRevocationStore(client *redis.Client, keyPrefix string) *RevocationStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &RevocationStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	key := s.key(tokenID)
	if key == "" {
		return errors.New("token id must not be empty")
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token: %w", err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	key := s.key(tokenID)
	if key == "" {
		return false, errors.New("token id must not be empty")
	}
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revoked token: %w", err)
	}
	return n > 0, nil
}

func (s *RevocationStore) key(tokenID string) string {
	trimmed := strings.TrimSpace(tokenID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, trimmed)
}
