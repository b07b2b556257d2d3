package auth

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const revocationKeyPrefix = "revoked_token:"

// RevocationStore keeps a denylist of revoked token ids in Redis. Keys
// expire with the token itself, so the set never grows unbounded.
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore creates a revocation store backed by the client.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

// Revoke marks the token id as revoked for the given duration.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revocationKeyPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether the token id has been revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
