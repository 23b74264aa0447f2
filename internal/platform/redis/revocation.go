package redis

import (
	"context"
	"fmt"
	"time"

	"carebridge/pkg/sentinel"
)

const revocationKeyPrefix = "revoked_jti:"

// RevocationList tracks revoked JWT IDs in Redis with a TTL matching the
// token lifetime. The auth middleware consults it on every request.
type RevocationList struct {
	client *Client
}

// NewRevocationList wraps a Redis client as a token revocation list.
// Returns nil when the client is nil so callers can skip the check entirely.
func NewRevocationList(client *Client) *RevocationList {
	if client == nil {
		return nil
	}
	return &RevocationList{client: client}
}

// RevokeToken marks a JTI as revoked until its natural expiry.
func (l *RevocationList) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return sentinel.ErrInvalidState
	}
	if err := l.client.Set(ctx, revocationKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether the JTI has been revoked.
func (l *RevocationList) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.client.Exists(ctx, revocationKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}
