package services

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/internal/utils"
)

const revokedKeyPrefix = "session:revoked:"

// TokenDenylist records session credentials that were explicitly revoked
// before their expiry.
type TokenDenylist interface {
	Revoke(ctx context.Context, claims *utils.SessionClaims) error
	IsRevoked(ctx context.Context, claims *utils.SessionClaims) (bool, error)
}

type revocationStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// RedisDenylist keeps revocations in Redis until the credential would have
// expired anyway.
type RedisDenylist struct {
	store revocationStore
	now   func() time.Time
}

// NewRedisDenylist builds a RedisDenylist.
func NewRedisDenylist(store revocationStore) *RedisDenylist {
	return &RedisDenylist{store: store, now: time.Now}
}

// Revoke implements TokenDenylist.
func (d *RedisDenylist) Revoke(ctx context.Context, claims *utils.SessionClaims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	return d.store.Set(ctx, revocationKey(claims), []byte("1"), ttl)
}

// IsRevoked implements TokenDenylist.
func (d *RedisDenylist) IsRevoked(ctx context.Context, claims *utils.SessionClaims) (bool, error) {
	return d.store.Exists(ctx, revocationKey(claims))
}

// revocationKey identifies a credential by subject and token id. Credentials
// without an id fall back to the issuance time.
func revocationKey(claims *utils.SessionClaims) string {
	if claims.ID != "" {
		return fmt.Sprintf("%s%s:%s", revokedKeyPrefix, claims.Subject, claims.ID)
	}
	var issued int64
	if claims.IssuedAt != nil {
		issued = claims.IssuedAt.Unix()
	}
	return fmt.Sprintf("%s%s:%d", revokedKeyPrefix, claims.Subject, issued)
}
