package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/utils"
)

func claimsAt(issued, expires time.Time) *utils.SessionClaims {
	return &utils.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "8f5c1c57-3a43-4b43-9f53-2c64b0f1c2aa",
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
}

func TestRedisDenylistRevokeUntilExpiry(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	denylist := NewRedisDenylist(store)
	denylist.now = func() time.Time { return now }

	claims := claimsAt(now.Add(-time.Hour), now.Add(2*time.Hour))
	require.NoError(t, denylist.Revoke(context.Background(), claims))

	revoked, err := denylist.IsRevoked(context.Background(), claims)
	require.NoError(t, err)
	assert.True(t, revoked)

	key := revocationKey(claims)
	assert.Equal(t, "session:revoked:8f5c1c57-3a43-4b43-9f53-2c64b0f1c2aa:1768474800", key)
	assert.Equal(t, 2*time.Hour, store.ttls[key])
}

func TestRedisDenylistSkipsExpiredCredential(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	denylist := NewRedisDenylist(store)
	denylist.now = func() time.Time { return now }

	claims := claimsAt(now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, denylist.Revoke(context.Background(), claims))
	assert.Empty(t, store.values)
}

func TestRedisDenylistDistinguishesIssuance(t *testing.T) {
	now := time.Now()
	denylist := NewRedisDenylist(newMemoryStore())

	old := claimsAt(now.Add(-time.Hour), now.Add(time.Hour))
	fresh := claimsAt(now, now.Add(2*time.Hour))
	require.NoError(t, denylist.Revoke(context.Background(), old))

	revoked, err := denylist.IsRevoked(context.Background(), fresh)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisDenylistKeysByTokenID(t *testing.T) {
	now := time.Now()
	denylist := NewRedisDenylist(newMemoryStore())

	first := claimsAt(now, now.Add(time.Hour))
	first.ID = "jti-first"
	second := claimsAt(now, now.Add(time.Hour))
	second.ID = "jti-second"
	require.NoError(t, denylist.Revoke(context.Background(), first))

	revoked, err := denylist.IsRevoked(context.Background(), first)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = denylist.IsRevoked(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, revoked, "a session issued in the same second stays valid")
	assert.Equal(t, "session:revoked:8f5c1c57-3a43-4b43-9f53-2c64b0f1c2aa:jti-first", revocationKey(first))
}
