package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
)

// SessionClaims is the payload of a session credential. Role is advisory:
// privileged paths re-read it from the live identity.
type SessionClaims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject into an identity id.
func (c *SessionClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// SessionSigner mints and verifies HS256 session credentials.
type SessionSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSessionSigner builds a signer. key should come from DeriveKey.
func NewSessionSigner(key []byte, ttl time.Duration) *SessionSigner {
	return &SessionSigner{key: key, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the signer that reads time from now.
func (s *SessionSigner) WithClock(now func() time.Time) *SessionSigner {
	clone := *s
	clone.now = now
	return &clone
}

// TTL returns the lifetime given to new credentials.
func (s *SessionSigner) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed credential for user.
func (s *SessionSigner) Issue(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &SessionClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates signature and expiry and returns the embedded claims. It
// never touches storage.
func (s *SessionSigner) Verify(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, apperrors.ErrSessionInvalid
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrSessionExpired.Wrap(err)
		}
		return nil, apperrors.ErrSessionInvalid.Wrap(err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrSessionInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, apperrors.ErrSessionInvalid.Wrap(err)
	}

	return claims, nil
}
