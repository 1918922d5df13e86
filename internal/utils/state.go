package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateAudience = "oauth-state"

// ErrInvalidState is returned when the OAuth state does not verify.
var ErrInvalidState = errors.New("invalid oauth state")

// SignState returns a signed, time-boxed value used as the OAuth2 state parameter.
func SignState(key []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// VerifyState checks a state produced by SignState.
func VerifyState(key []byte, state string) error {
	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return errors.Join(ErrInvalidState, err)
	}
	return nil
}
