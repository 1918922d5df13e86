package utils

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	PurposeSession    = "storefront/session"
	PurposeOAuthState = "storefront/oauth-state"
)

// DeriveKey expands the configured secret into a 32-byte key bound to
// purpose, so the session and OAuth state keys never coincide.
func DeriveKey(secret, purpose string) []byte {
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		// hkdf only fails past 255*HashLen bytes.
		panic(err)
	}
	return key
}
