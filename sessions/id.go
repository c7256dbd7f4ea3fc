package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// idBytes gives session IDs 256 bits of entropy.
const idBytes = 32

// NewID returns a random, URL safe session identifier.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidID rejects identifiers that cannot have come from NewID or a backend
// store, before they reach any lookup.
func ValidID(id string) bool {
	if len(id) < 16 || len(id) > 128 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
