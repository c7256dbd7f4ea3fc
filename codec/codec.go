// Package codec encrypts the client-held session cookie payload.
//
// The key is derived once from the configured secret with HKDF-SHA256 and
// held by the Codec for its lifetime. A Codec is immutable and safe for
// concurrent use.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinSecretLength is the shortest secret New accepts.
	MinSecretLength = 32

	keyLength = 32 // AES-256
	keyInfo   = "session-gateway cookie v1"
)

var encoding = base64.RawURLEncoding.Strict()

type Codec struct {
	aead cipher.AEAD
}

// New derives the cookie key from secret. It fails when the secret is too
// short, so a misconfigured process stops at startup.
func New(secret string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.Wrapf(errors.ErrSecretMisconfigured, "codec secret must be at least %d bytes", MinSecretLength)
	}

	key := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive codec key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns
// base64url(nonce || ciphertext || tag).
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return encoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Every failure wraps ErrDecryption.
func (c *Codec) Decrypt(cipherText string) ([]byte, error) {
	raw, err := encoding.DecodeString(cipherText)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDecryption, "malformed encoding")
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return nil, errors.Wrapf(errors.ErrDecryption, "truncated payload")
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDecryption, "authentication failed")
	}
	return plaintext, nil
}
