package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Salt is fixed so every replica derives the same sealing key.
var cipherSalt = []byte("cookbook-credentials-v1")

// TokenCipher seals cloud-storage credentials at rest with AES-256-GCM.
// The key is derived from the configured secret with Argon2id; sealed
// values carry the nonce as a prefix.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher derives the sealing key and prepares the AEAD.
func NewTokenCipher(secret string) (*TokenCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("token cipher key is not configured")
	}

	key := argon2.IDKey([]byte(secret), cipherSalt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &TokenCipher{aead: aead}, nil
}

// Seal encrypts a credential token. The output layout is nonce || ciphertext.
func (c *TokenCipher) Seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Open decrypts a sealed credential token.
func (c *TokenCipher) Open(sealed []byte) (string, error) {
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("sealed credential is too short")
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plaintext), nil
}
