package security

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "member-portal session token v1"

var (
	// ErrMissingSecret is returned at startup when no cipher secret is configured.
	ErrMissingSecret = errors.New("security: cipher secret is required")
	// ErrDecode covers malformed, truncated or foreign ciphertext.
	ErrDecode = errors.New("security: cannot decode ciphertext")
)

// Cipher encrypts opaque strings under one process-wide secret.
// Output is lowercase hex of nonce || sealed box.
//
// A Cipher holds no mutable state and is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCipher derives the symmetric key from secret. The secret itself is not retained.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("security: derive key: %w", err)
	}
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("security: init aead: %w", err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", errors.New("security: cipher not configured")
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("security: read nonce: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(out), nil
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", errors.New("security: cipher not configured")
	}

	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: not hex", ErrDecode)
	}
	if len(raw) < chacha20poly1305.NonceSizeX+c.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrDecode)
	}

	nonce, sealed := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecode)
	}
	return string(plain), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
