// Package crypto provides the symmetric sealing and digest primitives used
// by the token codec. A single process-wide secret is stretched into the
// cipher key at construction time; nothing here reads ambient state.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrDecryption is returned for malformed, tampered, or wrong-secret
// ciphertexts. Callers never see partial plaintext.
var ErrDecryption = errors.New("decryption failed")

// hkdf context string; changing it invalidates every outstanding token.
const keyInfo = "keygate-token-sealer-v1"

// Sealer encrypts and decrypts small payloads and computes lookup digests.
// Safe for concurrent use.
type Sealer struct {
	key []byte
}

// NewSealer derives the cipher key from the configured secret via HKDF-SHA256.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("sealer: empty secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("sealer: derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Encrypt seals the plaintext with a fresh random nonce and returns a
// url-safe base64 string. Two encryptions of the same plaintext differ.
func (s *Sealer) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("sealer: init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sealer: nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any malformed input,
// flipped byte, or wrong secret yields ErrDecryption.
func (s *Sealer) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryption
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("sealer: init cipher: %w", err)
	}

	if len(raw) < aead.NonceSize() {
		return "", ErrDecryption
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

// Digest returns the deterministic one-way digest of the input as lowercase
// hex. Used only for existence lookups, never to recover content.
func (s *Sealer) Digest(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
