package crypto_test

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/keygate-io/keygate/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newSealer(t *testing.T, secret string) *crypto.Sealer {
	t.Helper()
	s, err := crypto.NewSealer(secret)
	require.NoError(t, err)
	return s
}

func TestNewSealer_EmptySecret(t *testing.T) {
	_, err := crypto.NewSealer("")
	require.Error(t, err)
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	s := newSealer(t, testSecret)

	for _, plaintext := range []string{
		"Id:1,Type:endpoint",
		"Id:9223372036854775807,Type:query",
		"",
		"unicode ✓ payload",
	} {
		ct, err := s.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := s.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	s := newSealer(t, testSecret)

	ct1, err := s.Encrypt("Id:1,Type:endpoint")
	require.NoError(t, err)
	ct2, err := s.Encrypt("Id:1,Type:endpoint")
	require.NoError(t, err)

	assert.NotEqual(t, ct1, ct2, "same plaintext should seal to distinct ciphertexts")

	// both still decrypt to the original
	p1, err := s.Decrypt(ct1)
	require.NoError(t, err)
	p2, err := s.Decrypt(ct2)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	s := newSealer(t, testSecret)

	ct, err := s.Encrypt("Id:42,Type:endpoint")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(ct)
	require.NoError(t, err)

	// flipping any single byte must fail, never produce altered plaintext
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01

		_, err := s.Decrypt(base64.RawURLEncoding.EncodeToString(mutated))
		assert.ErrorIs(t, err, crypto.ErrDecryption, "byte %d", i)
	}
}

func TestDecrypt_WrongSecret(t *testing.T) {
	s1 := newSealer(t, testSecret)
	s2 := newSealer(t, "another-secret-entirely-different")

	ct, err := s1.Encrypt("Id:7,Type:query")
	require.NoError(t, err)

	_, err = s2.Decrypt(ct)
	assert.ErrorIs(t, err, crypto.ErrDecryption)
}

func TestDecrypt_Garbage(t *testing.T) {
	s := newSealer(t, testSecret)

	for _, input := range []string{"", "not base64 !!!", "c2hvcnQ", "AAAA"} {
		_, err := s.Decrypt(input)
		assert.True(t, errors.Is(err, crypto.ErrDecryption), "input %q", input)
	}
}

func TestDigest_Deterministic(t *testing.T) {
	s := newSealer(t, testSecret)

	d1 := s.Digest("some-ciphertext")
	d2 := s.Digest("some-ciphertext")
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64, "sha256 hex digest length")
	assert.NotEqual(t, d1, s.Digest("other-ciphertext"))
}
