package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	for _, plaintext := range []string{"", "hunter2", "p@ssw0rd with spaces", strings.Repeat("x", 4096)} {
		encrypted, err := enc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, encrypted)

		decrypted, err := enc.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptor_NonceUniqueness(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	a, err := enc.Encrypt("same input")
	require.NoError(t, err)
	b, err := enc.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestNewEncryptor_RejectsBadKey(t *testing.T) {
	_, err := NewEncryptor("too-short")
	assert.Error(t, err)
}

func TestEncryptor_RejectsTamperedCiphertext(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	encrypted, err := enc.Encrypt("secret")
	require.NoError(t, err)

	_, err = enc.Decrypt("not-base64!!")
	assert.Error(t, err)

	_, err = enc.Decrypt(encrypted[:8])
	assert.Error(t, err)
}
