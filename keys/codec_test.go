package keys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptDecrypt(t *testing.T) {
	key := testKey()

	t.Run("round trips a payload", func(t *testing.T) {
		payload := map[string]any{
			"title":  "The Left Hand of Darkness",
			"author": "Ursula K. Le Guin",
			"rating": float64(5),
			"tags":   []any{"sf", "hugo"},
		}

		sealed, err := Encrypt(key, payload)
		require.NoError(t, err)

		got, err := Decrypt(key, sealed)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("wire layout is nonce then tag then ciphertext", func(t *testing.T) {
		payload := map[string]any{"title": "x"}
		sealed, err := Encrypt(key, payload)
		require.NoError(t, err)

		// JSON plaintext is non-empty, so ciphertext must extend past the
		// fixed-size header.
		assert.Greater(t, len(sealed), NonceSize+TagSize)
	})

	t.Run("fresh nonce on every call", func(t *testing.T) {
		payload := map[string]any{"title": "same"}

		a, err := Encrypt(key, payload)
		require.NoError(t, err)
		b, err := Encrypt(key, payload)
		require.NoError(t, err)

		assert.False(t, bytes.Equal(a[:NonceSize], b[:NonceSize]))
		assert.False(t, bytes.Equal(a, b))
	})

	t.Run("wrong key fails authentication", func(t *testing.T) {
		sealed, err := Encrypt(key, map[string]any{"title": "x"})
		require.NoError(t, err)

		other := testKey()
		other[0] ^= 0xff

		_, err = Decrypt(other, sealed)
		require.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("tampered ciphertext fails authentication", func(t *testing.T) {
		sealed, err := Encrypt(key, map[string]any{"title": "x"})
		require.NoError(t, err)

		sealed[len(sealed)-1] ^= 0x01
		_, err = Decrypt(key, sealed)
		require.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("tampered tag fails authentication", func(t *testing.T) {
		sealed, err := Encrypt(key, map[string]any{"title": "x"})
		require.NoError(t, err)

		sealed[NonceSize] ^= 0x01
		_, err = Decrypt(key, sealed)
		require.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("truncated data fails authentication", func(t *testing.T) {
		_, err := Decrypt(key, make([]byte, NonceSize+TagSize-1))
		require.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("rejects short key", func(t *testing.T) {
		_, err := Encrypt(make([]byte, 16), map[string]any{"title": "x"})
		require.ErrorIs(t, err, ErrInvalidKey)

		_, err = Decrypt(make([]byte, 16), make([]byte, 64))
		require.ErrorIs(t, err, ErrInvalidKey)
	})
}
