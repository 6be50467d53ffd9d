package datastore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnCipher(t *testing.T) {
	cipher, err := NewColumnCipher("test-secret")
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		enc, err := cipher.Encrypt("api-key-secret-value")
		require.NoError(t, err)
		assert.True(t, IsEncryptedValue(enc))
		assert.NotContains(t, enc, "api-key-secret-value")

		plain, err := cipher.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, "api-key-secret-value", plain)
	})

	t.Run("encrypt is idempotent on encrypted values", func(t *testing.T) {
		enc, err := cipher.Encrypt("value")
		require.NoError(t, err)

		again, err := cipher.Encrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, enc, again)
	})

	t.Run("decrypt passes plaintext through", func(t *testing.T) {
		plain, err := cipher.Decrypt("legacy-plaintext")
		require.NoError(t, err)
		assert.Equal(t, "legacy-plaintext", plain)
	})

	t.Run("tampered ciphertext fails", func(t *testing.T) {
		enc, err := cipher.Encrypt("value")
		require.NoError(t, err)
		tampered := enc[:len(enc)-4] + "AAAA"
		_, err = cipher.Decrypt(tampered)
		assert.Error(t, err)
	})

	t.Run("empty secret is rejected", func(t *testing.T) {
		_, err := NewColumnCipher("")
		assert.Error(t, err)
	})
}

func TestHashValue(t *testing.T) {
	t.Run("hashes plaintext", func(t *testing.T) {
		hashed, err := HashValue("hunter2")
		require.NoError(t, err)
		assert.True(t, IsValueHashed(hashed))
		assert.True(t, CompareHashedValue(hashed, "hunter2"))
		assert.False(t, CompareHashedValue(hashed, "wrong"))
	})

	t.Run("hashing is idempotent", func(t *testing.T) {
		hashed, err := HashValue("hunter2")
		require.NoError(t, err)

		again, err := HashValue(hashed)
		require.NoError(t, err)
		assert.Equal(t, hashed, again)
	})
}

func TestSlugify(t *testing.T) {
	t.Run("lowercases and dashes", func(t *testing.T) {
		slug := Slugify("My API Monitor!")
		assert.True(t, strings.HasPrefix(slug, "my-api-monitor-"))
		assert.NotContains(t, slug, " ")
		assert.NotContains(t, slug, "!")
	})

	t.Run("distinct suffixes", func(t *testing.T) {
		assert.NotEqual(t, Slugify("same name"), Slugify("same name"))
	})

	t.Run("empty source still yields a slug", func(t *testing.T) {
		assert.NotEmpty(t, Slugify(""))
	})

	t.Run("collapses consecutive separators", func(t *testing.T) {
		slug := Slugify("a  --  b")
		assert.True(t, strings.HasPrefix(slug, "a-b-"))
	})
}
