package datastore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// encryptedPrefix marks values already encrypted by the column cipher, so
// re-saving a fetched row never double-encrypts.
const encryptedPrefix = "enc_v1$"

// ColumnCipher encrypts descriptor-declared columns with AES-GCM. The key
// is derived from the configured secret; ciphertexts are self-contained
// (nonce prepended) and carry a version prefix.
type ColumnCipher struct {
	aead cipher.AEAD
}

// NewColumnCipher derives a cipher from the encryption secret.
func NewColumnCipher(secret string) (*ColumnCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret must not be empty")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &ColumnCipher{aead: aead}, nil
}

// IsEncryptedValue reports whether the value already carries the cipher prefix.
func IsEncryptedValue(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix)
}

// Encrypt encrypts a plaintext value. Already-encrypted values pass through
// unchanged.
func (c *ColumnCipher) Encrypt(plain string) (string, error) {
	if IsEncryptedValue(plain) {
		return plain, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the cipher prefix are returned
// unchanged, so plaintext rows written before encryption was enabled still
// read back.
func (c *ColumnCipher) Decrypt(value string) (string, error) {
	if !IsEncryptedValue(value) {
		return value, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("malformed encrypted value: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("malformed encrypted value: too short")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plain), nil
}

// IsValueHashed reports whether the value is already a bcrypt hash. The
// check keeps hashing idempotent: re-saving a fetched row never re-hashes.
func IsValueHashed(value string) bool {
	return strings.HasPrefix(value, "$2")
}

// HashValue hashes a plaintext value with bcrypt. Already-hashed values
// pass through unchanged.
func HashValue(value string) (string, error) {
	if IsValueHashed(value) {
		return value, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash value: %w", err)
	}
	return string(hashed), nil
}

// CompareHashedValue reports whether plain matches the stored bcrypt hash.
func CompareHashedValue(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
