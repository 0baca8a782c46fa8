package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12

	apiKeyPrefix = "gda_"
	apiKeyBytes  = 32
)

// GenerateAPIKey creates a new random API key and its bcrypt hash.
// The plaintext key is shown to the caller once; only the hash is stored.
func GenerateAPIKey() (key, hash string, err error) {
	raw := make([]byte, apiKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate key material: %w", err)
	}

	key = apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)

	hashed, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash key: %w", err)
	}

	return key, string(hashed), nil
}

// VerifyAPIKey checks a plaintext API key against a stored hash
func VerifyAPIKey(key, hash string) bool {
	if !strings.HasPrefix(key, apiKeyPrefix) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// KeyRing verifies presented API keys against a set of stored hashes.
// Producers that cannot mint JWTs authenticate with a long-lived key instead.
type KeyRing struct {
	hashes []string
}

// NewKeyRing creates a key ring from bcrypt hashes
func NewKeyRing(hashes []string) *KeyRing {
	return &KeyRing{hashes: hashes}
}

// Empty reports whether the ring holds no keys
func (r *KeyRing) Empty() bool {
	return r == nil || len(r.hashes) == 0
}

// Verify checks a presented key against every hash in the ring
func (r *KeyRing) Verify(key string) bool {
	if r == nil {
		return false
	}
	for _, hash := range r.hashes {
		if VerifyAPIKey(key, hash) {
			return true
		}
	}
	return false
}
