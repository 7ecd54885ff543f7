package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const prefix = "jh_"

// Generate creates a new registration access token in the format
// jh_<64 hex chars>. Returns the plaintext token (shown once to the
// registrant) and its SHA256 hash (stored in the database).
func Generate() (plain, hash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plain = prefix + hex.EncodeToString(randomBytes)
	hash = Hash(plain)
	return plain, hash, nil
}

// Hash hashes a plaintext token for storage or lookup.
func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// ValidateFormat checks the token shape before any database lookup.
func ValidateFormat(plain string) error {
	if !strings.HasPrefix(plain, prefix) || len(plain) != len(prefix)+64 {
		return errors.New("invalid access token format")
	}
	if _, err := hex.DecodeString(plain[len(prefix):]); err != nil {
		return errors.New("invalid access token format")
	}
	return nil
}
