// Package security holds the credential primitives: salt generation, password
// hashing and the hex codec used by the persistence layer. It is a leaf package
// with no knowledge of accounts or sessions.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// SaltLength is the number of random bytes generated per credential.
const SaltLength = 16

// scrypt parameters. Changing these invalidates every stored credential.
const (
	scryptN    = 1 << 15
	scryptR    = 8
	scryptP    = 1
	hashLength = 32
)

// NewSalt returns a fresh cryptographically random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// HashPassword derives the stored credential hash from salt and password.
// The password buffer is zeroed before returning.
func HashPassword(salt, password []byte) ([]byte, error) {
	defer Zero(password)
	hash, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, hashLength)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

// VerifyPassword recomputes the hash from the presented salt and password and
// compares it against the stored hash. Equal length is required before the
// full-content comparison. The password buffer is zeroed before returning.
func VerifyPassword(salt, hash, password []byte) bool {
	computed, err := HashPassword(salt, password)
	if err != nil {
		return false
	}
	if len(computed) != len(hash) {
		return false
	}
	return subtle.ConstantTimeCompare(computed, hash) == 1
}

// Zero overwrites a consumed secret buffer.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// HexEncode renders binary credential material for storage.
func HexEncode(data []byte) string {
	return hex.EncodeToString(data)
}

// HexDecode parses credential material produced by HexEncode.
func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
