// Package crypto provides key derivation and keyed-hash utilities for the
// license server. Every HMAC in the system is computed with the derived
// signing key, never with the raw master secret.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of the derived signing key in bytes.
	KeySize = 32

	// SecretSize is the size of generated raw secrets and tokens in bytes.
	SecretSize = 32
)

var (
	// ErrEmptySecret indicates missing host-supplied secret material.
	ErrEmptySecret = errors.New("master secret and salt must not be empty")
)

// deriveInfo is the HKDF context string binding derived keys to this use.
const deriveInfo = "smliser-signing-key-v1"

// DeriveKey derives the 32-byte signing key from the host-supplied master
// secret and salt using HKDF-SHA256. The function is pure: the same inputs
// always yield the same key, so callers may cache the result, but must not
// assume it survives a host secret rotation.
func DeriveKey(masterSecret, salt []byte) ([]byte, error) {
	if len(masterSecret) == 0 || len(salt) == 0 {
		return nil, ErrEmptySecret
	}
	reader := hkdf.New(sha256.New, masterSecret, salt, []byte(deriveInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// SignHMAC computes the hex-encoded HMAC-SHA256 of data with the given key.
func SignHMAC(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC compares a hex-encoded HMAC against the expected value for
// data in constant time.
func VerifyHMAC(key, data []byte, expected string) bool {
	computed := SignHMAC(key, data)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) == 1
}

// GenerateSecret returns SecretSize bytes of cryptographically secure
// random material.
func GenerateSecret() ([]byte, error) {
	buf := make([]byte, SecretSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("generate random secret: %w", err)
	}
	return buf, nil
}
