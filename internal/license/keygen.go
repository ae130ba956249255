package license

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultKeyPrefix is the tenant prefix applied to generated license keys.
	DefaultKeyPrefix = "SMLISER"
	// DefaultKeyAttempts is the bounded retry count for uniqueness checks.
	DefaultKeyAttempts = 5

	// keyGroupSize is the display chunk width of a license key.
	keyGroupSize = 8
	// keyRandomBytes is the extra entropy mixed into each key alongside
	// the random identifier.
	keyRandomBytes = 20
)

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

// GenerateLicenseKey builds a high-entropy license key in display form:
// PREFIX followed by 8-character uppercase alphanumeric groups joined by
// hyphens. Two independent entropy sources are combined: a random UUID and
// a batch of cryptographically secure random bytes.
func GenerateLicenseKey(prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	entropy := make([]byte, keyRandomBytes)
	if _, err := io.ReadFull(rand.Reader, entropy); err != nil {
		return "", fmt.Errorf("generate license key entropy: %w", err)
	}

	raw := strings.ToUpper(uuid.NewString() + hex.EncodeToString(entropy))
	raw = nonAlnum.ReplaceAllString(raw, "")

	groups := make([]string, 0, len(raw)/keyGroupSize+1)
	groups = append(groups, strings.ToUpper(prefix))
	for i := 0; i+keyGroupSize <= len(raw); i += keyGroupSize {
		groups = append(groups, raw[i:i+keyGroupSize])
	}

	return strings.Join(groups, "-"), nil
}
