package license

import (
	"encoding/base64"
	"strings"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/crypto"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
)

// DomainSecrets implements the per-(license,host) credential handshake.
// At first activation a host receives a one-time random secret; only its
// keyed hash is stored, so the raw value can never be recovered later.
type DomainSecrets struct {
	key []byte
}

// NewDomainSecrets creates the protocol handler with the derived signing key.
func NewDomainSecrets(key []byte) *DomainSecrets {
	return &DomainSecrets{key: key}
}

// Provision generates a fresh site secret for a previously-unseen host,
// records its hash in the license's activation map, and returns the
// base64-encoded raw secret together with the normalized host. The caller
// must persist the license; the raw secret is returned exactly once.
func (d *DomainSecrets) Provision(l *models.License, rawURL string) (secret, host string, err error) {
	raw, err := crypto.GenerateSecret()
	if err != nil {
		return "", "", err
	}

	hash := crypto.SignHMAC(d.key, raw)
	host, err = l.SetDomain(rawURL, hash)
	if err != nil {
		return "", "", err
	}

	return base64.StdEncoding.EncodeToString(raw), host, nil
}

// Verify authenticates a known host against its stored activation record.
// The credential is presented as a bearer-style authorization header
// carrying the base64-encoded raw secret from Provision.
func (d *DomainSecrets) Verify(l *models.License, rawURL, authHeader string) error {
	activation, ok := l.Domain(rawURL)
	if !ok {
		return &AuthError{Code: CodeSiteTokenMissing}
	}

	if strings.TrimSpace(authHeader) == "" {
		return &AuthError{Code: CodeAuthHeaderNotFound}
	}
	credential := ExtractBearerToken(authHeader)
	if credential == "" {
		// Tolerate clients that send the bare credential without the
		// Bearer prefix.
		credential = strings.TrimSpace(authHeader)
	}

	raw, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return &AuthError{Code: CodeInvalidTokenFormat}
	}

	if !crypto.VerifyHMAC(d.key, raw, activation.SecretHash) {
		return &AuthError{Code: CodeAuthorizationFailed}
	}

	return nil
}

// ExtractBearerToken extracts the token from an Authorization header value.
// Returns empty string if the header is not a valid Bearer token.
func ExtractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
