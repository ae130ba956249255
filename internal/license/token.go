package license

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/crypto"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
)

// DefaultTokenTTL is the issuance lifetime applied when the caller does
// not specify one.
const DefaultTokenTTL = time.Hour

// TokenStore is the persistence surface the token issuer needs.
type TokenStore interface {
	CreateDownloadToken(ctx context.Context, token *models.DownloadToken) error
	GetDownloadTokenByHash(ctx context.Context, hash string) (*models.DownloadToken, error)
	DeleteDownloadToken(ctx context.Context, id int64) error
}

// tokenPayload is the signed client-facing token body.
type tokenPayload struct {
	LicenseID  int64  `json:"license_id"`
	AppBinding string `json:"app_binding"`
	ExpiryTS   int64  `json:"expiry_ts"`
	IssuedAt   int64  `json:"issued_at"`
	RawToken   string `json:"raw_token"`
}

// TokenIssuer issues and verifies signed, time-boxed download tokens.
//
// Client wire format: base64url(payload_json + "." + signature) where
// signature is the hex HMAC-SHA256 of the payload JSON under the derived
// key. The raw token inside the payload is hashed with the same key for
// the store lookup; the raw value is never persisted.
type TokenIssuer struct {
	store TokenStore
	key   []byte
	now   func() time.Time
}

// NewTokenIssuer creates a token issuer backed by the given store and
// derived signing key.
func NewTokenIssuer(store TokenStore, key []byte) *TokenIssuer {
	return &TokenIssuer{
		store: store,
		key:   key,
		now:   time.Now,
	}
}

// SetClock overrides the issuer's time source. Intended for tests.
func (t *TokenIssuer) SetClock(now func() time.Time) {
	t.now = now
}

// Create issues a download token for the license with the given lifetime.
// The license must already be bound to an application.
func (t *TokenIssuer) Create(ctx context.Context, lic *models.License, ttl time.Duration) (string, *models.DownloadToken, error) {
	if !lic.IsIssued() {
		return "", nil, fmt.Errorf("license must be bound to an application first: %w", ErrInvalidState)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	rawBytes, err := crypto.GenerateSecret()
	if err != nil {
		return "", nil, err
	}
	rawToken := hex.EncodeToString(rawBytes)

	now := t.now()
	record := &models.DownloadToken{
		AppType:    lic.AppType,
		AppSlug:    lic.AppSlug,
		LicenseKey: lic.LicenseKey,
		TokenHash:  crypto.SignHMAC(t.key, []byte(rawToken)),
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	if err := t.store.CreateDownloadToken(ctx, record); err != nil {
		return "", nil, fmt.Errorf("persist download token: %v: %w", err, ErrInternal)
	}

	payload := tokenPayload{
		LicenseID:  lic.ID,
		AppBinding: string(lic.AppType) + "/" + lic.AppSlug,
		ExpiryTS:   record.ExpiresAt.Unix(),
		IssuedAt:   now.Unix(),
		RawToken:   rawToken,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal token payload: %w", err)
	}

	signature := crypto.SignHMAC(t.key, payloadJSON)
	clientToken := base64.RawURLEncoding.EncodeToString(append(append(payloadJSON, '.'), signature...))

	return clientToken, record, nil
}

// VerifyForApp checks a client token end to end: signature first, then the
// store lookup, then expiry and app binding. Forged or tampered tokens are
// rejected before any store access.
func (t *TokenIssuer) VerifyForApp(ctx context.Context, clientToken string, app *models.HostedApp) (*models.DownloadToken, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(clientToken)
	if err != nil {
		return nil, &AuthError{Code: CodeMalformedToken}
	}

	// The payload is JSON and may itself contain dots, so the signature
	// is split off at the last separator.
	sep := bytes.LastIndexByte(decoded, '.')
	if sep < 0 {
		return nil, &AuthError{Code: CodeMalformedToken}
	}
	payloadJSON, signature := decoded[:sep], string(decoded[sep+1:])

	if !crypto.VerifyHMAC(t.key, payloadJSON, signature) {
		return nil, &AuthError{Code: CodeInvalidSignature}
	}

	var payload tokenPayload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil || payload.RawToken == "" {
		return nil, &AuthError{Code: CodeInvalidPayload}
	}

	hash := crypto.SignHMAC(t.key, []byte(payload.RawToken))
	record, err := t.store.GetDownloadTokenByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("download token: %w", ErrNotFound)
	}

	if record.ExpiredAt(t.now()) {
		return nil, &ForbiddenError{Reason: ReasonTokenExpired}
	}
	if record.AppType != app.Type || record.AppSlug != app.Slug {
		return nil, &ForbiddenError{Reason: ReasonAppMismatch}
	}

	return record, nil
}

// Invalidate deletes a token record, making the client token unusable.
func (t *TokenIssuer) Invalidate(ctx context.Context, record *models.DownloadToken) error {
	if err := t.store.DeleteDownloadToken(ctx, record.ID); err != nil {
		return fmt.Errorf("invalidate download token: %v: %w", err, ErrInternal)
	}
	return nil
}
