package license

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
)

// memTokenStore is an in-memory TokenStore for tests.
type memTokenStore struct {
	nextID   int64
	byHash   map[string]*models.DownloadToken
	getCalls int
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{byHash: make(map[string]*models.DownloadToken)}
}

func (s *memTokenStore) CreateDownloadToken(_ context.Context, token *models.DownloadToken) error {
	s.nextID++
	token.ID = s.nextID
	copied := *token
	s.byHash[token.TokenHash] = &copied
	return nil
}

func (s *memTokenStore) GetDownloadTokenByHash(_ context.Context, hash string) (*models.DownloadToken, error) {
	s.getCalls++
	token, ok := s.byHash[hash]
	if !ok {
		return nil, errors.New("download token not found")
	}
	copied := *token
	return &copied, nil
}

func (s *memTokenStore) DeleteDownloadToken(_ context.Context, id int64) error {
	for hash, token := range s.byHash {
		if token.ID == id {
			delete(s.byHash, hash)
		}
	}
	return nil
}

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func testLicense() *models.License {
	return &models.License{
		ID:         42,
		LicenseKey: "SMLISER-AAAABBBB-CCCCDDDD",
		ServiceID:  "svc-1",
		AppType:    models.AppTypePlugin,
		AppSlug:    "smart-woo",
	}
}

func testApp() *models.HostedApp {
	return &models.HostedApp{ID: 1, Type: models.AppTypePlugin, Slug: "smart-woo", Name: "Smart Woo", Version: "2.1.0"}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemTokenStore()
	issuer := NewTokenIssuer(store, testSigningKey)

	clientToken, record, err := issuer.Create(ctx, testLicense(), time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if record.ID == 0 {
		t.Errorf("Create() did not persist the record")
	}

	got, err := issuer.VerifyForApp(ctx, clientToken, testApp())
	if err != nil {
		t.Fatalf("VerifyForApp() error = %v", err)
	}
	if got.ID != record.ID {
		t.Errorf("VerifyForApp() record id = %d, want %d", got.ID, record.ID)
	}
}

func TestTokenIssuer_CreateRequiresBinding(t *testing.T) {
	issuer := NewTokenIssuer(newMemTokenStore(), testSigningKey)

	lic := testLicense()
	lic.AppType = ""
	lic.AppSlug = ""

	_, _, err := issuer.Create(context.Background(), lic, time.Hour)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Create() error = %v, want ErrInvalidState", err)
	}
}

func TestTokenIssuer_TamperedPayloadRejectedBeforeStore(t *testing.T) {
	ctx := context.Background()
	store := newMemTokenStore()
	issuer := NewTokenIssuer(store, testSigningKey)

	clientToken, _, err := issuer.Create(ctx, testLicense(), time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	store.getCalls = 0

	decoded, err := base64.RawURLEncoding.DecodeString(clientToken)
	if err != nil {
		t.Fatalf("decode client token: %v", err)
	}
	// Flip one payload byte; the signature no longer matches.
	decoded[0] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(decoded)

	_, err = issuer.VerifyForApp(ctx, tampered, testApp())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Code != CodeInvalidSignature {
		t.Fatalf("VerifyForApp() error = %v, want invalid_signature", err)
	}
	if store.getCalls != 0 {
		t.Errorf("store was consulted %d times for a forged token", store.getCalls)
	}
}

func TestTokenIssuer_MalformedToken(t *testing.T) {
	issuer := NewTokenIssuer(newMemTokenStore(), testSigningKey)

	tests := []struct {
		name  string
		token string
		want  AuthCode
	}{
		{"not base64url", "!!!not-base64!!!", CodeMalformedToken},
		{"no separator", base64.RawURLEncoding.EncodeToString([]byte("nodothere")), CodeMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.VerifyForApp(context.Background(), tt.token, testApp())
			var authErr *AuthError
			if !errors.As(err, &authErr) || authErr.Code != tt.want {
				t.Errorf("VerifyForApp() error = %v, want code %q", err, tt.want)
			}
		})
	}
}

func TestTokenIssuer_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	issuer := NewTokenIssuer(newMemTokenStore(), testSigningKey)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	issuer.SetClock(func() time.Time { return current })

	clientToken, _, err := issuer.Create(ctx, testLicense(), time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	current = base.Add(2 * time.Hour)
	_, err = issuer.VerifyForApp(ctx, clientToken, testApp())
	var forbErr *ForbiddenError
	if !errors.As(err, &forbErr) || forbErr.Reason != ReasonTokenExpired {
		t.Errorf("VerifyForApp() error = %v, want token_expired", err)
	}
}

func TestTokenIssuer_AppMismatch(t *testing.T) {
	ctx := context.Background()
	issuer := NewTokenIssuer(newMemTokenStore(), testSigningKey)

	clientToken, _, err := issuer.Create(ctx, testLicense(), time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	other := &models.HostedApp{Type: models.AppTypeTheme, Slug: "storefront"}
	_, err = issuer.VerifyForApp(ctx, clientToken, other)
	var forbErr *ForbiddenError
	if !errors.As(err, &forbErr) || forbErr.Reason != ReasonAppMismatch {
		t.Errorf("VerifyForApp() error = %v, want app_mismatch", err)
	}
}

func TestTokenIssuer_Invalidate(t *testing.T) {
	ctx := context.Background()
	issuer := NewTokenIssuer(newMemTokenStore(), testSigningKey)

	clientToken, record, err := issuer.Create(ctx, testLicense(), time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := issuer.Invalidate(ctx, record); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	_, err = issuer.VerifyForApp(ctx, clientToken, testApp())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("VerifyForApp() after Invalidate() error = %v, want ErrNotFound", err)
	}
}

func TestTokenIssuer_WrongKeyCannotForge(t *testing.T) {
	ctx := context.Background()
	store := newMemTokenStore()
	issuer := NewTokenIssuer(store, testSigningKey)

	clientToken, _, err := issuer.Create(ctx, testLicense(), time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	otherIssuer := NewTokenIssuer(store, []byte("ffffffffffffffffffffffffffffffff"))
	_, err = otherIssuer.VerifyForApp(ctx, clientToken, testApp())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Code != CodeInvalidSignature {
		t.Errorf("VerifyForApp() with different key error = %v, want invalid_signature", err)
	}
}
