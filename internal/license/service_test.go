package license

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/rs/zerolog"
)

// fakeLicenseStore is an in-memory LicenseStore with optimistic locking
// semantics matching the database implementation.
type fakeLicenseStore struct {
	licenses map[int64]*models.License
	nextID   int64
	keys     map[string]bool
	// keyAlwaysExists forces every generated key to collide.
	keyAlwaysExists bool
	// beforeDomainUpdate runs once before the next conditional domain
	// write, simulating a concurrent writer.
	beforeDomainUpdate func(stored *models.License)
}

func newFakeLicenseStore() *fakeLicenseStore {
	return &fakeLicenseStore{
		licenses: make(map[int64]*models.License),
		keys:     make(map[string]bool),
	}
}

func cloneLicense(lic *models.License) *models.License {
	copied := *lic
	copied.ActivationMap = make(map[string]models.DomainActivation, len(lic.ActivationMap))
	for host, activation := range lic.ActivationMap {
		copied.ActivationMap[host] = activation
	}
	return &copied
}

func (s *fakeLicenseStore) GetLicense(_ context.Context, serviceID, licenseKey string) (*models.License, error) {
	for _, lic := range s.licenses {
		if lic.ServiceID == serviceID && lic.LicenseKey == licenseKey {
			return cloneLicense(lic), nil
		}
	}
	return nil, nil
}

func (s *fakeLicenseStore) GetLicenseByID(_ context.Context, id int64) (*models.License, error) {
	lic, ok := s.licenses[id]
	if !ok {
		return nil, nil
	}
	return cloneLicense(lic), nil
}

func (s *fakeLicenseStore) ListLicenses(_ context.Context, limit, offset int) ([]*models.License, error) {
	var out []*models.License
	for _, lic := range s.licenses {
		out = append(out, cloneLicense(lic))
	}
	return out, nil
}

func (s *fakeLicenseStore) CreateLicense(_ context.Context, lic *models.License) error {
	s.nextID++
	lic.ID = s.nextID
	lic.RowVersion = 1
	s.licenses[lic.ID] = cloneLicense(lic)
	s.keys[lic.LicenseKey] = true
	return nil
}

func (s *fakeLicenseStore) UpdateLicense(_ context.Context, lic *models.License) error {
	if _, ok := s.licenses[lic.ID]; !ok {
		return errors.New("license not found")
	}
	s.licenses[lic.ID] = cloneLicense(lic)
	return nil
}

func (s *fakeLicenseStore) UpdateLicenseDomains(_ context.Context, lic *models.License) error {
	stored, ok := s.licenses[lic.ID]
	if !ok {
		return errors.New("license not found")
	}
	if s.beforeDomainUpdate != nil {
		hook := s.beforeDomainUpdate
		s.beforeDomainUpdate = nil
		hook(stored)
	}
	if lic.RowVersion != stored.RowVersion {
		return fmt.Errorf("license %d: %w", lic.ID, ErrVersionConflict)
	}
	updated := cloneLicense(lic)
	updated.RowVersion++
	s.licenses[lic.ID] = updated
	lic.RowVersion++
	return nil
}

func (s *fakeLicenseStore) UpdateLicenseKey(_ context.Context, id int64, key string) error {
	lic, ok := s.licenses[id]
	if !ok {
		return errors.New("license not found")
	}
	delete(s.keys, lic.LicenseKey)
	lic.LicenseKey = key
	s.keys[key] = true
	return nil
}

func (s *fakeLicenseStore) LicenseKeyExists(_ context.Context, key string) (bool, error) {
	if s.keyAlwaysExists {
		return true, nil
	}
	return s.keys[key], nil
}

func (s *fakeLicenseStore) DeleteLicense(_ context.Context, id int64) error {
	delete(s.licenses, id)
	return nil
}

// fakeAppStore is an in-memory AppStore.
type fakeAppStore struct {
	apps map[string]*models.HostedApp
}

func newFakeAppStore(apps ...*models.HostedApp) *fakeAppStore {
	s := &fakeAppStore{apps: make(map[string]*models.HostedApp)}
	for _, app := range apps {
		s.apps[app.Binding()] = app
	}
	return s
}

func (s *fakeAppStore) GetHostedApp(_ context.Context, appType models.AppType, slug string) (*models.HostedApp, error) {
	app, ok := s.apps[string(appType)+"/"+slug]
	if !ok {
		return nil, nil
	}
	copied := *app
	return &copied, nil
}

type serviceFixture struct {
	service  *Service
	licenses *fakeLicenseStore
	tokens   *memTokenStore
}

func newServiceFixture(t *testing.T, apps ...*models.HostedApp) *serviceFixture {
	t.Helper()
	if len(apps) == 0 {
		apps = []*models.HostedApp{testApp()}
	}
	licenses := newFakeLicenseStore()
	tokens := newMemTokenStore()
	service := NewService(licenses, newFakeAppStore(apps...), tokens, Config{
		SigningKey: testSigningKey,
	}, zerolog.Nop())
	return &serviceFixture{service: service, licenses: licenses, tokens: tokens}
}

func (f *serviceFixture) createLicense(t *testing.T, maxDomains int) *models.License {
	t.Helper()
	lic, err := f.service.CreateLicense(context.Background(), CreateLicenseParams{
		ServiceID:         "svc-1",
		AppType:           models.AppTypePlugin,
		AppSlug:           "smart-woo",
		MaxAllowedDomains: maxDomains,
	})
	if err != nil {
		t.Fatalf("CreateLicense() error = %v", err)
	}
	return lic
}

func activateParams(lic *models.License, domain, authHeader string) ActivateParams {
	return ActivateParams{
		ServiceID:  lic.ServiceID,
		LicenseKey: lic.LicenseKey,
		Domain:     domain,
		AppType:    models.AppTypePlugin,
		AppSlug:    "smart-woo",
		AuthHeader: authHeader,
	}
}

func TestService_ActivateNewDomain(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 2)

	result, err := f.service.Activate(ctx, activateParams(lic, "https://shop.example.com", ""))
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if result.SiteSecret == "" {
		t.Errorf("Activate() returned no site secret for a new domain")
	}
	if result.Host != "shop.example.com" {
		t.Errorf("Activate() host = %q, want %q", result.Host, "shop.example.com")
	}
	if result.DownloadToken == "" {
		t.Fatalf("Activate() returned no download token")
	}

	// The issued token must authorize a download for the bound app.
	_, _, err = f.service.VerifyDownload(ctx, models.AppTypePlugin, "smart-woo", result.DownloadToken)
	if err != nil {
		t.Errorf("VerifyDownload() error = %v", err)
	}
}

func TestService_ActivateKnownDomain(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 1)

	first, err := f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	if err != nil {
		t.Fatalf("first Activate() error = %v", err)
	}

	// Re-activation without the site secret is refused.
	_, err = f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	assertAuthCode(t, err, CodeAuthHeaderNotFound)

	// With the secret it succeeds and no new secret is minted.
	second, err := f.service.Activate(ctx, activateParams(lic, "shop.example.com", "Bearer "+first.SiteSecret))
	if err != nil {
		t.Fatalf("second Activate() error = %v", err)
	}
	if second.SiteSecret != "" {
		t.Errorf("re-activation returned a site secret; it must be issued exactly once")
	}
	if second.DownloadToken == first.DownloadToken {
		t.Errorf("re-activation returned the same download token")
	}
}

func TestService_ActivateQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 1)

	if _, err := f.service.Activate(ctx, activateParams(lic, "a.example.com", "")); err != nil {
		t.Fatalf("first Activate() error = %v", err)
	}

	_, err := f.service.Activate(ctx, activateParams(lic, "b.example.com", ""))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("Activate() over quota error = %v, want ErrLimitExceeded", err)
	}
}

func TestService_ActivateUnlimitedDomains(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, models.UnlimitedDomains)

	for i := 0; i < 5; i++ {
		domain := fmt.Sprintf("site-%d.example.com", i)
		if _, err := f.service.Activate(ctx, activateParams(lic, domain, "")); err != nil {
			t.Fatalf("Activate(%s) error = %v", domain, err)
		}
	}
}

func TestService_ActivateNotFound(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 1)

	t.Run("unknown license key", func(t *testing.T) {
		params := activateParams(lic, "shop.example.com", "")
		params.LicenseKey = "SMLISER-DOESNOTEX-IST00000"
		_, err := f.service.Activate(ctx, params)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Activate() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("wrong service id", func(t *testing.T) {
		params := activateParams(lic, "shop.example.com", "")
		params.ServiceID = "svc-other"
		_, err := f.service.Activate(ctx, params)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Activate() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown app", func(t *testing.T) {
		params := activateParams(lic, "shop.example.com", "")
		params.AppSlug = "no-such-plugin"
		_, err := f.service.Activate(ctx, params)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Activate() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_ActivateDisallowedStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		status models.LicenseStatus
		want   ForbiddenReason
	}{
		{models.StatusSuspended, ReasonSuspended},
		{models.StatusRevoked, ReasonRevoked},
		{models.StatusDeactivated, ReasonDeactivated},
		{models.StatusExpired, ReasonExpired},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newServiceFixture(t)
			lic := f.createLicense(t, 1)
			if err := f.service.UpdateStatus(ctx, lic.ID, tt.status); err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}

			_, err := f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
			var forbErr *ForbiddenError
			if !errors.As(err, &forbErr) || forbErr.Reason != tt.want {
				t.Errorf("Activate() error = %v, want forbidden reason %q", err, tt.want)
			}
		})
	}
}

func TestService_ActivateDateExpired(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	past := time.Now().AddDate(-1, 0, 0)
	lic, err := f.service.CreateLicense(ctx, CreateLicenseParams{
		ServiceID:         "svc-1",
		AppType:           models.AppTypePlugin,
		AppSlug:           "smart-woo",
		EndDate:           &past,
		MaxAllowedDomains: 1,
	})
	if err != nil {
		t.Fatalf("CreateLicense() error = %v", err)
	}

	_, err = f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	var forbErr *ForbiddenError
	if !errors.As(err, &forbErr) || forbErr.Reason != ReasonExpired {
		t.Errorf("Activate() error = %v, want forbidden reason %q", err, ReasonExpired)
	}
}

func TestService_ActivateUnboundLicense(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	lic, err := f.service.CreateLicense(ctx, CreateLicenseParams{
		ServiceID:         "svc-1",
		MaxAllowedDomains: 1,
	})
	if err != nil {
		t.Fatalf("CreateLicense() error = %v", err)
	}

	_, err = f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Activate() error = %v, want ErrInvalidState", err)
	}
}

func TestService_ActivateAppMismatch(t *testing.T) {
	ctx := context.Background()
	theme := &models.HostedApp{ID: 2, Type: models.AppTypeTheme, Slug: "storefront", Name: "Storefront"}
	f := newServiceFixture(t, testApp(), theme)
	lic := f.createLicense(t, 1)

	params := activateParams(lic, "shop.example.com", "")
	params.AppType = models.AppTypeTheme
	params.AppSlug = "storefront"

	_, err := f.service.Activate(ctx, params)
	var forbErr *ForbiddenError
	if !errors.As(err, &forbErr) || forbErr.Reason != ReasonAppMismatch {
		t.Errorf("Activate() error = %v, want forbidden reason %q", err, ReasonAppMismatch)
	}
}

func TestService_ActivateRetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 5)

	// A concurrent activation bumps the stored version right before the
	// first conditional write.
	f.licenses.beforeDomainUpdate = func(stored *models.License) {
		stored.ActivationMap["other.example.com"] = models.DomainActivation{SecretHash: "x"}
		stored.RowVersion++
	}

	result, err := f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if result.SiteSecret == "" {
		t.Errorf("Activate() returned no site secret after retry")
	}

	stored, _ := f.licenses.GetLicenseByID(ctx, lic.ID)
	if stored.TotalActiveDomains() != 2 {
		t.Errorf("stored license has %d domains, want 2 (concurrent + retried)", stored.TotalActiveDomains())
	}
}

func TestService_ActivateConcurrentSameDomain(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 5)

	// The concurrent writer claims the same host.
	f.licenses.beforeDomainUpdate = func(stored *models.License) {
		stored.ActivationMap["shop.example.com"] = models.DomainActivation{SecretHash: "x"}
		stored.RowVersion++
	}

	_, err := f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("Activate() error = %v, want ErrVersionConflict", err)
	}
}

func TestService_Deactivate(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 1)

	result, err := f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	auth := "Bearer " + result.SiteSecret

	changed, err := f.service.Deactivate(ctx, lic.ServiceID, lic.LicenseKey, "shop.example.com", auth)
	if err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if !changed {
		t.Errorf("Deactivate() changed = false on first call")
	}

	// Idempotent: repeating reports success without another write.
	changed, err = f.service.Deactivate(ctx, lic.ServiceID, lic.LicenseKey, "shop.example.com", auth)
	if err != nil {
		t.Fatalf("second Deactivate() error = %v", err)
	}
	if changed {
		t.Errorf("second Deactivate() changed = true, want false")
	}

	// The deactivated status blocks activation.
	_, err = f.service.Activate(ctx, activateParams(lic, "shop.example.com", auth))
	var forbErr *ForbiddenError
	if !errors.As(err, &forbErr) || forbErr.Reason != ReasonDeactivated {
		t.Errorf("Activate() after deactivation error = %v, want reason %q", err, ReasonDeactivated)
	}

	// Deactivation without the site secret is refused.
	_, err = f.service.Deactivate(ctx, lic.ServiceID, lic.LicenseKey, "shop.example.com", "")
	assertAuthCode(t, err, CodeAuthHeaderNotFound)
}

func TestService_Uninstall(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 1)

	result, err := f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	auth := "Bearer " + result.SiteSecret

	if err := f.service.Uninstall(ctx, lic.ServiceID, lic.LicenseKey, "shop.example.com", auth); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	stored, _ := f.licenses.GetLicenseByID(ctx, lic.ID)
	if stored.TotalActiveDomains() != 0 {
		t.Errorf("license still has %d active domains after uninstall", stored.TotalActiveDomains())
	}

	// The freed slot can be activated again with a fresh secret.
	again, err := f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	if err != nil {
		t.Fatalf("Activate() after uninstall error = %v", err)
	}
	if again.SiteSecret == "" {
		t.Errorf("re-provisioned domain received no new secret")
	}
}

func TestService_Reauthenticate(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 1)

	result, err := f.service.Activate(ctx, activateParams(lic, "shop.example.com", ""))
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	auth := "Bearer " + result.SiteSecret

	fresh, err := f.service.Reauthenticate(ctx, lic.ServiceID, lic.LicenseKey, "shop.example.com", auth, result.DownloadToken)
	if err != nil {
		t.Fatalf("Reauthenticate() error = %v", err)
	}
	if fresh == result.DownloadToken {
		t.Errorf("Reauthenticate() returned the same token")
	}

	// The old token is invalidated, the fresh one works.
	if _, _, err := f.service.VerifyDownload(ctx, models.AppTypePlugin, "smart-woo", result.DownloadToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("old token VerifyDownload() error = %v, want ErrNotFound", err)
	}
	if _, _, err := f.service.VerifyDownload(ctx, models.AppTypePlugin, "smart-woo", fresh); err != nil {
		t.Errorf("fresh token VerifyDownload() error = %v", err)
	}

	// Rotation requires the site secret.
	_, err = f.service.Reauthenticate(ctx, lic.ServiceID, lic.LicenseKey, "shop.example.com", "", fresh)
	assertAuthCode(t, err, CodeAuthHeaderNotFound)
}

func TestService_CreateLicense(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	lic := f.createLicense(t, 3)
	if !strings.HasPrefix(lic.LicenseKey, DefaultKeyPrefix+"-") {
		t.Errorf("license key %q does not carry prefix %q", lic.LicenseKey, DefaultKeyPrefix)
	}
	if lic.ID == 0 {
		t.Errorf("license was not persisted")
	}

	t.Run("missing service id", func(t *testing.T) {
		_, err := f.service.CreateLicense(ctx, CreateLicenseParams{MaxAllowedDomains: 1})
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("CreateLicense() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("invalid domain cap", func(t *testing.T) {
		_, err := f.service.CreateLicense(ctx, CreateLicenseParams{ServiceID: "svc-1", MaxAllowedDomains: -2})
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("CreateLicense() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("key generation exhausted", func(t *testing.T) {
		f := newServiceFixture(t)
		f.licenses.keyAlwaysExists = true
		_, err := f.service.CreateLicense(ctx, CreateLicenseParams{ServiceID: "svc-1", MaxAllowedDomains: 1})
		if !errors.Is(err, ErrKeyExhausted) {
			t.Errorf("CreateLicense() error = %v, want ErrKeyExhausted", err)
		}
	})
}

func TestService_RegenerateKey(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 1)
	originalKey := lic.LicenseKey

	t.Run("dry run leaves stored key", func(t *testing.T) {
		key, err := f.service.RegenerateKey(ctx, lic.ID, false, 0)
		if err != nil {
			t.Fatalf("RegenerateKey() error = %v", err)
		}
		if key == originalKey {
			t.Errorf("RegenerateKey() returned the old key")
		}
		stored, _ := f.licenses.GetLicenseByID(ctx, lic.ID)
		if stored.LicenseKey != originalKey {
			t.Errorf("dry run persisted key %q", stored.LicenseKey)
		}
	})

	t.Run("persisted", func(t *testing.T) {
		key, err := f.service.RegenerateKey(ctx, lic.ID, true, 0)
		if err != nil {
			t.Fatalf("RegenerateKey() error = %v", err)
		}
		stored, _ := f.licenses.GetLicenseByID(ctx, lic.ID)
		if stored.LicenseKey != key {
			t.Errorf("stored key = %q, want %q", stored.LicenseKey, key)
		}
	})

	t.Run("unknown license", func(t *testing.T) {
		_, err := f.service.RegenerateKey(ctx, 9999, true, 0)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("RegenerateKey() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	future := time.Now().AddDate(1, 0, 0)
	lic, err := f.service.CreateLicense(ctx, CreateLicenseParams{
		ServiceID:         "svc-1",
		AppType:           models.AppTypePlugin,
		AppSlug:           "smart-woo",
		EndDate:           &future,
		MaxAllowedDomains: 1,
	})
	if err != nil {
		t.Fatalf("CreateLicense() error = %v", err)
	}

	if err := f.service.UpdateStatus(ctx, lic.ID, models.StatusSuspended); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	stored, _ := f.licenses.GetLicenseByID(ctx, lic.ID)
	if stored.StatusAt(time.Now()) != models.StatusSuspended {
		t.Errorf("status after override = %q, want suspended", stored.StatusAt(time.Now()))
	}

	// Clearing the override reverts to date-derived status.
	if err := f.service.UpdateStatus(ctx, lic.ID, ""); err != nil {
		t.Fatalf("UpdateStatus(clear) error = %v", err)
	}
	stored, _ = f.licenses.GetLicenseByID(ctx, lic.ID)
	if stored.StatusAt(time.Now()) != models.StatusActive {
		t.Errorf("status after clear = %q, want active", stored.StatusAt(time.Now()))
	}

	if err := f.service.UpdateStatus(ctx, lic.ID, models.LicenseStatus("bogus")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("UpdateStatus(bogus) error = %v, want ErrInvalidState", err)
	}
}

func TestService_DeleteLicense(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 1)

	if err := f.service.DeleteLicense(ctx, lic.ID); err != nil {
		t.Fatalf("DeleteLicense() error = %v", err)
	}
	if err := f.service.DeleteLicense(ctx, lic.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteLicense() on deleted license error = %v, want ErrNotFound", err)
	}
}

func TestService_IssueToken(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	lic := f.createLicense(t, 1)

	token, err := f.service.IssueToken(ctx, lic.ID, 0)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, _, err := f.service.VerifyDownload(ctx, models.AppTypePlugin, "smart-woo", token); err != nil {
		t.Errorf("VerifyDownload() error = %v", err)
	}

	if _, err := f.service.IssueToken(ctx, 9999, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("IssueToken() for unknown license error = %v, want ErrNotFound", err)
	}
}
