// Package license implements the entitlement core: the license state
// machine, the domain-secret handshake, and the signed download-token
// protocol.
package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// quotaRetries bounds the optimistic-lock retries for activation-map writes.
const quotaRetries = 3

// LicenseStore is the persistence surface the service needs for licenses.
// Lookup methods return (nil, nil) when no record exists.
type LicenseStore interface {
	GetLicense(ctx context.Context, serviceID, licenseKey string) (*models.License, error)
	GetLicenseByID(ctx context.Context, id int64) (*models.License, error)
	ListLicenses(ctx context.Context, limit, offset int) ([]*models.License, error)
	CreateLicense(ctx context.Context, lic *models.License) error
	UpdateLicense(ctx context.Context, lic *models.License) error
	// UpdateLicenseDomains writes the activation map conditionally on the
	// license's RowVersion and returns ErrVersionConflict when the row
	// changed underneath the caller.
	UpdateLicenseDomains(ctx context.Context, lic *models.License) error
	UpdateLicenseKey(ctx context.Context, id int64, key string) error
	LicenseKeyExists(ctx context.Context, key string) (bool, error)
	DeleteLicense(ctx context.Context, id int64) error
}

// AppStore resolves hosted applications. Returns (nil, nil) when absent.
type AppStore interface {
	GetHostedApp(ctx context.Context, appType models.AppType, slug string) (*models.HostedApp, error)
}

// Config holds the service's cryptographic and policy settings.
type Config struct {
	SigningKey []byte
	KeyPrefix  string
	TokenTTL   time.Duration
}

// Service is the dependency-injected entry point for all license
// operations. It holds no process-wide state.
type Service struct {
	licenses  LicenseStore
	apps      AppStore
	tokens    *TokenIssuer
	secrets   *DomainSecrets
	keyPrefix string
	tokenTTL  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService wires the license service from its stores and configuration.
func NewService(licenses LicenseStore, apps AppStore, tokens TokenStore, cfg Config, logger zerolog.Logger) *Service {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		licenses:  licenses,
		apps:      apps,
		tokens:    NewTokenIssuer(tokens, cfg.SigningKey),
		secrets:   NewDomainSecrets(cfg.SigningKey),
		keyPrefix: prefix,
		tokenTTL:  ttl,
		logger:    logger.With().Str("component", "license_service").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the service's time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.tokens.SetClock(now)
}

// ActivateParams identifies the license, host, and application to activate.
type ActivateParams struct {
	ServiceID  string
	LicenseKey string
	Domain     string
	AppType    models.AppType
	AppSlug    string
	// AuthHeader carries the site secret for already-activated hosts.
	AuthHeader string
}

// ActivationResult is the successful outcome of an activation.
type ActivationResult struct {
	DownloadToken string
	// SiteSecret is set only when the domain was newly provisioned. It is
	// returned exactly once and cannot be recovered afterwards.
	SiteSecret string
	Host       string
	// ExpiresAt is the license end date; nil for lifetime licenses.
	ExpiresAt *time.Time
}

// Activate runs the full activation protocol: resolve the application and
// license, authorize the license for the app, provision or authenticate
// the domain, and issue a download token.
func (s *Service) Activate(ctx context.Context, p ActivateParams) (*ActivationResult, error) {
	app, err := s.resolveApp(ctx, p.AppType, p.AppSlug)
	if err != nil {
		return nil, err
	}

	lic, err := s.resolveLicense(ctx, p.ServiceID, p.LicenseKey)
	if err != nil {
		return nil, err
	}

	if err := s.canServe(lic, app); err != nil {
		return nil, err
	}

	result := &ActivationResult{ExpiresAt: lic.EndDate}

	if lic.IsNewDomain(p.Domain) {
		if err := s.provisionDomain(ctx, &lic, p.Domain, result); err != nil {
			return nil, err
		}
	} else {
		if err := s.secrets.Verify(lic, p.Domain, p.AuthHeader); err != nil {
			return nil, err
		}
		result.Host, _ = models.NormalizeHost(p.Domain)
	}

	token, _, err := s.tokens.Create(ctx, lic, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	result.DownloadToken = token

	s.logger.Info().
		Int64("license_id", lic.ID).
		Str("host", result.Host).
		Bool("new_domain", result.SiteSecret != "").
		Msg("license activated")

	return result, nil
}

// provisionDomain runs the first-activation path under the quota, using a
// version-conditional write so concurrent activations cannot oversubscribe
// the cap.
func (s *Service) provisionDomain(ctx context.Context, lic **models.License, domain string, result *ActivationResult) error {
	backoff := retry.WithMaxRetries(quotaRetries, retry.NewConstant(25*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		current := *lic
		if current.HasReachedMaxAllowedDomains() {
			return fmt.Errorf("license %d domain quota reached: %w", current.ID, ErrLimitExceeded)
		}

		secret, host, err := s.secrets.Provision(current, domain)
		if err != nil {
			return err
		}

		if err := s.licenses.UpdateLicenseDomains(ctx, current); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				fresh, ferr := s.licenses.GetLicenseByID(ctx, current.ID)
				if ferr != nil || fresh == nil {
					return fmt.Errorf("reload license after conflict: %v: %w", ferr, ErrInternal)
				}
				// A concurrent activation may have claimed the host
				// already; re-evaluate from fresh state.
				if !fresh.IsNewDomain(domain) {
					return fmt.Errorf("domain activated concurrently: %w", ErrVersionConflict)
				}
				*lic = fresh
				return retry.RetryableError(err)
			}
			return fmt.Errorf("save activation map: %v: %w", err, ErrInternal)
		}

		result.SiteSecret = secret
		result.Host = host
		return nil
	})
}

// Deactivate marks the license deactivated after authenticating the host.
// It is idempotent: an already-deactivated license reports success without
// re-persisting, indicated by a false return.
func (s *Service) Deactivate(ctx context.Context, serviceID, licenseKey, domain, authHeader string) (bool, error) {
	lic, err := s.resolveLicense(ctx, serviceID, licenseKey)
	if err != nil {
		return false, err
	}

	if err := s.secrets.Verify(lic, domain, authHeader); err != nil {
		return false, err
	}

	if lic.StatusAt(s.now()) == models.StatusDeactivated {
		return false, nil
	}

	lic.Status = models.StatusDeactivated
	if err := s.licenses.UpdateLicense(ctx, lic); err != nil {
		return false, fmt.Errorf("save deactivated license: %v: %w", err, ErrInternal)
	}

	s.logger.Info().Int64("license_id", lic.ID).Msg("license deactivated")
	return true, nil
}

// Uninstall removes the host from the activation map entirely, independent
// of the license status.
func (s *Service) Uninstall(ctx context.Context, serviceID, licenseKey, domain, authHeader string) error {
	lic, err := s.resolveLicense(ctx, serviceID, licenseKey)
	if err != nil {
		return err
	}

	if err := s.secrets.Verify(lic, domain, authHeader); err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(quotaRetries, retry.NewConstant(25*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if !lic.RemoveDomain(domain) {
			return nil
		}
		if err := s.licenses.UpdateLicenseDomains(ctx, lic); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				fresh, ferr := s.licenses.GetLicenseByID(ctx, lic.ID)
				if ferr != nil || fresh == nil {
					return fmt.Errorf("reload license after conflict: %v: %w", ferr, ErrInternal)
				}
				lic = fresh
				return retry.RetryableError(err)
			}
			return fmt.Errorf("save activation map: %v: %w", err, ErrInternal)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int64("license_id", lic.ID).Str("domain", domain).Msg("domain uninstalled")
	return nil
}

// Reauthenticate rotates a site's download token: the domain secret must
// verify, the presented token must verify, then it is invalidated and a
// fresh one issued.
func (s *Service) Reauthenticate(ctx context.Context, serviceID, licenseKey, domain, authHeader, clientToken string) (string, error) {
	lic, err := s.resolveLicense(ctx, serviceID, licenseKey)
	if err != nil {
		return "", err
	}

	if err := s.secrets.Verify(lic, domain, authHeader); err != nil {
		return "", err
	}

	app, err := s.resolveApp(ctx, lic.AppType, lic.AppSlug)
	if err != nil {
		return "", err
	}

	record, err := s.tokens.VerifyForApp(ctx, clientToken, app)
	if err != nil {
		return "", err
	}

	if err := s.tokens.Invalidate(ctx, record); err != nil {
		return "", err
	}

	fresh, _, err := s.tokens.Create(ctx, lic, s.tokenTTL)
	if err != nil {
		return "", err
	}

	s.logger.Info().Int64("license_id", lic.ID).Str("domain", domain).Msg("download token rotated")
	return fresh, nil
}

// VerifyDownload authenticates a download token against the requested
// application and returns the token record and the resolved app.
func (s *Service) VerifyDownload(ctx context.Context, appType models.AppType, slug, clientToken string) (*models.DownloadToken, *models.HostedApp, error) {
	app, err := s.resolveApp(ctx, appType, slug)
	if err != nil {
		return nil, nil, err
	}

	record, err := s.tokens.VerifyForApp(ctx, clientToken, app)
	if err != nil {
		return nil, nil, err
	}

	return record, app, nil
}

// IssueToken issues a download token for a license by id, for operator use.
func (s *Service) IssueToken(ctx context.Context, licenseID int64, ttl time.Duration) (string, error) {
	lic, err := s.licenses.GetLicenseByID(ctx, licenseID)
	if err != nil {
		return "", fmt.Errorf("get license: %v: %w", err, ErrInternal)
	}
	if lic == nil {
		return "", fmt.Errorf("license %d: %w", licenseID, ErrNotFound)
	}
	if ttl <= 0 {
		ttl = s.tokenTTL
	}
	token, _, err := s.tokens.Create(ctx, lic, ttl)
	return token, err
}

// CreateLicenseParams describes a new license.
type CreateLicenseParams struct {
	UserID            int64
	ServiceID         string
	AppType           models.AppType
	AppSlug           string
	Status            models.LicenseStatus
	StartDate         *time.Time
	EndDate           *time.Time
	MaxAllowedDomains int
}

// CreateLicense generates a unique key and persists a new license.
func (s *Service) CreateLicense(ctx context.Context, p CreateLicenseParams) (*models.License, error) {
	if p.MaxAllowedDomains < models.UnlimitedDomains {
		return nil, fmt.Errorf("max allowed domains must be >= -1: %w", ErrInvalidState)
	}
	if p.ServiceID == "" {
		return nil, fmt.Errorf("service id is required: %w", ErrInvalidState)
	}

	key, err := s.generateUniqueKey(ctx, s.keyPrefix, DefaultKeyAttempts)
	if err != nil {
		return nil, err
	}

	lic := &models.License{
		UserID:            p.UserID,
		LicenseKey:        key,
		ServiceID:         p.ServiceID,
		AppType:           p.AppType,
		AppSlug:           p.AppSlug,
		Status:            p.Status,
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		MaxAllowedDomains: p.MaxAllowedDomains,
		ActivationMap:     make(map[string]models.DomainActivation),
	}
	if err := s.licenses.CreateLicense(ctx, lic); err != nil {
		return nil, fmt.Errorf("create license: %v: %w", err, ErrInternal)
	}

	s.logger.Info().Int64("license_id", lic.ID).Str("service_id", lic.ServiceID).Msg("license created")
	return lic, nil
}

// RegenerateKey replaces a license's key with a fresh unique one. When
// persist is false the new key is only returned, not written.
func (s *Service) RegenerateKey(ctx context.Context, licenseID int64, persist bool, tries int) (string, error) {
	lic, err := s.licenses.GetLicenseByID(ctx, licenseID)
	if err != nil {
		return "", fmt.Errorf("get license: %v: %w", err, ErrInternal)
	}
	if lic == nil {
		return "", fmt.Errorf("license %d: %w", licenseID, ErrNotFound)
	}

	if tries <= 0 {
		tries = DefaultKeyAttempts
	}
	key, err := s.generateUniqueKey(ctx, s.keyPrefix, tries)
	if err != nil {
		return "", err
	}

	lic.LicenseKey = key
	if persist && lic.ID != 0 {
		if err := s.licenses.UpdateLicenseKey(ctx, lic.ID, key); err != nil {
			return "", fmt.Errorf("persist regenerated key: %v: %w", err, ErrInternal)
		}
	}

	s.logger.Info().Int64("license_id", lic.ID).Bool("persisted", persist).Msg("license key regenerated")
	return key, nil
}

// UpdateStatus sets the operator-stored status override. An empty status
// reverts the license to date-derived status.
func (s *Service) UpdateStatus(ctx context.Context, licenseID int64, status models.LicenseStatus) error {
	if status != "" && !validStatus(status) {
		return fmt.Errorf("unknown license status %q: %w", status, ErrInvalidState)
	}

	lic, err := s.licenses.GetLicenseByID(ctx, licenseID)
	if err != nil {
		return fmt.Errorf("get license: %v: %w", err, ErrInternal)
	}
	if lic == nil {
		return fmt.Errorf("license %d: %w", licenseID, ErrNotFound)
	}

	lic.Status = status
	if err := s.licenses.UpdateLicense(ctx, lic); err != nil {
		return fmt.Errorf("save license status: %v: %w", err, ErrInternal)
	}

	s.logger.Info().Int64("license_id", lic.ID).Str("status", string(status)).Msg("license status updated")
	return nil
}

// DeleteLicense removes a license and its download tokens.
func (s *Service) DeleteLicense(ctx context.Context, licenseID int64) error {
	lic, err := s.licenses.GetLicenseByID(ctx, licenseID)
	if err != nil {
		return fmt.Errorf("get license: %v: %w", err, ErrInternal)
	}
	if lic == nil {
		return fmt.Errorf("license %d: %w", licenseID, ErrNotFound)
	}
	if err := s.licenses.DeleteLicense(ctx, licenseID); err != nil {
		return fmt.Errorf("delete license: %v: %w", err, ErrInternal)
	}
	s.logger.Info().Int64("license_id", licenseID).Msg("license deleted")
	return nil
}

// GetLicense returns a license by service id and key.
func (s *Service) GetLicense(ctx context.Context, serviceID, licenseKey string) (*models.License, error) {
	return s.resolveLicense(ctx, serviceID, licenseKey)
}

// GetLicenseByID returns a license by id.
func (s *Service) GetLicenseByID(ctx context.Context, id int64) (*models.License, error) {
	lic, err := s.licenses.GetLicenseByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get license: %v: %w", err, ErrInternal)
	}
	if lic == nil {
		return nil, fmt.Errorf("license %d: %w", id, ErrNotFound)
	}
	return lic, nil
}

// ListLicenses returns a page of licenses for the admin surface.
func (s *Service) ListLicenses(ctx context.Context, limit, offset int) ([]*models.License, error) {
	licenses, err := s.licenses.ListLicenses(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %v: %w", err, ErrInternal)
	}
	return licenses, nil
}

// canServe authorizes the license for the requested application: the
// license must be issued, bound to this exact application, and not in a
// disallowed status.
func (s *Service) canServe(lic *models.License, app *models.HostedApp) error {
	if !lic.IsIssued() {
		return fmt.Errorf("license is not bound to an application: %w", ErrInvalidState)
	}
	if lic.AppType != app.Type || lic.AppSlug != app.Slug {
		return &ForbiddenError{Reason: ReasonAppMismatch}
	}

	switch lic.StatusAt(s.now()) {
	case models.StatusExpired:
		return &ForbiddenError{Reason: ReasonExpired}
	case models.StatusSuspended:
		return &ForbiddenError{Reason: ReasonSuspended}
	case models.StatusRevoked:
		return &ForbiddenError{Reason: ReasonRevoked}
	case models.StatusDeactivated:
		return &ForbiddenError{Reason: ReasonDeactivated}
	}
	return nil
}

func (s *Service) resolveApp(ctx context.Context, appType models.AppType, slug string) (*models.HostedApp, error) {
	app, err := s.apps.GetHostedApp(ctx, appType, slug)
	if err != nil {
		return nil, fmt.Errorf("get hosted app: %v: %w", err, ErrInternal)
	}
	if app == nil {
		return nil, fmt.Errorf("application %s/%s: %w", appType, slug, ErrNotFound)
	}
	return app, nil
}

func (s *Service) resolveLicense(ctx context.Context, serviceID, licenseKey string) (*models.License, error) {
	lic, err := s.licenses.GetLicense(ctx, serviceID, licenseKey)
	if err != nil {
		return nil, fmt.Errorf("get license: %v: %w", err, ErrInternal)
	}
	if lic == nil {
		return nil, fmt.Errorf("license: %w", ErrNotFound)
	}
	return lic, nil
}

// generateUniqueKey retries key generation until a store-wide unique key
// is found, bounded by tries.
func (s *Service) generateUniqueKey(ctx context.Context, prefix string, tries int) (string, error) {
	for i := 0; i < tries; i++ {
		key, err := GenerateLicenseKey(prefix)
		if err != nil {
			return "", err
		}
		exists, err := s.licenses.LicenseKeyExists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check license key uniqueness: %v: %w", err, ErrInternal)
		}
		if !exists {
			return key, nil
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", tries, ErrKeyExhausted)
}

func validStatus(status models.LicenseStatus) bool {
	switch status {
	case models.StatusActive, models.StatusExpired, models.StatusLifetime,
		models.StatusInactive, models.StatusPending, models.StatusSuspended,
		models.StatusRevoked, models.StatusDeactivated:
		return true
	}
	return false
}
