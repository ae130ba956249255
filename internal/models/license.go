package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LicenseStatus represents the lifecycle status of a license.
type LicenseStatus string

const (
	// StatusActive indicates the license is inside its validity window.
	StatusActive LicenseStatus = "active"
	// StatusExpired indicates the license validity window has passed.
	StatusExpired LicenseStatus = "expired"
	// StatusLifetime indicates the license never expires.
	StatusLifetime LicenseStatus = "lifetime"
	// StatusInactive indicates the license has been switched off by an operator.
	StatusInactive LicenseStatus = "inactive"
	// StatusPending indicates the license validity window has not started yet.
	StatusPending LicenseStatus = "pending"
	// StatusSuspended indicates the license is temporarily suspended.
	StatusSuspended LicenseStatus = "suspended"
	// StatusRevoked indicates the license has been permanently revoked.
	StatusRevoked LicenseStatus = "revoked"
	// StatusDeactivated indicates the license was deactivated from a licensed site.
	StatusDeactivated LicenseStatus = "deactivated"
)

// UnlimitedDomains is the MaxAllowedDomains value for an uncapped license.
const UnlimitedDomains = -1

// DomainActivation records one activated host on a license.
// SecretHash is always a keyed hash of the site secret, never the raw value.
type DomainActivation struct {
	Origin     string `json:"origin"`
	SecretHash string `json:"secret_hash"`
}

// License is an entitlement record binding a license key to a hosted
// application, with a validity window and a domain-activation quota.
//
// The entity holds data and invariants only; persistence belongs to the
// db package.
type License struct {
	ID         int64
	UserID     int64 // 0 means guest-issued
	LicenseKey string
	ServiceID  string

	// App binding. Both fields are empty until the license is issued
	// against a hosted application.
	AppType AppType
	AppSlug string

	// Status is the operator-stored status. When empty the effective
	// status is derived from the validity window.
	Status    LicenseStatus
	StartDate *time.Time
	EndDate   *time.Time

	// MaxAllowedDomains caps the activation map size. -1 is unlimited,
	// 0 forbids activation entirely.
	MaxAllowedDomains int

	// ActivationMap maps normalized hosts to their activation records.
	ActivationMap map[string]DomainActivation

	// RowVersion is the optimistic-lock counter for conditional
	// activation-map writes.
	RowVersion int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusAt returns the effective status of the license at the given time.
// A non-empty stored status is authoritative and is never re-derived.
func (l *License) StatusAt(now time.Time) LicenseStatus {
	if l.Status != "" {
		return LicenseStatus(strings.ToLower(string(l.Status)))
	}
	if l.EndDate == nil {
		return StatusLifetime
	}
	if l.StartDate != nil && now.Before(*l.StartDate) {
		return StatusPending
	}
	if now.After(*l.EndDate) {
		return StatusExpired
	}
	return StatusActive
}

// IsIssued reports whether the license has been bound to a hosted application.
func (l *License) IsIssued() bool {
	return l.AppType != "" && l.AppSlug != ""
}

// IsNewDomain reports whether the given URL's host has no activation record.
func (l *License) IsNewDomain(rawURL string) bool {
	host, err := NormalizeHost(rawURL)
	if err != nil {
		return true
	}
	_, ok := l.ActivationMap[host]
	return !ok
}

// HasReachedMaxAllowedDomains reports whether the activation quota is used up.
func (l *License) HasReachedMaxAllowedDomains() bool {
	if l.MaxAllowedDomains == UnlimitedDomains {
		return false
	}
	return len(l.ActivationMap) >= l.MaxAllowedDomains
}

// TotalActiveDomains returns the number of activated hosts.
func (l *License) TotalActiveDomains() int {
	return len(l.ActivationMap)
}

// SetDomain records an activation for the host of rawURL. The caller is
// responsible for persisting the license afterwards. Returns the
// normalized host that was stored.
func (l *License) SetDomain(rawURL, secretHash string) (string, error) {
	host, err := NormalizeHost(rawURL)
	if err != nil {
		return "", err
	}
	if l.ActivationMap == nil {
		l.ActivationMap = make(map[string]DomainActivation)
	}
	l.ActivationMap[host] = DomainActivation{
		Origin:     rawURL,
		SecretHash: secretHash,
	}
	return host, nil
}

// RemoveDomain deletes the activation record for the host of rawURL.
// It returns false when there was nothing to remove.
func (l *License) RemoveDomain(rawURL string) bool {
	host, err := NormalizeHost(rawURL)
	if err != nil {
		return false
	}
	if _, ok := l.ActivationMap[host]; !ok {
		return false
	}
	delete(l.ActivationMap, host)
	return true
}

// Domain returns the activation record for the host of rawURL.
func (l *License) Domain(rawURL string) (DomainActivation, bool) {
	host, err := NormalizeHost(rawURL)
	if err != nil {
		return DomainActivation{}, false
	}
	a, ok := l.ActivationMap[host]
	return a, ok
}

// NormalizeHost reduces a URL or bare domain to its lower-case host.
// Inputs without a scheme are treated as https. The port is dropped.
func NormalizeHost(rawURL string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	if s == "" {
		return "", fmt.Errorf("empty domain")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse domain %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("no host in domain %q", rawURL)
	}
	return host, nil
}
