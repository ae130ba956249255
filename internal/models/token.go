package models

import "time"

// DownloadToken is the stored record of an issued download capability.
// TokenHash is a keyed hash of the raw token; the raw value is never
// persisted and exists only inside the signed client payload.
type DownloadToken struct {
	ID         int64
	AppType    AppType
	AppSlug    string
	LicenseKey string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Binding returns the wire form of the token's app binding ("type/slug").
func (t *DownloadToken) Binding() string {
	return string(t.AppType) + "/" + t.AppSlug
}

// ExpiredAt reports whether the token is past its expiry at the given time.
func (t *DownloadToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
