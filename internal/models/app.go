package models

import (
	"fmt"
	"strings"
	"time"
)

// AppType identifies the kind of hosted application a license can bind to.
type AppType string

const (
	// AppTypePlugin is a hosted WordPress-style plugin package.
	AppTypePlugin AppType = "plugin"
	// AppTypeTheme is a hosted theme package.
	AppTypeTheme AppType = "theme"
	// AppTypeSoftware is a generic hosted software package.
	AppTypeSoftware AppType = "software"
)

// appTypeInfo carries per-type metadata used by the API layer.
type appTypeInfo struct {
	Label         string
	DownloadRoute string
}

// appTypeRegistry is the typed lookup table for hosted application variants.
var appTypeRegistry = map[AppType]appTypeInfo{
	AppTypePlugin:   {Label: "Plugin", DownloadRoute: "plugins"},
	AppTypeTheme:    {Label: "Theme", DownloadRoute: "themes"},
	AppTypeSoftware: {Label: "Software", DownloadRoute: "software"},
}

// ValidAppTypes returns all recognized application types.
func ValidAppTypes() []AppType {
	return []AppType{AppTypePlugin, AppTypeTheme, AppTypeSoftware}
}

// ParseAppType resolves a string to a registered AppType.
func ParseAppType(s string) (AppType, error) {
	t := AppType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := appTypeRegistry[t]; !ok {
		return "", fmt.Errorf("unknown app type %q", s)
	}
	return t, nil
}

// IsValid reports whether the type is registered.
func (t AppType) IsValid() bool {
	_, ok := appTypeRegistry[t]
	return ok
}

// Label returns the human-readable name for the type.
func (t AppType) Label() string {
	return appTypeRegistry[t].Label
}

// DownloadRoute returns the URL path segment for the type's download endpoint.
func (t AppType) DownloadRoute() string {
	return appTypeRegistry[t].DownloadRoute
}

// HostedApp is a downloadable application that licenses bind to.
type HostedApp struct {
	ID        int64
	Type      AppType
	Slug      string
	Name      string
	Version   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Binding returns the wire form of the app binding ("type/slug").
func (a *HostedApp) Binding() string {
	return string(a.Type) + "/" + a.Slug
}
