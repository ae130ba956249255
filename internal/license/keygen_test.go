package license

import (
	"regexp"
	"strings"
	"testing"
)

var keyPattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]{8})*$`)

func TestGenerateLicenseKeyFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		key, err := GenerateLicenseKey("")
		if err != nil {
			t.Fatalf("GenerateLicenseKey() error = %v", err)
		}
		if !keyPattern.MatchString(key) {
			t.Errorf("GenerateLicenseKey() = %q, does not match %v", key, keyPattern)
		}
		if !strings.HasPrefix(key, DefaultKeyPrefix+"-") {
			t.Errorf("GenerateLicenseKey() = %q, missing default prefix", key)
		}
	}
}

func TestGenerateLicenseKeyCustomPrefix(t *testing.T) {
	key, err := GenerateLicenseKey("acme")
	if err != nil {
		t.Fatalf("GenerateLicenseKey() error = %v", err)
	}
	if !strings.HasPrefix(key, "ACME-") {
		t.Errorf("GenerateLicenseKey(acme) = %q, want uppercase ACME prefix", key)
	}
	if !keyPattern.MatchString(key) {
		t.Errorf("GenerateLicenseKey(acme) = %q, does not match %v", key, keyPattern)
	}
}

func TestGenerateLicenseKeyUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateLicenseKey("")
		if err != nil {
			t.Fatalf("GenerateLicenseKey() error = %v", err)
		}
		if seen[key] {
			t.Fatalf("GenerateLicenseKey() produced duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestGenerateLicenseKeyGroupWidth(t *testing.T) {
	key, err := GenerateLicenseKey("")
	if err != nil {
		t.Fatalf("GenerateLicenseKey() error = %v", err)
	}
	parts := strings.Split(key, "-")
	if len(parts) < 2 {
		t.Fatalf("GenerateLicenseKey() = %q, expected prefix plus groups", key)
	}
	for _, group := range parts[1:] {
		if len(group) != 8 {
			t.Errorf("group %q has width %d, want 8", group, len(group))
		}
	}
}
