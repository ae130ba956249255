package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/cache"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/license"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/jackc/pgx/v5"
)

// activationMapVersion is the current schema version of the stored
// activation map document.
const activationMapVersion = 1

// activationMapDoc is the fixed, versioned JSONB encoding of a license's
// activation map. No generic object graphs are stored.
type activationMapDoc struct {
	V       int                                `json:"v"`
	Domains map[string]models.DomainActivation `json:"domains"`
}

func encodeActivationMap(m map[string]models.DomainActivation) ([]byte, error) {
	if m == nil {
		m = map[string]models.DomainActivation{}
	}
	data, err := json.Marshal(activationMapDoc{V: activationMapVersion, Domains: m})
	if err != nil {
		return nil, fmt.Errorf("encode activation map: %w", err)
	}
	return data, nil
}

func decodeActivationMap(data []byte) (map[string]models.DomainActivation, error) {
	var doc activationMapDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode activation map: %w", err)
	}
	if doc.V != activationMapVersion {
		return nil, fmt.Errorf("unsupported activation map version %d", doc.V)
	}
	if doc.Domains == nil {
		doc.Domains = map[string]models.DomainActivation{}
	}
	return doc.Domains, nil
}

const licenseColumns = `
	id, user_id, license_key, service_id, app_type, app_slug, status,
	start_date, end_date, max_allowed_domains, activation_map, row_version,
	created_at, updated_at`

// scanLicense reads one license row.
func scanLicense(row pgx.Row) (*models.License, error) {
	var lic models.License
	var appType, status string
	var mapJSON []byte

	err := row.Scan(
		&lic.ID, &lic.UserID, &lic.LicenseKey, &lic.ServiceID, &appType,
		&lic.AppSlug, &status, &lic.StartDate, &lic.EndDate,
		&lic.MaxAllowedDomains, &mapJSON, &lic.RowVersion,
		&lic.CreatedAt, &lic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lic.AppType = models.AppType(appType)
	lic.Status = models.LicenseStatus(status)
	lic.ActivationMap, err = decodeActivationMap(mapJSON)
	if err != nil {
		return nil, err
	}
	return &lic, nil
}

func licenseKeyCacheKey(serviceID, licenseKey string) string {
	return cache.Fingerprint("license_by_key", serviceID, licenseKey)
}

func licenseIDCacheKey(id int64) string {
	return cache.Fingerprint("license_by_id", strconv.FormatInt(id, 10))
}

// cacheLicense stores a license under both of its lookup keys.
func (db *DB) cacheLicense(ctx context.Context, lic *models.License) {
	if db.cache == nil {
		return
	}
	data, err := json.Marshal(lic)
	if err != nil {
		return
	}
	db.cache.Set(ctx, licenseKeyCacheKey(lic.ServiceID, lic.LicenseKey), data, db.cacheTTL)
	db.cache.Set(ctx, licenseIDCacheKey(lic.ID), data, db.cacheTTL)
}

// invalidateLicense drops both cache entries for a license. Called
// synchronously on every write path so a stale cached license can never
// satisfy an authorization decision past its TTL.
func (db *DB) invalidateLicense(ctx context.Context, serviceID, licenseKey string, id int64) {
	if db.cache == nil {
		return
	}
	db.cache.Delete(ctx, licenseKeyCacheKey(serviceID, licenseKey), licenseIDCacheKey(id))
}

func (db *DB) cachedLicense(ctx context.Context, key string) *models.License {
	if db.cache == nil {
		return nil
	}
	data, ok := db.cache.Get(ctx, key)
	if !ok {
		return nil
	}
	var lic models.License
	if err := json.Unmarshal(data, &lic); err != nil {
		db.cache.Delete(ctx, key)
		return nil
	}
	return &lic
}

// GetLicense returns a license by service id and key, or (nil, nil) if absent.
func (db *DB) GetLicense(ctx context.Context, serviceID, licenseKey string) (*models.License, error) {
	if lic := db.cachedLicense(ctx, licenseKeyCacheKey(serviceID, licenseKey)); lic != nil {
		return lic, nil
	}

	lic, err := scanLicense(db.Pool.QueryRow(ctx, `
		SELECT `+licenseColumns+`
		FROM licenses
		WHERE service_id = $1 AND license_key = $2
	`, serviceID, licenseKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get license: %w", err)
	}

	db.cacheLicense(ctx, lic)
	return lic, nil
}

// GetLicenseByID returns a license by id, or (nil, nil) if absent.
func (db *DB) GetLicenseByID(ctx context.Context, id int64) (*models.License, error) {
	if lic := db.cachedLicense(ctx, licenseIDCacheKey(id)); lic != nil {
		return lic, nil
	}

	lic, err := scanLicense(db.Pool.QueryRow(ctx, `
		SELECT `+licenseColumns+`
		FROM licenses
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get license by id: %w", err)
	}

	db.cacheLicense(ctx, lic)
	return lic, nil
}

// ListLicenses returns a page of licenses ordered by id.
func (db *DB) ListLicenses(ctx context.Context, limit, offset int) ([]*models.License, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT `+licenseColumns+`
		FROM licenses
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []*models.License
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		licenses = append(licenses, lic)
	}
	return licenses, rows.Err()
}

// CreateLicense inserts a new license and fills in its id and timestamps.
func (db *DB) CreateLicense(ctx context.Context, lic *models.License) error {
	mapJSON, err := encodeActivationMap(lic.ActivationMap)
	if err != nil {
		return err
	}

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO licenses (
			user_id, license_key, service_id, app_type, app_slug, status,
			start_date, end_date, max_allowed_domains, activation_map
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, row_version, created_at, updated_at
	`, lic.UserID, lic.LicenseKey, lic.ServiceID, string(lic.AppType),
		lic.AppSlug, string(lic.Status), lic.StartDate, lic.EndDate,
		lic.MaxAllowedDomains, mapJSON,
	).Scan(&lic.ID, &lic.RowVersion, &lic.CreatedAt, &lic.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create license: %w", err)
	}
	return nil
}

// UpdateLicense writes the license's scalar fields (not the activation map).
func (db *DB) UpdateLicense(ctx context.Context, lic *models.License) error {
	err := db.Pool.QueryRow(ctx, `
		UPDATE licenses
		SET user_id = $2, service_id = $3, app_type = $4, app_slug = $5,
		    status = $6, start_date = $7, end_date = $8,
		    max_allowed_domains = $9, row_version = row_version + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING row_version, updated_at
	`, lic.ID, lic.UserID, lic.ServiceID, string(lic.AppType), lic.AppSlug,
		string(lic.Status), lic.StartDate, lic.EndDate, lic.MaxAllowedDomains,
	).Scan(&lic.RowVersion, &lic.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update license: %w", err)
	}

	db.invalidateLicense(ctx, lic.ServiceID, lic.LicenseKey, lic.ID)
	return nil
}

// UpdateLicenseDomains writes the activation map conditionally on the
// license's row version. Returns license.ErrVersionConflict when the row
// changed underneath the caller, making quota enforcement race-free.
func (db *DB) UpdateLicenseDomains(ctx context.Context, lic *models.License) error {
	mapJSON, err := encodeActivationMap(lic.ActivationMap)
	if err != nil {
		return err
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE licenses
		SET activation_map = $2, row_version = row_version + 1, updated_at = now()
		WHERE id = $1 AND row_version = $3
	`, lic.ID, mapJSON, lic.RowVersion)
	if err != nil {
		return fmt.Errorf("update license domains: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update license domains: %w", license.ErrVersionConflict)
	}

	lic.RowVersion++
	db.invalidateLicense(ctx, lic.ServiceID, lic.LicenseKey, lic.ID)
	return nil
}

// LicenseKeyExists reports whether any license already uses the given key.
func (db *DB) LicenseKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM licenses WHERE license_key = $1)
	`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check license key: %w", err)
	}
	return exists, nil
}

// UpdateLicenseKey replaces a license's key in a single transaction and
// invalidates both the old and new cache entries.
func (db *DB) UpdateLicenseKey(ctx context.Context, id int64, key string) error {
	var serviceID, oldKey string
	err := db.ExecTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			SELECT service_id, license_key FROM licenses WHERE id = $1 FOR UPDATE
		`, id).Scan(&serviceID, &oldKey); err != nil {
			return fmt.Errorf("lock license %d: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE licenses
			SET license_key = $2, row_version = row_version + 1, updated_at = now()
			WHERE id = $1
		`, id, key); err != nil {
			return fmt.Errorf("update license key: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.invalidateLicense(ctx, serviceID, oldKey, id)
	db.invalidateLicense(ctx, serviceID, key, id)
	return nil
}

// DeleteLicense removes a license and all of its download tokens.
func (db *DB) DeleteLicense(ctx context.Context, id int64) error {
	var serviceID, licenseKey string
	err := db.ExecTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			SELECT service_id, license_key FROM licenses WHERE id = $1 FOR UPDATE
		`, id).Scan(&serviceID, &licenseKey); err != nil {
			return fmt.Errorf("lock license %d: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM download_tokens WHERE license_key = $1
		`, licenseKey); err != nil {
			return fmt.Errorf("delete license tokens: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete license: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.invalidateLicense(ctx, serviceID, licenseKey, id)
	db.logger.Info().Int64("license_id", id).Msg("license deleted with its tokens")
	return nil
}
