package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/jackc/pgx/v5"
)

// CreateDownloadToken inserts a token record and fills in its id.
func (db *DB) CreateDownloadToken(ctx context.Context, token *models.DownloadToken) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO download_tokens (app_type, app_slug, license_key, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, string(token.AppType), token.AppSlug, token.LicenseKey,
		token.TokenHash, token.ExpiresAt, token.CreatedAt,
	).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("create download token: %w", err)
	}
	return nil
}

// GetDownloadTokenByHash returns the token record matching the keyed hash.
func (db *DB) GetDownloadTokenByHash(ctx context.Context, hash string) (*models.DownloadToken, error) {
	var token models.DownloadToken
	var appType string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, app_type, app_slug, license_key, token_hash, expires_at, created_at
		FROM download_tokens
		WHERE token_hash = $1
	`, hash).Scan(
		&token.ID, &appType, &token.AppSlug, &token.LicenseKey,
		&token.TokenHash, &token.ExpiresAt, &token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("download token not found")
		}
		return nil, fmt.Errorf("get download token: %w", err)
	}
	token.AppType = models.AppType(appType)
	return &token, nil
}

// DeleteDownloadToken removes a token record, invalidating its client token.
func (db *DB) DeleteDownloadToken(ctx context.Context, id int64) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM download_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete download token: %w", err)
	}
	return nil
}

// DeleteDownloadTokensForLicense removes all tokens issued for a license key.
func (db *DB) DeleteDownloadTokensForLicense(ctx context.Context, licenseKey string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM download_tokens WHERE license_key = $1`, licenseKey)
	if err != nil {
		return 0, fmt.Errorf("delete license tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpiredDownloadTokens purges token rows past their expiry. This is
// housekeeping only; verification always re-checks expiry itself.
func (db *DB) DeleteExpiredDownloadTokens(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM download_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
