package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/jackc/pgx/v5"
)

// CreateHostedApp inserts a hosted application and fills in its id.
func (db *DB) CreateHostedApp(ctx context.Context, app *models.HostedApp) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO hosted_apps (app_type, slug, name, version)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, string(app.Type), app.Slug, app.Name, app.Version,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create hosted app: %w", err)
	}
	return nil
}

// GetHostedApp returns an app by type and slug, or (nil, nil) if absent.
func (db *DB) GetHostedApp(ctx context.Context, appType models.AppType, slug string) (*models.HostedApp, error) {
	app, err := scanHostedApp(db.Pool.QueryRow(ctx, `
		SELECT id, app_type, slug, name, version, created_at, updated_at
		FROM hosted_apps
		WHERE app_type = $1 AND slug = $2
	`, string(appType), slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get hosted app: %w", err)
	}
	return app, nil
}

// GetHostedAppByID returns an app by id, or (nil, nil) if absent.
func (db *DB) GetHostedAppByID(ctx context.Context, id int64) (*models.HostedApp, error) {
	app, err := scanHostedApp(db.Pool.QueryRow(ctx, `
		SELECT id, app_type, slug, name, version, created_at, updated_at
		FROM hosted_apps
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get hosted app by id: %w", err)
	}
	return app, nil
}

// ListHostedApps returns all hosted applications ordered by type and slug.
func (db *DB) ListHostedApps(ctx context.Context) ([]*models.HostedApp, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, app_type, slug, name, version, created_at, updated_at
		FROM hosted_apps
		ORDER BY app_type, slug
	`)
	if err != nil {
		return nil, fmt.Errorf("list hosted apps: %w", err)
	}
	defer rows.Close()

	var apps []*models.HostedApp
	for rows.Next() {
		app, err := scanHostedApp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hosted app: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// UpdateHostedApp writes an app's mutable fields.
func (db *DB) UpdateHostedApp(ctx context.Context, app *models.HostedApp) error {
	err := db.Pool.QueryRow(ctx, `
		UPDATE hosted_apps
		SET name = $2, version = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, app.ID, app.Name, app.Version).Scan(&app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update hosted app: %w", err)
	}
	return nil
}

// DeleteHostedApp removes a hosted application.
func (db *DB) DeleteHostedApp(ctx context.Context, id int64) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM hosted_apps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete hosted app: %w", err)
	}
	return nil
}

func scanHostedApp(row pgx.Row) (*models.HostedApp, error) {
	var app models.HostedApp
	var appType string
	err := row.Scan(&app.ID, &appType, &app.Slug, &app.Name, &app.Version, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}
	app.Type = models.AppType(appType)
	return &app, nil
}
