// Package main is the entrypoint for the smliser-ctl operator CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/config"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/crypto"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/db"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/license"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smliser-ctl",
		Short: "Smliser license server operator CLI",
		Long: `smliser-ctl manages the Smliser license server directly against its
database. It reads the same environment variables as the server
(DATABASE_URL, SMLISER_MASTER_SECRET, SMLISER_SECRET_SALT).`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newCreateLicenseCmd(),
		newCreateAppCmd(),
		newListLicensesCmd(),
		newRegenerateKeyCmd(),
		newIssueTokenCmd(),
		newSweepCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smliser-ctl %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// runtimeDeps holds the wired dependencies a command needs.
type runtimeDeps struct {
	database *db.DB
	service  *license.Service
	logger   zerolog.Logger
}

func connect(ctx context.Context) (*runtimeDeps, func(), error) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, nil, err
	}

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	signingKey, err := crypto.DeriveKey([]byte(cfg.MasterSecret), []byte(cfg.SecretSalt))
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	service := license.NewService(database, database, database, license.Config{
		SigningKey: signingKey,
		KeyPrefix:  cfg.LicenseKeyPrefix,
		TokenTTL:   cfg.TokenTTL,
	}, logger)

	return &runtimeDeps{database: database, service: service, logger: logger}, database.Close, nil
}

func newCreateLicenseCmd() *cobra.Command {
	var (
		serviceID  string
		userID     int64
		appType    string
		appSlug    string
		maxDomains int
		startDate  string
		endDate    string
	)

	cmd := &cobra.Command{
		Use:   "create-license",
		Short: "Create a license with a freshly generated key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, cleanup, err := connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			params := license.CreateLicenseParams{
				UserID:            userID,
				ServiceID:         serviceID,
				AppSlug:           appSlug,
				MaxAllowedDomains: maxDomains,
			}
			if appType != "" {
				parsed, err := models.ParseAppType(appType)
				if err != nil {
					return err
				}
				params.AppType = parsed
			}
			if startDate != "" {
				t, err := time.Parse("2006-01-02", startDate)
				if err != nil {
					return fmt.Errorf("parse start date: %w", err)
				}
				params.StartDate = &t
			}
			if endDate != "" {
				t, err := time.Parse("2006-01-02", endDate)
				if err != nil {
					return fmt.Errorf("parse end date: %w", err)
				}
				params.EndDate = &t
			}

			lic, err := deps.service.CreateLicense(ctx, params)
			if err != nil {
				return err
			}

			fmt.Printf("License created\n")
			fmt.Printf("  ID:          %d\n", lic.ID)
			fmt.Printf("  Key:         %s\n", lic.LicenseKey)
			fmt.Printf("  Service ID:  %s\n", lic.ServiceID)
			fmt.Printf("  Max domains: %d\n", lic.MaxAllowedDomains)
			return nil
		},
	}

	cmd.Flags().StringVar(&serviceID, "service-id", "", "Service identifier (required)")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Owning user id (0 for guest)")
	cmd.Flags().StringVar(&appType, "app-type", "", "Application type (plugin, theme, software)")
	cmd.Flags().StringVar(&appSlug, "app-slug", "", "Application slug")
	cmd.Flags().IntVar(&maxDomains, "max-domains", 1, "Maximum activated domains (-1 for unlimited)")
	cmd.Flags().StringVar(&startDate, "start-date", "", "Validity start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Validity end (YYYY-MM-DD, empty for lifetime)")
	_ = cmd.MarkFlagRequired("service-id")

	return cmd
}

func newCreateAppCmd() *cobra.Command {
	var (
		appType string
		slug    string
		name    string
		version string
	)

	cmd := &cobra.Command{
		Use:   "create-app",
		Short: "Register a hosted application",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, cleanup, err := connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			parsed, err := models.ParseAppType(appType)
			if err != nil {
				return err
			}

			app := &models.HostedApp{Type: parsed, Slug: slug, Name: name, Version: version}
			if err := deps.database.CreateHostedApp(ctx, app); err != nil {
				return err
			}

			fmt.Printf("App created: %s (id %d)\n", app.Binding(), app.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&appType, "type", "", "Application type (plugin, theme, software)")
	cmd.Flags().StringVar(&slug, "slug", "", "Application slug")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&version, "version", "", "Current version")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("slug")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newListLicensesCmd() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list-licenses",
		Short: "List licenses",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, cleanup, err := connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			licenses, err := deps.service.ListLicenses(ctx, limit, offset)
			if err != nil {
				return err
			}

			now := time.Now()
			for _, lic := range licenses {
				fmt.Printf("%-6d %-40s %-12s %s domains=%d/%d\n",
					lic.ID, lic.LicenseKey, lic.StatusAt(now), lic.ServiceID,
					lic.TotalActiveDomains(), lic.MaxAllowedDomains)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum licenses to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Listing offset")

	return cmd
}

func newRegenerateKeyCmd() *cobra.Command {
	var (
		licenseID int64
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "regenerate-key",
		Short: "Replace a license's key with a fresh unique one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, cleanup, err := connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			key, err := deps.service.RegenerateKey(ctx, licenseID, !dryRun, 0)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("New key (not persisted): %s\n", key)
			} else {
				fmt.Printf("New key: %s\n", key)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&licenseID, "id", 0, "License id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate without persisting")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newIssueTokenCmd() *cobra.Command {
	var (
		licenseID int64
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a download token for a license",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, cleanup, err := connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			token, err := deps.service.IssueToken(ctx, licenseID, ttl)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&licenseID, "id", 0, "License id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default server TTL)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Purge expired download tokens once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, cleanup, err := connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := deps.database.DeleteExpiredDownloadTokens(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Purged %d expired tokens\n", deleted)
			return nil
		},
	}
}
