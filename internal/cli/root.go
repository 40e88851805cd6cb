// Package cli implements the kostan command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thoriqulumar/kostan-be/internal/app"
	"github.com/thoriqulumar/kostan-be/internal/config"
	"github.com/thoriqulumar/kostan-be/internal/database"
	"github.com/thoriqulumar/kostan-be/internal/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	ConfigPath string

	logger *slog.Logger
}

// NewRootCommand creates the root command for the kostan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kostan",
		Short: "Kostan boarding house backend",
		Long:  "Payments, daily payment reminders and live notifications for a boarding house.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(opts.logger)

			if err := godotenv.Load(); err != nil {
				opts.logger.Debug("no .env file found, using environment variables")
			}
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRemindCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (o *RootOptions) openDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	o.logger.Info("connected to database", "driver", cfg.DatabaseDriver)
	return db, nil
}

// buildApp loads config, opens and migrates the database and wires the
// features. The returned close func releases the database.
func (o *RootOptions) buildApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := o.openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			o.logger.Error("error closing database", "error", err)
		}
	}

	if _, err := migrate(ctx, db, o.logger); err != nil {
		closeDB()
		return nil, nil, err
	}

	blobs, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	a, err := app.New(cfg, db, blobs, o.logger)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return a, closeDB, nil
}
