package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/thoriqulumar/kostan-be/internal/database"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			db, err := opts.openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := migrate(ctx, db, opts.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func migrate(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (int, error) {
	applied, err := database.Migrate(ctx, db)
	if err != nil {
		return 0, err
	}
	version, err := database.SchemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}
	logger.Info("database migrated", "applied", applied, "version", version)
	return version, nil
}
