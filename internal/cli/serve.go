package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the live stream and the daily reminder schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, closeDB, err := opts.buildApp(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			opts.logger.Info("payment reminders scheduled",
				"at", a.Config.Reminder.At,
				"timezone", a.Config.LocalZone,
				"short_month_policy", a.Config.Reminder.ShortMonthPolicy,
			)
			return a.Serve(ctx)
		},
	}
}
