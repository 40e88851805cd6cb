package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewRemindCommand creates the remind command.
func NewRemindCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run one payment reminder sweep now and print its summary",
		Long: `Run the same sweep the daily schedule runs, once, for today in the
configured timezone. Tenants already reminded for this month are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, closeDB, err := opts.buildApp(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			summary, err := a.Reminders.Run(ctx)
			a.Notifications.Wait()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}
