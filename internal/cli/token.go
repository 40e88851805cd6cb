package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/thoriqulumar/kostan-be/pkg/middleware"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	UserID string
	Email  string
	Role   string
	TTL    time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		Example: `  kostan token --user 6f1c... --role admin
  kostan token --user 6f1c... --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(opts.UserID)
			if err != nil {
				return fmt.Errorf("invalid --user %q: %w", opts.UserID, err)
			}
			if opts.Role != middleware.RoleUser && opts.Role != middleware.RoleAdmin {
				return fmt.Errorf("invalid --role %q: must be %s or %s", opts.Role, middleware.RoleUser, middleware.RoleAdmin)
			}
			if opts.TTL <= 0 {
				return errors.New("--ttl must be positive")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			token, err := middleware.NewJWTVerifier(cfg.JWTSecret).Issue(userID, opts.Email, opts.Role, opts.TTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id the token is issued for (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&opts.Role, "role", middleware.RoleUser, "role claim (user|admin)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
