package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gosuda/attorney/internal/auth"
	"github.com/gosuda/attorney/internal/config"
)

// newRootCmd creates the attorney command. Without a subcommand it serves.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "attorney",
		Short:         "attorney - multi-agent power-of-attorney drafting service",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newTokenCmd(config.Load))
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

// newTokenCmd issues an access token signed with the configured secret, for
// local development and operator access.
func newTokenCmd(load func() (*config.Config, error)) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Print an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("token: invalid user id %q: %w", args[0], err)
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.JWT.AccessTTL
			}
			tok, err := auth.IssueAccessToken(cfg.JWT.Secret, userID, ttl)
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to ATTORNEY_JWT_ACCESS_TTL)")
	return cmd
}
