package main

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"

	"github.com/and161185/eventcert/internal/model"
	"github.com/and161185/eventcert/internal/service"
)

// tokenCommand mints a bearer token signed with the configured key, for operators and
// smoke tests. Regular sessions come from the platform's login service.
func tokenCommand() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.FromString(userID)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			signed, exp, err := service.NewAuthService([]byte(cfg.JWTKey)).IssueToken(model.Actor{UserID: id, Role: role}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user UUID (token subject)")
	cmd.Flags().StringVar(&role, "role", model.RoleStudent, "role claim ("+model.RoleStudent+" or "+model.RoleSuperAdmin+")")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
