package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/visit-service/internal/auth"
	apperrors "github.com/spec-kit/visit-service/pkg/util/errorutil"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a signed bearer token for the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, ok := auth.ParseRole(tokenRole)
		if !ok {
			return apperrors.NewValidationError("unknown role", map[string]any{"role": tokenRole})
		}
		if tokenSubject == "" {
			return apperrors.NewValidationError("subject is required", map[string]any{"field": "subject"})
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		token, expiresAt, err := tokens.GenerateToken(tokenSubject, role)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, token)
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenSubject, "subject", "", "Subject id carried in the token")
	tokenIssueCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleOfficer), "Role: VIEWER, OFFICER or ADMIN")
	tokenCmd.AddCommand(tokenIssueCmd)
}
