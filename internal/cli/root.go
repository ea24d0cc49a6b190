// Package cli implements visitctl, the operator tool for the visit scheduling service.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/visit-service/internal/config"
)

// rootCmd is the root command for visitctl.
var rootCmd = &cobra.Command{
	Use:     "visitctl",
	Version: "dev",
	Short:   "Operator tooling for the visit scheduling service",
	Long: `visitctl applies database migrations, checks timestamps against the
configured visiting rules and issues bearer tokens for the HTTP API.

Configuration is read from the same environment variables as the service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the visitctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
		},
	})
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(windowCmd)
	rootCmd.AddCommand(tokenCmd)
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig is swapped in tests.
var loadConfig = config.Load
