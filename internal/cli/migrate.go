package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/visit-service/internal/observability"
	"github.com/spec-kit/visit-service/internal/persistence"
)

var migrateDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply every migration not yet recorded in schema_migrations.

The embedded migrations are used unless --dir or POSTGRES_MIGRATIONS_DIR
points at a directory of .sql files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := observability.NewLogger(cfg.Logger)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		dir := cfg.Postgres.MigrationsDir
		if migrateDir != "" {
			dir = migrateDir
		}

		pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := persistence.RunMigrations(cmd.Context(), pg.Pool, persistence.MigrationSource(dir), logger); err != nil {
			logger.Error("migrations failed", zap.Error(err))
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "", "Directory of .sql migrations (defaults to the embedded set)")
}
