//go:build integration

// Package containers starts throwaway backing services for integration tests.
package containers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/spec-kit/visit-service/internal/persistence"
)

// PostgresContainer wraps a migrated Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts Postgres and applies the embedded migrations.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("visits"),
		tcpostgres.WithUsername("visits"),
		tcpostgres.WithPassword("visits"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := persistence.RunMigrations(ctx, pool, persistence.MigrationSource(""), zap.NewNop()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, Pool: pool}
}

// SeedCustodiedPerson inserts a custodied person and returns its id.
func (p *PostgresContainer) SeedCustodiedPerson(t *testing.T, name string) string {
	t.Helper()
	var id string
	err := p.Pool.QueryRow(context.Background(),
		`INSERT INTO custodied_persons (full_name, facility_id) VALUES ($1, 'north') RETURNING id`, name).Scan(&id)
	if err != nil {
		t.Fatalf("seed custodied person: %v", err)
	}
	return id
}

// SeedVisitor inserts a visitor and returns its id.
func (p *PostgresContainer) SeedVisitor(t *testing.T, name string) string {
	t.Helper()
	var id string
	err := p.Pool.QueryRow(context.Background(),
		`INSERT INTO visitors (full_name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		t.Fatalf("seed visitor: %v", err)
	}
	return id
}

// Truncate empties every table between tests.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `TRUNCATE appointments, custodied_persons, visitors`)
	return err
}
