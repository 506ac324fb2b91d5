// Package testutils provides common testing utilities and infrastructure setup
package testutils

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/persistence/migrations"
)

// TestDatabase provides a disposable PostgreSQL instance with cleanup
type TestDatabase struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	DSN       string
	t         *testing.T
}

// DatabaseConfig holds test database configuration
type DatabaseConfig struct {
	Image    string
	Database string
	Username string
	Password string
	Port     string
}

// DefaultDatabaseConfig returns the default test database configuration
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Image:    "postgres:15-alpine",
		Database: "cookbook_test",
		Username: "test_user",
		Password: "test_password",
		Port:     "5432",
	}
}

// SetupTestDatabase starts a PostgreSQL container, runs the embedded
// migrations, and returns a connected pool. Cleanup is registered on t.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	return SetupTestDatabaseWithConfig(t, DefaultDatabaseConfig())
}

// SetupTestDatabaseWithConfig creates a test database with custom configuration
func SetupTestDatabaseWithConfig(t *testing.T, cfg DatabaseConfig) *TestDatabase {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        cfg.Image,
				ExposedPorts: []string{cfg.Port + "/tcp"},
				Env: map[string]string{
					"POSTGRES_DB":       cfg.Database,
					"POSTGRES_USER":     cfg.Username,
					"POSTGRES_PASSWORD": cfg.Password,
				},
				WaitingFor: wait.ForAll(
					wait.ForLog("database system is ready to accept connections").
						WithOccurrence(2).
						WithStartupTimeout(60*time.Second),
					wait.ForSQL(nat.Port(cfg.Port+"/tcp"), "pgx", func(host string, port nat.Port) string {
						return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
							cfg.Username, cfg.Password, host, port.Port(), cfg.Database)
					}),
				),
				Tmpfs: map[string]string{
					"/var/lib/postgresql/data": "rw,noexec,nosuid,size=512m",
				},
			},
			Started: true,
		})
	require.NoError(t, err, "Failed to start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, nat.Port(cfg.Port))
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, host, port.Port(), cfg.Database)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err, "Failed to parse pgx config")

	poolConfig.MaxConns = 10 // Limit connections for tests
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err, "Failed to create pgx pool")

	testDB := &TestDatabase{
		Container: container,
		Pool:      pool,
		DSN:       dsn,
		t:         t,
	}

	require.NoError(t, testDB.RunMigrations(), "Failed to run migrations")

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// RunMigrations applies the embedded migrations to the test database.
func (td *TestDatabase) RunMigrations() error {
	migrator, err := migrations.New(td.DSN, zap.NewNop())
	if err != nil {
		return err
	}
	upErr := migrator.Up()
	if cerr := migrator.Close(); upErr == nil {
		upErr = cerr
	}
	return upErr
}

// TruncateAllTables removes all data while preserving structure, for
// isolation between tests sharing one container.
func (td *TestDatabase) TruncateAllTables() error {
	tables := []string{
		"extraction_cache",
		"storage_credentials",
	}

	for _, table := range tables {
		if _, err := td.Pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("truncate table %s: %w", table, err)
		}
	}

	return nil
}

// CountRecords counts records in a table.
func (td *TestDatabase) CountRecords(table string) (int, error) {
	var count int
	err := td.Pool.QueryRow(context.Background(), fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	return count, err
}

// Cleanup closes the pool and stops the container
func (td *TestDatabase) Cleanup() {
	ctx := context.Background()

	if td.Pool != nil {
		td.Pool.Close()
	}

	if td.Container != nil {
		if err := td.Container.Terminate(ctx); err != nil {
			td.t.Logf("Failed to terminate postgres container: %v", err)
		}
	}
}
