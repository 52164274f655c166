// Package testutil provides shared helpers for integration tests against the
// itinerary archive. Everything here skips, or runs nothing, when
// TEST_DATABASE_URL is unset so unit tests never need Postgres.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql

	"github.com/pkordes/itinerary/migrations"
)

// DSNEnv names the variable holding the integration database DSN.
const DSNEnv = "TEST_DATABASE_URL"

// RunWithMigrations is a TestMain body: when a test database is configured it
// migrates the archive schema up, then runs the package's tests. It returns
// the exit code for os.Exit.
func RunWithMigrations(m *testing.M) int {
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		if err := migrate(dsn); err != nil {
			fmt.Fprintf(os.Stderr, "testutil: %v\n", err)
			return 1
		}
	}
	return m.Run()
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()
	if _, err := migrations.Up(context.Background(), db); err != nil {
		return err
	}
	return nil
}

// NewPool returns a pool on the test database, closed when t finishes.
// Skips t when TEST_DATABASE_URL is unset.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, requireDSN(t))
	if err != nil {
		t.Fatalf("testutil.NewPool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("testutil.NewPool: ping: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// NewSQLDB returns a database/sql handle on the test database for driving
// goose directly. Skips t when TEST_DATABASE_URL is unset.
func NewSQLDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", requireDSN(t))
	if err != nil {
		t.Fatalf("testutil.NewSQLDB: %v", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		t.Fatalf("testutil.NewSQLDB: ping: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func requireDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skip(DSNEnv + " not set; skipping archive integration test")
	}
	return dsn
}
