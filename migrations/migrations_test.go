package migrations_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/migrations"
	"github.com/pkordes/itinerary/testutil"
)

var archiveTables = []string{"itineraries", "itinerary_days", "itinerary_documents"}

// TestSchemaRoundTrip migrates down to zero, up, and down again, checking
// the archive tables appear and disappear. It leaves the schema migrated.
func TestSchemaRoundTrip(t *testing.T) {
	db := testutil.NewSQLDB(t)
	ctx := context.Background()

	p, err := migrations.NewProvider(db)
	require.NoError(t, err)

	// Other packages may have migrated the shared database already.
	_, err = p.DownTo(ctx, 0)
	require.NoError(t, err, "initial reset")
	t.Cleanup(func() { _, _ = migrations.Up(context.Background(), db) })

	n, err := migrations.Up(ctx, db)
	require.NoError(t, err)
	assert.Positive(t, n)
	for _, table := range archiveTables {
		assert.True(t, tableExists(t, db, table), "table %q after up", table)
	}

	n, err = migrations.Up(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n, "second up is a no-op")

	_, err = p.DownTo(ctx, 0)
	require.NoError(t, err)
	for _, table := range archiveTables {
		assert.False(t, tableExists(t, db, table), "table %q after down", table)
	}
}

func TestSchemaConstraints(t *testing.T) {
	db := testutil.NewSQLDB(t)
	ctx := context.Background()
	_, err := migrations.Up(ctx, db)
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	t.Run("end date before start date is rejected", func(t *testing.T) {
		_, err := tx.ExecContext(ctx, `SAVEPOINT sp`)
		require.NoError(t, err)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO itineraries (run_id, start_date, end_date, day_count, warnings, markdown)
			 VALUES ('r', '2025-01-17', '2025-01-15', 0, '[]', '')`)
		assert.Error(t, err)
		_, err = tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT sp`)
		require.NoError(t, err)
	})

	t.Run("days and documents cascade with their itinerary", func(t *testing.T) {
		var id string
		require.NoError(t, tx.QueryRowContext(ctx,
			`INSERT INTO itineraries (run_id, day_count, warnings, markdown)
			 VALUES ('r', 1, '[]', '') RETURNING id`).Scan(&id))
		_, err := tx.ExecContext(ctx,
			`INSERT INTO itinerary_days (itinerary_id, day, hotels, flights, cars)
			 VALUES ($1, '2025-01-15', '{}', '{}', '{}')`, id)
		require.NoError(t, err)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO itinerary_documents (itinerary_id, position, filename, kind, size_bytes)
			 VALUES ($1, 0, 'hotel.pdf', 'hotel', 10)`, id)
		require.NoError(t, err)

		_, err = tx.ExecContext(ctx, `DELETE FROM itineraries WHERE id = $1`, id)
		require.NoError(t, err)

		var n int
		require.NoError(t, tx.QueryRowContext(ctx,
			`SELECT (SELECT count(*) FROM itinerary_days WHERE itinerary_id = $1)
			      + (SELECT count(*) FROM itinerary_documents WHERE itinerary_id = $1)`, id).Scan(&n))
		assert.Zero(t, n)
	})
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRowContext(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables
		                WHERE table_schema = 'public' AND table_name = $1)`, table).Scan(&exists)
	require.NoError(t, err)
	return exists
}
