// Package repo contains all database access logic for the itinerary archive.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/itinerary/internal/dates"
	"github.com/pkordes/itinerary/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Integration tests pass a transaction that is rolled back after each test.
// Begin on a pgx.Tx opens a savepoint, so Save stays atomic either way.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ItineraryRepo defines the persistence operations for archived itineraries.
type ItineraryRepo interface {
	// Save inserts the itinerary with its day rows and document summaries in
	// one transaction and returns the persisted record with id and
	// created_at populated.
	Save(ctx context.Context, it domain.Itinerary) (domain.Itinerary, error)

	// GetByID returns one itinerary with its days and documents.
	// Returns domain.ErrNotFound if no itinerary with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error)

	// ListPaged returns one page of itineraries, newest first, and the total
	// count. Listed items carry no days or documents.
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Itinerary, int64, error)
}

type pgItineraryRepo struct {
	db db
}

// NewItineraryRepo constructs an ItineraryRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewItineraryRepo(db db) ItineraryRepo {
	return &pgItineraryRepo{db: db}
}

const itineraryColumns = `id, run_id, start_date, end_date, day_count, warnings, markdown, created_at`

// Save writes the header row, then batches the day and document rows.
func (r *pgItineraryRepo) Save(ctx context.Context, it domain.Itinerary) (domain.Itinerary, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.Save: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
		INSERT INTO itineraries (run_id, start_date, end_date, day_count, warnings, markdown)
		VALUES (@run_id, @start_date, @end_date, @day_count, @warnings, @markdown)
		RETURNING ` + itineraryColumns

	warnings := it.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	args := pgx.NamedArgs{
		"run_id":     it.RunID,
		"start_date": it.StartDate, // nil becomes NULL
		"end_date":   it.EndDate,
		"day_count":  len(it.Days),
		"warnings":   warnings,
		"markdown":   it.Markdown,
	}
	saved, err := scanItinerary(tx.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.Save: %w", err)
	}

	batch := &pgx.Batch{}
	for _, d := range it.Days {
		batch.Queue(`
			INSERT INTO itinerary_days (itinerary_id, day, hotels, flights, cars)
			VALUES (@itinerary_id, @day::date, @hotels, @flights, @cars)`,
			pgx.NamedArgs{
				"itinerary_id": saved.ID,
				"day":          d.Date,
				"hotels":       nonNil(d.Hotels),
				"flights":      nonNil(d.Flights),
				"cars":         nonNil(d.Cars),
			})
	}
	for _, doc := range it.Documents {
		batch.Queue(`
			INSERT INTO itinerary_documents (itinerary_id, position, filename, kind, size_bytes)
			VALUES (@itinerary_id, @position, @filename, @kind, @size_bytes)`,
			pgx.NamedArgs{
				"itinerary_id": saved.ID,
				"position":     doc.Position,
				"filename":     doc.Filename,
				"kind":         string(doc.Kind),
				"size_bytes":   doc.SizeBytes,
			})
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.Save: children: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.Save: commit: %w", err)
	}

	saved.Days = it.Days
	saved.Documents = it.Documents
	if saved.Days == nil {
		saved.Days = []domain.DayRow{}
	}
	if saved.Documents == nil {
		saved.Documents = []domain.DocumentSummary{}
	}
	return saved, nil
}

// GetByID loads the header row, then its days and documents.
func (r *pgItineraryRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error) {
	q := `SELECT ` + itineraryColumns + ` FROM itineraries WHERE id = @id`

	it, err := scanItinerary(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.GetByID: %w", err)
	}
	if it.Days, err = r.days(ctx, id); err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.GetByID: %w", err)
	}
	if it.Documents, err = r.documents(ctx, id); err != nil {
		return domain.Itinerary{}, fmt.Errorf("repo.ItineraryRepo.GetByID: %w", err)
	}
	return it, nil
}

// ListPaged returns one page of itineraries ordered by created_at descending.
func (r *pgItineraryRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Itinerary, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM itineraries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.ItineraryRepo.ListPaged: count: %w", err)
	}

	q := `
		SELECT ` + itineraryColumns + `
		FROM itineraries
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.ItineraryRepo.ListPaged: %w", err)
	}
	defer rows.Close()

	items := []domain.Itinerary{}
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.ItineraryRepo.ListPaged: scan: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.ItineraryRepo.ListPaged: rows: %w", err)
	}
	return items, total, nil
}

func (r *pgItineraryRepo) days(ctx context.Context, id uuid.UUID) ([]domain.DayRow, error) {
	const q = `
		SELECT day, hotels, flights, cars
		FROM itinerary_days
		WHERE itinerary_id = @id
		ORDER BY day`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return nil, fmt.Errorf("days: %w", err)
	}
	defer rows.Close()

	out := []domain.DayRow{}
	for rows.Next() {
		var (
			day pgtype.Date
			row domain.DayRow
		)
		if err := rows.Scan(&day, &row.Hotels, &row.Flights, &row.Cars); err != nil {
			return nil, fmt.Errorf("days: scan: %w", err)
		}
		row.Date = dates.Format(day.Time)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("days: rows: %w", err)
	}
	return out, nil
}

func (r *pgItineraryRepo) documents(ctx context.Context, id uuid.UUID) ([]domain.DocumentSummary, error) {
	const q = `
		SELECT position, filename, kind, size_bytes
		FROM itinerary_documents
		WHERE itinerary_id = @id
		ORDER BY position`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	defer rows.Close()

	out := []domain.DocumentSummary{}
	for rows.Next() {
		var (
			doc  domain.DocumentSummary
			kind string
		)
		if err := rows.Scan(&doc.Position, &doc.Filename, &kind, &doc.SizeBytes); err != nil {
			return nil, fmt.Errorf("documents: scan: %w", err)
		}
		doc.Kind = domain.Kind(kind)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("documents: rows: %w", err)
	}
	return out, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanItinerary maps one itineraries row. The nullable date columns come
// back as nil pointers.
func scanItinerary(s scanner) (domain.Itinerary, error) {
	var (
		it         domain.Itinerary
		id         pgtype.UUID
		start, end pgtype.Date
	)

	err := s.Scan(&id, &it.RunID, &start, &end, &it.DayCount, &it.Warnings, &it.Markdown, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Itinerary{}, domain.ErrNotFound
		}
		return domain.Itinerary{}, err
	}

	it.ID = uuid.UUID(id.Bytes)
	it.StartDate = datePtr(start)
	it.EndDate = datePtr(end)
	if it.Warnings == nil {
		it.Warnings = []string{}
	}
	return it, nil
}

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// nonNil keeps NOT NULL text[] columns happy.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
