package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/integra/pkg/schema"
)

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/integra.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "open libsql").WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows, so they go through QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return schema.NewError(schema.ErrCodeStore, "migrate").WithCause(err)
	}
	return nil
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

const runColumns = "id, expression, normalized, backend, dimension, box, steps, resolution, value, error_estimate, sample_count, duration_ns, source, created_at"

// SaveRun inserts a run. CreatedAt defaults to now.
func (s *LibSQLStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return schema.NewError(schema.ErrCodeInvalidRequest, "run id is required")
	}
	box, err := json.Marshal(run.Box)
	if err != nil {
		return fmt.Errorf("marshal box: %w", err)
	}
	run.CreatedAt = timeOrNow(run.CreatedAt)

	err = withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Expression, run.Normalized, run.Backend, run.Dimension, string(box),
			run.Steps, run.Resolution, run.Value, nullFloat(run.ErrorEstimate),
			run.SampleCount, int64(run.Duration), run.Source, run.CreatedAt,
		)
		return err
	})
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save run %s", run.ID).WithCause(err)
	}
	return nil
}

// GetRun returns the run with the given id or a NOT_FOUND error.
func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	var where []string
	var args []any

	if filter.Dimension != 0 {
		where = append(where, "dimension = ?")
		args = append(args, filter.Dimension)
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Backend != "" {
		where = append(where, "backend = ?")
		args = append(args, filter.Backend)
	}
	if filter.Expression != "" {
		where = append(where, "instr(expression, ?) > 0")
		args = append(args, filter.Expression)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	query := "SELECT " + runColumns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PruneRuns deletes runs created strictly before the cutoff.
func (s *LibSQLStore) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, before.UTC())
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, schema.NewError(schema.ErrCodeStore, "prune runs").WithCause(err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var (
		box      string
		estimate sql.NullFloat64
		duration int64
	)
	if err := row.Scan(&run.ID, &run.Expression, &run.Normalized, &run.Backend, &run.Dimension, &box,
		&run.Steps, &run.Resolution, &run.Value, &estimate, &run.SampleCount, &duration,
		&run.Source, &run.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(box), &run.Box); err != nil {
		return nil, fmt.Errorf("unmarshal box of run %s: %w", run.ID, err)
	}
	if estimate.Valid {
		v := estimate.Float64
		run.ErrorEstimate = &v
	}
	run.Duration = time.Duration(duration)
	return run, nil
}

func storeNotFound(resource, id string) *schema.IntegraError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
