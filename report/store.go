package report

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// fixed width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded pipeline execution.
type Run struct {
	ID        string
	Pipeline  string
	Model     string
	Seed      int64
	Holdout   float64
	Samples   int
	Metrics   map[string]float64
	CreatedAt time.Time
}

// RunStore is an append-only SQLite ledger of pipeline runs.
type RunStore struct {
	db *sql.DB
}

// Open creates or opens the ledger at path and applies the schema. It is
// safe to call on an existing file.
func Open(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open run store %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect run store %s", path)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		schemaSQL,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "initialise run store %s", path)
		}
	}
	return &RunStore{db: db}, nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts r and returns it with ID and CreatedAt filled in. A caller
// supplied ID or CreatedAt is kept.
func (s *RunStore) Record(ctx context.Context, r Run) (Run, error) {
	if r.Pipeline == "" {
		return Run{}, errors.NewValidationError("pipeline", "must not be empty", r.Pipeline)
	}
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Run{}, errors.Wrap(err, "generate run id")
		}
		r.ID = id.String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Metrics == nil {
		r.Metrics = map[string]float64{}
	}

	blob, err := json.Marshal(r.Metrics)
	if err != nil {
		return Run{}, errors.Wrap(err, "encode run metrics")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, pipeline, model, seed, holdout, samples, metrics, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Pipeline, r.Model, r.Seed, r.Holdout, r.Samples, string(blob),
		r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return Run{}, errors.Wrapf(err, "record run %s", r.ID)
	}
	return r, nil
}

// List returns runs in the order they were recorded. An empty pipeline lists
// every run.
func (s *RunStore) List(ctx context.Context, pipeline string) ([]Run, error) {
	query := `SELECT id, pipeline, model, seed, holdout, samples, metrics, created_at FROM runs`
	var args []any
	if pipeline != "" {
		query += ` WHERE pipeline = ?`
		args = append(args, pipeline)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			blob    string
			created string
		)
		if err := rows.Scan(&r.ID, &r.Pipeline, &r.Model, &r.Seed, &r.Holdout, &r.Samples, &blob, &created); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if err := json.Unmarshal([]byte(blob), &r.Metrics); err != nil {
			return nil, errors.Wrapf(err, "decode metrics of run %s", r.ID)
		}
		if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, errors.Wrapf(err, "parse created_at of run %s", r.ID)
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "list runs")
}
