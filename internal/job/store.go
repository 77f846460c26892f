// Package job keeps a history of processing requests in SQLite.
package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("job not found")

const (
	jobColumns = "id, type, status, input, params, result, error, created_at, started_at, completed_at"

	// fixed width so text ordering matches time ordering
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

	sqliteBusyCode    = 5
	busyRetryAttempts = 5
	busyRetryBackoff  = 10 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	input TEXT NOT NULL,
	params TEXT,
	result TEXT,
	error TEXT,
	created_at TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

// Store persists jobs.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the job database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init job schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// Create records a pending job. params is stored as JSON.
func (s *Store) Create(ctx context.Context, typ Type, input string, params any) (*Job, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("encode job params: %w", err)
	}

	j := &Job{
		ID:        uuid.NewString(),
		Type:      typ,
		Status:    StatusPending,
		Input:     input,
		Params:    raw,
		CreatedAt: s.now().UTC(),
	}

	err = s.exec(ctx,
		`INSERT INTO jobs (id, type, status, input, params, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID, string(j.Type), string(j.Status), j.Input, nullableJSON(raw), formatTime(j.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return j, nil
}

// MarkRunning moves a job to running and stamps its start time.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.update(ctx, id,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(StatusRunning), formatTime(s.now()), id,
	)
}

// Complete marks a job completed with an optional JSON result.
func (s *Store) Complete(ctx context.Context, id string, result any) error {
	raw, err := marshalOptional(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	return s.update(ctx, id,
		`UPDATE jobs SET status = ?, result = ?, error = NULL, completed_at = ? WHERE id = ?`,
		string(StatusCompleted), nullableJSON(raw), formatTime(s.now()), id,
	)
}

// Fail marks a job failed with the error message.
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.update(ctx, id,
		`UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(StatusFailed), msg, formatTime(s.now()), id,
	)
}

// Get returns a job by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// List returns the most recent jobs first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Track records a job around fn. The job is created, marked running, and
// finished as completed or failed depending on fn's error, which is
// returned unchanged. Bookkeeping after fn survives a cancelled ctx.
func (s *Store) Track(ctx context.Context, typ Type, input string, params any, fn func(context.Context) (any, error)) (*Job, error) {
	j, err := s.Create(ctx, typ, input, params)
	if err != nil {
		return nil, err
	}
	if err := s.MarkRunning(ctx, j.ID); err != nil {
		return j, err
	}

	result, runErr := fn(ctx)

	bookkeeping := context.WithoutCancel(ctx)
	if runErr != nil {
		if err := s.Fail(bookkeeping, j.ID, runErr); err != nil {
			return j, errors.Join(runErr, err)
		}
	} else if err := s.Complete(bookkeeping, j.ID, result); err != nil {
		return j, err
	}

	final, err := s.Get(bookkeeping, j.ID)
	if err != nil {
		return j, errors.Join(runErr, err)
	}
	return final, runErr
}

func (s *Store) update(ctx context.Context, id, query string, args ...any) error {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id, typ, status, input string
		params, result, errMsg sql.NullString
		createdRaw             string
		startedRaw, doneRaw    sql.NullString
	)
	if err := scanner.Scan(&id, &typ, &status, &input, &params, &result, &errMsg, &createdRaw, &startedRaw, &doneRaw); err != nil {
		return nil, err
	}

	j := &Job{
		ID:     id,
		Type:   Type(typ),
		Status: Status(status),
		Input:  input,
		Error:  errMsg.String,
	}
	if params.Valid {
		j.Params = json.RawMessage(params.String)
	}
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	if t, err := parseTime(createdRaw); err == nil {
		j.CreatedAt = t
	}
	if startedRaw.Valid {
		if t, err := parseTime(startedRaw.String); err == nil {
			j.StartedAt = &t
		}
	}
	if doneRaw.Valid {
		if t, err := parseTime(doneRaw.String); err == nil {
			j.CompletedAt = &t
		}
	}
	return j, nil
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
