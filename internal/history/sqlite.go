package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps records in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
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
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("History database opened")
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Put inserts or replaces r.
func (s *SQLiteStore) Put(ctx context.Context, r *Record) error {
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO jobs (
                id, source_name, source_size, provider, state, error,
                delivery_notice, artifact, location, started_at, finished_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                source_name = excluded.source_name,
                source_size = excluded.source_size,
                provider = excluded.provider,
                state = excluded.state,
                error = excluded.error,
                delivery_notice = excluded.delivery_notice,
                artifact = excluded.artifact,
                location = excluded.location,
                started_at = excluded.started_at,
                finished_at = excluded.finished_at`,
			r.ID,
			r.SourceName,
			r.SourceSize,
			r.Provider,
			r.State,
			nullableString(r.Error),
			nullableString(r.DeliveryNotice),
			nullableString(r.Artifact),
			nullableString(r.Location),
			r.StartedAt.UnixMilli(),
			nullableMillis(r.FinishedAt),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("put job %s: %w", r.ID, err)
	}
	log.Debug().Str("job", r.ID).Str("state", r.State).Msg("Job journaled")
	return nil
}

// List returns up to limit records, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_name, source_size, provider, state, error,
                delivery_notice, artifact, location, started_at, finished_at
           FROM jobs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                                  Record
			errMsg, notice, artifact, location sql.NullString
			started                            int64
			finished                           sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.SourceName, &r.SourceSize, &r.Provider, &r.State,
			&errMsg, &notice, &artifact, &location, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		r.Error = errMsg.String
		r.DeliveryNotice = notice.String
		r.Artifact = artifact.String
		r.Location = location.String
		r.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
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
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
