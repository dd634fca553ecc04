package core

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed history of janitor runs.
type Store struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

// NewStore opens (creating if needed) the history database at path.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

// RunRecord is one row of run history.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	DryRun       bool
	Services     ServiceTriple
	TaskCount    int
	SessionCount int
	OrphanCount  int
	UpdatedCount int
	FailedCount  int
	SkipReason   string
	Error        string
}

// RecordRun stores a finished run and the channels it cleaned up. runErr is
// the pipeline error, if any.
func (s *Store) RecordRun(ctx context.Context, run *Run, runErr error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var failed int
	var cleaned []string
	if run.Remediation != nil {
		failed = len(run.Remediation.Failed)
		cleaned = run.Remediation.CleanedUp
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, started_at, finished_at, dry_run, chat_service_sid, workspace_sid, proxy_service_sid,
		task_count, session_count, orphan_count, updated_count, failed_count, skip_reason, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.DryRun,
		run.Services.ChatServiceSID, run.Services.WorkspaceSID, run.Services.ProxyServiceSID,
		run.TaskCount, run.SessionCount, len(run.Orphans), run.Updated(), failed, run.SkipReason, errText,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, sid := range cleaned {
		if _, err := tx.ExecContext(ctx, `INSERT INTO cleaned_channels (run_id, position, channel_sid) VALUES (?, ?, ?)`, run.ID, i, sid); err != nil {
			return fmt.Errorf("insert cleaned channel: %w", err)
		}
	}
	return tx.Commit()
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, started_at, finished_at, dry_run, chat_service_sid, workspace_sid, proxy_service_sid,
		task_count, session_count, orphan_count, updated_count, failed_count, skip_reason, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DryRun,
			&r.Services.ChatServiceSID, &r.Services.WorkspaceSID, &r.Services.ProxyServiceSID,
			&r.TaskCount, &r.SessionCount, &r.OrphanCount, &r.UpdatedCount, &r.FailedCount, &r.SkipReason, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CleanedChannels returns the channels a run marked inactive, in cleanup order.
func (s *Store) CleanedChannels(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel_sid FROM cleaned_channels WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cleaned channels: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		out = append(out, sid)
	}
	return out, rows.Err()
}
