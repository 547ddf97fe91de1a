package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskmirror/internal/item"
)

// Run statuses. A run is created as running and finalized exactly once to
// success or failed; pending exists only for rows staged before execution.
const (
	RunPending = "pending"
	RunRunning = "running"
	RunSuccess = "success"
	RunFailed  = "failed"
)

// SyncRun is one append-only record of a reconciliation pass.
type SyncRun struct {
	ID              int64
	Status          string
	Direction       item.Direction
	TasksSynced     int
	RemindersSynced int
	ErrorMessage    string
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// CreateRun appends a new sync run in running state and returns it.
func (s *Store) CreateRun(ctx context.Context, direction item.Direction) (*SyncRun, error) {
	now := time.Now().UTC()

	query := `
	INSERT INTO sync_runs (status, direction, started_at)
	VALUES (?, ?, ?)
	`
	res, err := s.conn.ExecContext(ctx, query, RunRunning, string(direction), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read sync run id: %w", err)
	}

	return &SyncRun{
		ID:        id,
		Status:    RunRunning,
		Direction: direction,
		StartedAt: now,
	}, nil
}

// FinalizeRun records the outcome of a run. Only rows still in running
// state are touched, so a run can never be finalized twice or mutated by
// anything other than the pass that created it.
func (s *Store) FinalizeRun(ctx context.Context, run *SyncRun) error {
	if run.Status != RunSuccess && run.Status != RunFailed {
		return fmt.Errorf("cannot finalize run with status %q", run.Status)
	}

	now := time.Now().UTC()

	query := `
	UPDATE sync_runs SET
		status = ?,
		tasks_synced = ?,
		reminders_synced = ?,
		error_message = ?,
		completed_at = ?
	WHERE id = ? AND status = ?
	`
	res, err := s.conn.ExecContext(ctx, query,
		run.Status,
		run.TasksSynced,
		run.RemindersSynced,
		stringToNull(run.ErrorMessage),
		now.Format(time.RFC3339),
		run.ID,
		RunRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize sync run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finalize result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sync run %d is not running, refusing to finalize", run.ID)
	}

	run.CompletedAt = &now
	return nil
}

// LatestRun returns the most recent sync run, or nil if none exist.
func (s *Store) LatestRun(ctx context.Context) (*SyncRun, error) {
	query := `
	SELECT id, status, direction, tasks_synced, reminders_synced,
	       error_message, started_at, completed_at
	FROM sync_runs
	ORDER BY id DESC
	LIMIT 1
	`
	row := s.conn.QueryRowContext(ctx, query)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
// A limit of 0 defaults to 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
	SELECT id, status, direction, tasks_synced, reminders_synced,
	       error_message, started_at, completed_at
	FROM sync_runs
	ORDER BY id DESC
	LIMIT ?
	`
	rows, err := s.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}

func scanRun(row scanner) (*SyncRun, error) {
	var run SyncRun
	var direction string
	var errMsg, completedAt sql.NullString
	var startedAt string

	err := row.Scan(
		&run.ID,
		&run.Status,
		&direction,
		&run.TasksSynced,
		&run.RemindersSynced,
		&errMsg,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Direction = item.Direction(direction)
	run.ErrorMessage = errMsg.String
	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		run.StartedAt = t
	}
	run.CompletedAt = nullStringToTime(completedAt)

	return &run, nil
}
