package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rmax-ai/loadsim/pkg/tasks"
)

const defaultRunLimit = 1000

// RecordStart inserts a run for a newly launched task.
func (s *Store) RecordStart(ctx context.Context, t tasks.Task) error {
	query := `
	INSERT INTO task_runs (task_id, kind, percentage, duration_seconds, status, state, error, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(task_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Kind, t.Percentage, t.DurationSeconds, t.Status, string(t.State), t.Error, t.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record task start %s: %w", t.ID, err)
	}
	return nil
}

// RecordFinish stores the final state of a task, inserting the row if the
// start was never recorded.
func (s *Store) RecordFinish(ctx context.Context, t tasks.Task) error {
	var finished sql.NullTime
	if t.FinishedAt != nil {
		finished = sql.NullTime{Time: t.FinishedAt.UTC(), Valid: true}
	}

	query := `
	INSERT INTO task_runs (task_id, kind, percentage, duration_seconds, status, state, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(task_id) DO UPDATE SET
		state = excluded.state,
		error = excluded.error,
		finished_at = excluded.finished_at
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Kind, t.Percentage, t.DurationSeconds, t.Status, string(t.State), t.Error, t.StartedAt.UTC(), finished)
	if err != nil {
		return fmt.Errorf("failed to record task finish %s: %w", t.ID, err)
	}
	return nil
}

// ListRuns returns journaled runs, newest first.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]TaskRun, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, filter.State)
	}
	if !filter.From.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "started_at < ?")
		args = append(args, filter.To.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}

	query := `SELECT task_id, kind, percentage, duration_seconds, status, state, error, started_at, finished_at FROM task_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query task runs: %w", err)
	}
	defer rows.Close()

	runs := []TaskRun{}
	for rows.Next() {
		var (
			r        TaskRun
			finished sql.NullTime
		)
		if err := rows.Scan(&r.TaskID, &r.Kind, &r.Percentage, &r.DurationSeconds, &r.Status, &r.State, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan task run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task runs: %w", err)
	}
	return runs, nil
}

// PruneRuns deletes finished runs that started before cutoff.
func (s *Store) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM task_runs WHERE started_at < ? AND state != ?`, cutoff.UTC(), string(tasks.StateRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to prune task runs: %w", err)
	}
	return res.RowsAffected()
}
