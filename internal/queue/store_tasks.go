package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertTask writes the task row and every file row in one transaction.
// Writing an unchanged task is a no-op for every row.
func (s *Store) UpsertTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("upsert task: nil task")
	}
	if strings.TrimSpace(task.ID) == "" {
		return errors.New("upsert task: task id required")
	}
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, user_id, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id`,
			task.ID, nullableString(task.UserID), formatTime(task.CreatedAt),
		); err != nil {
			return fmt.Errorf("write task row: %w", err)
		}
		for _, file := range task.Files {
			if file.TaskID != task.ID {
				return fmt.Errorf("file %d belongs to task %q", file.Index, file.TaskID)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO task_files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(task_id, file_index) DO UPDATE SET
				   file_name = excluded.file_name,
				   file_path = excluded.file_path,
				   status = excluded.status,
				   progress = excluded.progress,
				   transcription = excluded.transcription,
				   language = excluded.language,
				   duration = excluded.duration,
				   error_message = excluded.error_message,
				   started_at = excluded.started_at,
				   completed_at = excluded.completed_at`,
				fileArgs(file)...,
			); err != nil {
				return fmt.Errorf("write file %d: %w", file.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask loads a task and its files. A missing task returns (nil, nil).
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	ctx = ensureContext(ctx)
	var (
		task       Task
		userID     sql.NullString
		createdRaw string
	)
	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, created_at FROM tasks WHERE id = ?`, id)
	if err := row.Scan(&task.ID, &userID, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	task.UserID = userID.String
	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM task_files WHERE task_id = ? ORDER BY file_index`, id)
	if err != nil {
		return nil, fmt.Errorf("get task files %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task file: %w", err)
		}
		task.Files = append(task.Files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task files: %w", err)
	}
	return &task, nil
}

// ListPendingTaskIDs returns tasks with at least one Pending file, oldest first.
func (s *Store) ListPendingTaskIDs(ctx context.Context) ([]string, error) {
	return s.listTaskIDs(ctx,
		`SELECT t.id FROM tasks t
		 WHERE EXISTS (SELECT 1 FROM task_files f WHERE f.task_id = t.id AND f.status = 'pending')
		 ORDER BY t.created_at, t.rowid`)
}

// NextTaskID returns the oldest task that still has a non-terminal file, or
// "" when there is none.
func (s *Store) NextTaskID(ctx context.Context) (string, error) {
	ids, err := s.listTaskIDs(ctx,
		`SELECT t.id FROM tasks t
		 WHERE EXISTS (SELECT 1 FROM task_files f WHERE f.task_id = t.id AND f.status IN ('pending', 'processing'))
		 ORDER BY t.created_at, t.rowid
		 LIMIT 1`)
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

// ListTasks returns tasks newest first, up to limit (0 for all).
func (s *Store) ListTasks(ctx context.Context, limit int) ([]*Task, error) {
	query := `SELECT id FROM tasks ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	ids, err := s.listTaskIDs(ctx, query)
	if err != nil {
		return nil, err
	}
	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (s *Store) listTaskIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountPending returns the number of tasks with at least one Pending file.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(DISTINCT task_id) FROM task_files WHERE status = 'pending'`)
}

// CountQueued returns the number of tasks whose files are all still Pending.
func (s *Store) CountQueued(ctx context.Context) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(1) FROM tasks t
		 WHERE EXISTS (SELECT 1 FROM task_files f WHERE f.task_id = t.id)
		   AND NOT EXISTS (SELECT 1 FROM task_files f WHERE f.task_id = t.id AND f.status != 'pending')`)
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	ctx = ensureContext(ctx)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// FailInterrupted marks every Processing file as Failed with message. It is
// used at startup when records survive a restart.
func (s *Store) FailInterrupted(ctx context.Context, message string, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE task_files SET status = 'failed', error_message = ?, transcription = NULL,
			   language = NULL, duration = NULL, completed_at = ?
			 WHERE status = 'processing'`,
			message, formatTime(now))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("fail interrupted files: %w", err)
	}
	return affected, nil
}

// ClearAll removes every task and file record.
func (s *Store) ClearAll(ctx context.Context) (ClearResult, error) {
	ctx = ensureContext(ctx)
	var result ClearResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM task_files`)
		if err != nil {
			return err
		}
		if result.DeletedFiles, err = res.RowsAffected(); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM tasks`)
		if err != nil {
			return err
		}
		result.DeletedTasks, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return ClearResult{}, fmt.Errorf("clear queue: %w", err)
	}
	return result, nil
}
