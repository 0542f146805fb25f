package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jechocarlos/queenbee/pkg/models"
)

// PostgresTaskStore implements TaskStore on top of the tasks table.
type PostgresTaskStore struct {
	db *sql.DB
}

func NewPostgresTaskStore(db *sql.DB) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

const taskColumns = `id, session_id, status, description, COALESCE(result, ''), assigned_by, assigned_to, created_at, completed_at`

func (s *PostgresTaskStore) Create(ctx context.Context, task *models.TaskRecord) error {
	assignedTo, err := json.Marshal(task.AssignedTo)
	if err != nil {
		return fmt.Errorf("failed to encode assigned_to: %w", err)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	return retryOnce(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO tasks (id, session_id, status, description, result, assigned_by, assigned_to, created_at)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
			task.ID, task.SessionID, task.Status, task.Description,
			task.Result, task.AssignedBy, assignedTo, task.CreatedAt,
		)
		return err
	})
}

func (s *PostgresTaskStore) Get(ctx context.Context, id string) (*models.TaskRecord, error) {
	var task *models.TaskRecord
	err := retryOnce(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
		t, err := scanTask(row)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *PostgresTaskStore) NextPending(ctx context.Context, sessionID string) (*models.TaskRecord, error) {
	var task *models.TaskRecord
	err := retryOnce(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks
			 WHERE session_id = $1 AND status = $2
			 ORDER BY created_at ASC
			 LIMIT 1`,
			sessionID, models.TaskStatusPending)
		t, err := scanTask(row)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *PostgresTaskStore) SetStatus(ctx context.Context, id string, status models.TaskStatus) error {
	return retryOnce(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE tasks
			 SET status = $2,
			     completed_at = CASE WHEN $3 THEN now() ELSE completed_at END
			 WHERE id = $1`,
			id, status, status.IsTerminal())
		if err != nil {
			return err
		}
		return requireRow(res)
	})
}

func (s *PostgresTaskStore) SetResult(ctx context.Context, id string, status models.TaskStatus, result string) error {
	return retryOnce(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE tasks
			 SET status = $2,
			     result = $3,
			     completed_at = CASE WHEN $4 THEN now() ELSE completed_at END
			 WHERE id = $1`,
			id, status, result, status.IsTerminal())
		if err != nil {
			return err
		}
		return requireRow(res)
	})
}

func (s *PostgresTaskStore) PurgeFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := retryOnce(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM tasks
			 WHERE status IN ($1, $2) AND completed_at < $3`,
			models.TaskStatusCompleted, models.TaskStatusFailed, cutoff)
		if err != nil {
			return err
		}
		purged, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.TaskRecord, error) {
	var (
		task        models.TaskRecord
		assignedTo  []byte
		completedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID, &task.SessionID, &task.Status, &task.Description,
		&task.Result, &task.AssignedBy, &assignedTo, &task.CreatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(assignedTo) > 0 {
		if err := json.Unmarshal(assignedTo, &task.AssignedTo); err != nil {
			return nil, fmt.Errorf("failed to decode assigned_to: %w", err)
		}
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
