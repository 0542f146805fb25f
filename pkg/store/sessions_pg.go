package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jechocarlos/queenbee/pkg/models"
)

// PostgresSessionStore implements SessionStore on top of the sessions table.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) Create(ctx context.Context, id string) error {
	return retryOnce(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, status) VALUES ($1, $2)`,
			id, models.SessionStatusActive)
		return err
	})
}

func (s *PostgresSessionStore) Status(ctx context.Context, id string) (models.SessionStatus, error) {
	var status models.SessionStatus
	err := retryOnce(ctx, func() error {
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM sessions WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func (s *PostgresSessionStore) Active(ctx context.Context) ([]string, error) {
	var ids []string
	err := retryOnce(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM sessions WHERE status = $1 ORDER BY created_at ASC`,
			models.SessionStatusActive)
		if err != nil {
			return err
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *PostgresSessionStore) Terminate(ctx context.Context, id string) error {
	return retryOnce(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET status = $2, ended_at = now() WHERE id = $1`,
			id, models.SessionStatusTerminated)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
}

// PurgeEndedBefore relies on the tasks and chat_history foreign keys
// declaring ON DELETE CASCADE, so one statement removes the whole session.
func (s *PostgresSessionStore) PurgeEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := retryOnce(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM sessions
			 WHERE status IN ($1, $2) AND ended_at < $3`,
			models.SessionStatusCompleted, models.SessionStatusTerminated, cutoff)
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

func (s *PostgresSessionStore) TerminateAllActive(ctx context.Context) (int64, error) {
	var affected int64
	err := retryOnce(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET status = $2, ended_at = now() WHERE status = $1`,
			models.SessionStatusActive, models.SessionStatusTerminated)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
