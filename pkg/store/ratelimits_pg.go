package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRateLimitStore persists provider cooldown deadlines. It satisfies
// llm.CooldownStore so rate-limit windows survive restarts.
type PostgresRateLimitStore struct {
	db *sql.DB
}

func NewPostgresRateLimitStore(db *sql.DB) *PostgresRateLimitStore {
	return &PostgresRateLimitStore{db: db}
}

func (s *PostgresRateLimitStore) CooldownDeadline(ctx context.Context, provider, model string) (time.Time, error) {
	var resetAt time.Time
	err := retryOnce(ctx, func() error {
		err := s.db.QueryRowContext(ctx,
			`SELECT reset_at FROM provider_rate_limits WHERE provider = $1 AND model = $2`,
			provider, model,
		).Scan(&resetAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return resetAt, nil
}

func (s *PostgresRateLimitStore) SaveCooldown(ctx context.Context, provider, model string, resetAt time.Time) error {
	return retryOnce(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO provider_rate_limits (provider, model, reset_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT ON CONSTRAINT provider_rate_limits_provider_model
			 DO UPDATE SET reset_at = EXCLUDED.reset_at, updated_at = now()`,
			provider, model, resetAt)
		return err
	})
}
