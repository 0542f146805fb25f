// Package store provides persistence for sessions, tasks, chat history, and
// provider rate-limit state. PostgreSQL implementations back the service;
// in-memory implementations back tests and single-process experiments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jechocarlos/queenbee/pkg/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStorage indicates a storage operation failed after its retry.
	ErrStorage = errors.New("storage failure")
)

// TaskStore persists deliberation tasks. While a task runs, SetResult is
// called repeatedly with in-progress snapshots; readers polling Get observe
// monotonically growing snapshots and finally the terminal result.
type TaskStore interface {
	Create(ctx context.Context, task *models.TaskRecord) error
	Get(ctx context.Context, id string) (*models.TaskRecord, error)

	// NextPending returns the oldest pending task for a session, or
	// ErrNotFound when none is queued.
	NextPending(ctx context.Context, sessionID string) (*models.TaskRecord, error)

	// SetStatus updates only the status, stamping completed_at when the
	// status is terminal.
	SetStatus(ctx context.Context, id string, status models.TaskStatus) error

	// SetResult updates the result document and status together, stamping
	// completed_at when the status is terminal.
	SetResult(ctx context.Context, id string, status models.TaskStatus, result string) error

	// PurgeFinishedBefore deletes terminal tasks completed before cutoff and
	// returns how many were removed.
	PurgeFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionStore persists chat sessions.
type SessionStore interface {
	Create(ctx context.Context, id string) error
	Status(ctx context.Context, id string) (models.SessionStatus, error)

	// Active returns the IDs of sessions still accepting tasks.
	Active(ctx context.Context) ([]string, error)

	// Terminate marks one session terminated and stamps ended_at.
	Terminate(ctx context.Context, id string) error

	// TerminateAllActive marks every active session terminated and returns
	// how many were affected.
	TerminateAllActive(ctx context.Context) (int64, error)

	// PurgeEndedBefore deletes terminated sessions that ended before cutoff
	// and returns how many were removed.
	PurgeEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ChatStore persists per-session conversation history.
type ChatStore interface {
	Append(ctx context.Context, sessionID string, role models.MessageRole, content string) (*models.ChatMessage, error)

	// History returns messages in insertion order. limit <= 0 means all.
	History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
}

// retryOnce runs op and retries it a single time on failure. Storage is
// local to the deployment, so one retry covers the transient blips worth
// covering; anything else surfaces as ErrStorage.
func retryOnce(ctx context.Context, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}

	if err = op(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Join(ErrStorage, err)
	}
	return nil
}
