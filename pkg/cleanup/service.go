// Package cleanup provides the data retention sweeper.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/jechocarlos/queenbee/pkg/config"
	"github.com/jechocarlos/queenbee/pkg/store"
)

// Service periodically enforces retention policies:
//   - Deletes terminated sessions past their retention window, which
//     cascades to their tasks and chat history
//   - Deletes finished tasks past their retention window inside sessions
//     that are still alive
//
// All operations are idempotent and safe to run from multiple replicas.
type Service struct {
	config   *config.RetentionConfig
	tasks    store.TaskStore
	sessions store.SessionStore

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new retention sweeper.
func NewService(cfg *config.RetentionConfig, tasks store.TaskStore, sessions store.SessionStore) *Service {
	return &Service{
		config:   cfg,
		tasks:    tasks,
		sessions: sessions,
	}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Retention sweeper started",
		"session_retention_days", s.config.SessionRetentionDays,
		"task_retention_days", s.config.TaskRetentionDays,
		"interval", s.config.CleanupInterval())
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Retention sweeper stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.Sweep(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one retention pass. Failures are logged and skipped; the next
// pass retries them.
func (s *Service) Sweep(ctx context.Context) {
	now := time.Now()
	s.purgeSessions(ctx, now)
	s.purgeTasks(ctx, now)
}

func (s *Service) purgeSessions(ctx context.Context, now time.Time) {
	cutoff := now.AddDate(0, 0, -s.config.SessionRetentionDays)
	count, err := s.sessions.PurgeEndedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: session purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: purged terminated sessions", "count", count)
	}
}

func (s *Service) purgeTasks(ctx context.Context, now time.Time) {
	cutoff := now.AddDate(0, 0, -s.config.TaskRetentionDays)
	count, err := s.tasks.PurgeFinishedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: task purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: purged finished tasks", "count", count)
	}
}
