package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jechocarlos/queenbee/pkg/config"
	"github.com/jechocarlos/queenbee/pkg/store"
)

// Supervisor manages the per-session worker fleet: one SessionWorker per
// active session, started when the session is created (or resumed after a
// restart) and stopped when the session ends.
type Supervisor struct {
	tasks    store.TaskStore
	sessions store.SessionStore
	runner   TaskRunner
	config   *config.QueueConfig

	mu      sync.Mutex
	workers map[string]*SessionWorker
	stopped bool
}

// NewSupervisor creates a supervisor. Workers are started individually via
// StartWorker or in bulk via ResumeActive.
func NewSupervisor(tasks store.TaskStore, sessions store.SessionStore, runner TaskRunner, cfg *config.QueueConfig) *Supervisor {
	return &Supervisor{
		tasks:    tasks,
		sessions: sessions,
		runner:   runner,
		config:   cfg,
		workers:  make(map[string]*SessionWorker),
	}
}

// StartWorker launches the worker for a session. Starting an already-running
// session is a no-op.
func (s *Supervisor) StartWorker(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		slog.Warn("Supervisor stopped, not starting worker", "session_id", sessionID)
		return
	}
	if _, ok := s.workers[sessionID]; ok {
		return
	}

	worker := NewSessionWorker(sessionID, s.tasks, s.runner, s.config)
	s.workers[sessionID] = worker
	worker.Start(ctx)
	slog.Info("Started session worker", "session_id", sessionID)
}

// StopWorker stops the session's worker and removes it from the fleet.
// Stopping an unknown session is a no-op.
func (s *Supervisor) StopWorker(sessionID string) {
	s.mu.Lock()
	worker, ok := s.workers[sessionID]
	delete(s.workers, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}

	worker.Stop()
	slog.Info("Stopped session worker", "session_id", sessionID)
}

// ResumeActive starts workers for every active session, picking up where a
// previous process left off. Pending tasks in those sessions resume
// processing; nothing is lost across restarts.
func (s *Supervisor) ResumeActive(ctx context.Context) error {
	active, err := s.sessions.Active(ctx)
	if err != nil {
		return err
	}
	for _, sessionID := range active {
		s.StartWorker(ctx, sessionID)
	}
	if len(active) > 0 {
		slog.Info("Resumed workers for active sessions", "count", len(active))
	}
	return nil
}

// StopAll stops every worker. Workers finish their current tasks within the
// grace period; the supervisor accepts no new workers afterwards.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	s.stopped = true
	workers := make([]*SessionWorker, 0, len(s.workers))
	ids := make([]string, 0, len(s.workers))
	for id, w := range s.workers {
		workers = append(workers, w)
		ids = append(ids, id)
	}
	s.workers = make(map[string]*SessionWorker)
	s.mu.Unlock()

	if len(workers) > 0 {
		slog.Info("Stopping session workers", "count", len(workers), "session_ids", ids)
	}
	for _, w := range workers {
		w.Stop()
	}
	slog.Info("All session workers stopped")
}

// Running reports whether the session currently has a worker.
func (s *Supervisor) Running(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[sessionID]
	return ok
}

// Health returns the health of every running worker.
func (s *Supervisor) Health() []WorkerHealth {
	s.mu.Lock()
	workers := make([]*SessionWorker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	out := make([]WorkerHealth, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.Health())
	}
	return out
}
