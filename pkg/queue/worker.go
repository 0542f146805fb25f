// Package queue runs deliberation tasks in the background: one worker per
// active session polls the task table and feeds pending tasks to the
// discussion engine, FIFO within the session.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jechocarlos/queenbee/pkg/config"
	"github.com/jechocarlos/queenbee/pkg/models"
	"github.com/jechocarlos/queenbee/pkg/store"
)

// TaskRunner executes one task to a terminal status.
type TaskRunner interface {
	Run(ctx context.Context, task *models.TaskRecord) error
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a point-in-time view of one session worker.
type WorkerHealth struct {
	SessionID      string       `json:"session_id"`
	Status         WorkerStatus `json:"status"`
	CurrentTaskID  string       `json:"current_task_id,omitempty"`
	TasksProcessed int          `json:"tasks_processed"`
	LastActivity   time.Time    `json:"last_activity"`
}

// SessionWorker polls one session's queue and processes its tasks in order.
type SessionWorker struct {
	sessionID string
	tasks     store.TaskStore
	runner    TaskRunner
	config    *config.QueueConfig

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// cancelTask aborts the task currently being executed, set while working.
	mu             sync.Mutex
	cancelTask     context.CancelFunc
	status         WorkerStatus
	currentTaskID  string
	tasksProcessed int
	lastActivity   time.Time
}

// NewSessionWorker creates a worker for one session. It does not start
// polling until Start is called.
func NewSessionWorker(sessionID string, tasks store.TaskStore, runner TaskRunner, cfg *config.QueueConfig) *SessionWorker {
	return &SessionWorker{
		sessionID:    sessionID,
		tasks:        tasks,
		runner:       runner,
		config:       cfg,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *SessionWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its current
// task within the shutdown grace period. A task still running afterwards has
// its run context cancelled, which the engine treats as an external stop: it
// finalizes the task with whatever accrued. The worker is then waited for
// unconditionally. Safe to call multiple times.
func (w *SessionWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(w.config.ShutdownGrace):
	}

	slog.Warn("Worker did not stop within grace period, cancelling current task",
		"session_id", w.sessionID, "grace", w.config.ShutdownGrace)
	w.mu.Lock()
	if w.cancelTask != nil {
		w.cancelTask()
	}
	w.mu.Unlock()
	<-done
}

// Health returns the current worker health status.
func (w *SessionWorker) Health() WorkerHealth {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerHealth{
		SessionID:      w.sessionID,
		Status:         w.status,
		CurrentTaskID:  w.currentTaskID,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

// run is the main worker loop.
func (w *SessionWorker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("session_id", w.sessionID)
	log.Info("Session worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Session worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, session worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					w.sleep(w.config.PollInterval)
					continue
				}
				log.Error("Error processing task", "error", err)
				w.sleep(w.config.ErrorBackoff)
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *SessionWorker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims the oldest pending task for this session and runs it
// to completion. The engine owns the terminal status write; a returned error
// here only drives the worker's backoff.
func (w *SessionWorker) pollAndProcess(ctx context.Context) error {
	task, err := w.tasks.NextPending(ctx, w.sessionID)
	if err != nil {
		return err
	}

	log := slog.With("session_id", w.sessionID, "task_id", task.ID)
	log.Info("Task claimed")

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.setWorking(task.ID, cancel)
	defer w.setIdle()

	if err := w.runner.Run(taskCtx, task); err != nil {
		log.Error("Task execution failed", "error", err)
		return err
	}

	w.mu.Lock()
	w.tasksProcessed++
	w.mu.Unlock()

	log.Info("Task processing complete")
	return nil
}

func (w *SessionWorker) setWorking(taskID string, cancel context.CancelFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = WorkerStatusWorking
	w.currentTaskID = taskID
	w.cancelTask = cancel
	w.lastActivity = time.Now()
}

func (w *SessionWorker) setIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = WorkerStatusIdle
	w.currentTaskID = ""
	w.cancelTask = nil
	w.lastActivity = time.Now()
}
