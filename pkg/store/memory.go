package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jechocarlos/queenbee/pkg/models"
)

// MemoryTaskStore is an in-process TaskStore for tests and single-process
// experiments. All methods copy records on the way in and out so callers
// never share mutable state with the store.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*models.TaskRecord
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*models.TaskRecord)}
}

func copyTask(t *models.TaskRecord) *models.TaskRecord {
	cp := *t
	cp.AssignedTo = append([]string(nil), t.AssignedTo...)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func (s *MemoryTaskStore) Create(_ context.Context, task *models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	s.tasks[task.ID] = copyTask(task)
	return nil
}

func (s *MemoryTaskStore) Get(_ context.Context, id string) (*models.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(task), nil
}

func (s *MemoryTaskStore) NextPending(_ context.Context, sessionID string) (*models.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*models.TaskRecord
	for _, t := range s.tasks {
		if t.SessionID == sessionID && t.Status == models.TaskStatusPending {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return copyTask(pending[0]), nil
}

func (s *MemoryTaskStore) SetStatus(_ context.Context, id string, status models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	task.Status = status
	if status.IsTerminal() && task.CompletedAt == nil {
		now := time.Now()
		task.CompletedAt = &now
	}
	return nil
}

func (s *MemoryTaskStore) SetResult(_ context.Context, id string, status models.TaskStatus, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	task.Status = status
	task.Result = result
	if status.IsTerminal() && task.CompletedAt == nil {
		now := time.Now()
		task.CompletedAt = &now
	}
	return nil
}

func (s *MemoryTaskStore) PurgeFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, task := range s.tasks {
		if task.Status.IsTerminal() && task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

// MemorySessionStore is an in-process SessionStore.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionStatus
	ended    map[string]time.Time
	order    []string
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]models.SessionStatus),
		ended:    make(map[string]time.Time),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.order = append(s.order, id)
	}
	s.sessions[id] = models.SessionStatusActive
	return nil
}

func (s *MemorySessionStore) Status(_ context.Context, id string) (models.SessionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.sessions[id]
	if !ok {
		return "", ErrNotFound
	}
	return status, nil
}

func (s *MemorySessionStore) Active(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, id := range s.order {
		if s.sessions[id] == models.SessionStatusActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemorySessionStore) Terminate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	s.sessions[id] = models.SessionStatusTerminated
	s.ended[id] = time.Now()
	return nil
}

func (s *MemorySessionStore) TerminateAllActive(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for id, status := range s.sessions {
		if status == models.SessionStatusActive {
			s.sessions[id] = models.SessionStatusTerminated
			s.ended[id] = now
			n++
		}
	}
	return n, nil
}

func (s *MemorySessionStore) PurgeEndedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.order[:0]
	for _, id := range s.order {
		endedAt, done := s.ended[id]
		if done && s.sessions[id] != models.SessionStatusActive && endedAt.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.ended, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return n, nil
}

// MemoryChatStore is an in-process ChatStore.
type MemoryChatStore struct {
	mu       sync.RWMutex
	nextID   int64
	messages map[string][]models.ChatMessage
}

func NewMemoryChatStore() *MemoryChatStore {
	return &MemoryChatStore{messages: make(map[string][]models.ChatMessage)}
}

func (s *MemoryChatStore) Append(_ context.Context, sessionID string, role models.MessageRole, content string) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := models.ChatMessage{
		ID:        s.nextID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return &msg, nil
}

func (s *MemoryChatStore) History(_ context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]models.ChatMessage(nil), all...), nil
}
