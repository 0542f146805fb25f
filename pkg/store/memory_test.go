package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jechocarlos/queenbee/pkg/models"
)

func TestMemoryTaskStoreCreateAndGet(t *testing.T) {
	s := NewMemoryTaskStore()
	ctx := context.Background()

	task := &models.TaskRecord{
		ID:          "task-1",
		SessionID:   "session-1",
		Status:      models.TaskStatusPending,
		Description: `{"type":"discussion","input":"test"}`,
		AssignedBy:  "Orchestrator",
		AssignedTo:  []string{"Divergent", "Critical"},
	}
	require.NoError(t, s.Create(ctx, task))

	got, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, models.TaskStatusPending, got.Status)
	assert.Equal(t, []string{"Divergent", "Critical"}, got.AssignedTo)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Nil(t, got.CompletedAt)

	// Mutating the returned copy must not leak back into the store.
	got.AssignedTo[0] = "mutated"
	again, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "Divergent", again.AssignedTo[0])
}

func TestMemoryTaskStoreGetMissing(t *testing.T) {
	s := NewMemoryTaskStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTaskStoreNextPendingOrdersByCreation(t *testing.T) {
	s := NewMemoryTaskStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.Create(ctx, &models.TaskRecord{
		ID: "newer", SessionID: "s1", Status: models.TaskStatusPending,
		CreatedAt: base.Add(time.Second),
	}))
	require.NoError(t, s.Create(ctx, &models.TaskRecord{
		ID: "older", SessionID: "s1", Status: models.TaskStatusPending,
		CreatedAt: base,
	}))
	require.NoError(t, s.Create(ctx, &models.TaskRecord{
		ID: "other-session", SessionID: "s2", Status: models.TaskStatusPending,
		CreatedAt: base.Add(-time.Second),
	}))

	next, err := s.NextPending(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "older", next.ID)

	_, err = s.NextPending(ctx, "s3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTaskStoreSetResultStampsCompletion(t *testing.T) {
	s := NewMemoryTaskStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &models.TaskRecord{
		ID: "t", SessionID: "s", Status: models.TaskStatusPending,
	}))

	// In-progress snapshots do not stamp completed_at.
	require.NoError(t, s.SetResult(ctx, "t", models.TaskStatusInProgress, `{"status":"in_progress"}`))
	got, err := s.Get(ctx, "t")
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, `{"status":"in_progress"}`, got.Result)

	require.NoError(t, s.SetResult(ctx, "t", models.TaskStatusCompleted, `{"summary":"done"}`))
	got, err = s.Get(ctx, "t")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
}

func TestMemorySessionStoreLifecycle(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "a"))
	require.NoError(t, s.Create(ctx, "b"))

	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, active)

	require.NoError(t, s.Terminate(ctx, "a"))
	status, err := s.Status(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusTerminated, status)

	n, err := s.TerminateAllActive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	active, err = s.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, s.Terminate(ctx, "missing"), ErrNotFound)
}

func TestMemoryChatStoreHistoryWindow(t *testing.T) {
	s := NewMemoryChatStore()
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		_, err := s.Append(ctx, "s1", models.RoleUser, content)
		require.NoError(t, err)
	}

	all, err := s.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Content)

	recent, err := s.History(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Content)
	assert.Equal(t, "three", recent[1].Content)
}

func TestMemoryTaskStorePurgeFinishedBefore(t *testing.T) {
	s := NewMemoryTaskStore()
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, s.Create(ctx, &models.TaskRecord{
			ID:        id,
			SessionID: "session-1",
			Status:    models.TaskStatusPending,
		}))
	}
	require.NoError(t, s.SetStatus(ctx, "t1", models.TaskStatusCompleted))
	require.NoError(t, s.SetStatus(ctx, "t2", models.TaskStatusFailed))

	// Cutoff in the future catches everything finished so far; the pending
	// task survives regardless.
	n, err := s.PurgeFinishedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = s.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "t3")
	assert.NoError(t, err)
}

func TestMemorySessionStorePurgeEndedBefore(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "ended"))
	require.NoError(t, s.Create(ctx, "alive"))
	require.NoError(t, s.Terminate(ctx, "ended"))

	n, err := s.PurgeEndedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Status(ctx, "ended")
	assert.ErrorIs(t, err, ErrNotFound)

	status, err := s.Status(ctx, "alive")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, status)
}
