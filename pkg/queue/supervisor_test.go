package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jechocarlos/queenbee/pkg/store"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *store.MemoryTaskStore, *store.MemorySessionStore, *stubRunner) {
	t.Helper()
	tasks := store.NewMemoryTaskStore()
	sessions := store.NewMemorySessionStore()
	runner := &stubRunner{tasks: tasks}
	sup := NewSupervisor(tasks, sessions, runner, testQueueConfig())
	t.Cleanup(sup.StopAll)
	return sup, tasks, sessions, runner
}

func TestSupervisorStartStopWorker(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t)
	ctx := context.Background()

	sup.StartWorker(ctx, "sess-1")
	assert.True(t, sup.Running("sess-1"))

	// Idempotent: the running worker is kept.
	sup.StartWorker(ctx, "sess-1")
	assert.Len(t, sup.Health(), 1)

	sup.StopWorker("sess-1")
	assert.False(t, sup.Running("sess-1"))

	// Stopping an unknown session is a no-op.
	sup.StopWorker("sess-unknown")
}

func TestSupervisorProcessesAcrossSessions(t *testing.T) {
	sup, tasks, _, runner := newTestSupervisor(t)
	ctx := context.Background()

	createPendingTask(t, tasks, "a1", "sess-a")
	createPendingTask(t, tasks, "b1", "sess-b")

	sup.StartWorker(ctx, "sess-a")
	sup.StartWorker(ctx, "sess-b")

	require.Eventually(t, func() bool {
		return len(runner.processed()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.ElementsMatch(t, []string{"a1", "b1"}, runner.processed())
}

func TestSupervisorResumeActive(t *testing.T) {
	sup, _, sessions, _ := newTestSupervisor(t)
	ctx := context.Background()

	require.NoError(t, sessions.Create(ctx, "sess-1"))
	require.NoError(t, sessions.Create(ctx, "sess-2"))
	require.NoError(t, sessions.Create(ctx, "sess-3"))
	require.NoError(t, sessions.Terminate(ctx, "sess-3"))

	require.NoError(t, sup.ResumeActive(ctx))

	assert.True(t, sup.Running("sess-1"))
	assert.True(t, sup.Running("sess-2"))
	assert.False(t, sup.Running("sess-3"), "terminated sessions stay stopped")
}

func TestSupervisorStopAllRefusesNewWorkers(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t)
	ctx := context.Background()

	sup.StartWorker(ctx, "sess-1")
	sup.StopAll()

	assert.False(t, sup.Running("sess-1"))

	sup.StartWorker(ctx, "sess-2")
	assert.False(t, sup.Running("sess-2"), "stopped supervisor accepts no workers")
}
