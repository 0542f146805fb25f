package api

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jechocarlos/queenbee/pkg/config"
	"github.com/jechocarlos/queenbee/pkg/llm"
	"github.com/jechocarlos/queenbee/pkg/models"
	"github.com/jechocarlos/queenbee/pkg/store"
)

// orchestratorStubModel routes by request shape: classification, direct
// answer, or final response.
type orchestratorStubModel struct {
	mu       sync.Mutex
	classify string
	simple   string
	final    string
	requests []llm.GenerateRequest
}

func (m *orchestratorStubModel) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	switch {
	case strings.Contains(req.Prompt, "SIMPLE or COMPLEX"):
		return m.classify, nil
	case strings.Contains(req.System, "ONLY the final answer"):
		return m.simple, nil
	case strings.Contains(req.Prompt, "My specialist team has completed their analysis"):
		return m.final, nil
	}
	return "", errors.New("unexpected request")
}

func (m *orchestratorStubModel) GenerateStream(ctx context.Context, req llm.GenerateRequest) (<-chan string, <-chan error) {
	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	resp, err := m.Generate(ctx, req)
	if err != nil {
		errs <- err
	} else {
		chunks <- resp
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

func testAPIConfig() *config.Config {
	return &config.Config{
		System:       config.DefaultSystemConfig(),
		Consensus:    config.DefaultConsensusConfig(),
		OpenRouter:   config.DefaultOpenRouterConfig(),
		Orchestrator: config.DefaultOrchestratorConfig(),
		Queue:        config.DefaultQueueConfig(),
		Engine:       config.DefaultEngineConfig(),
	}
}

type orchestratorFixture struct {
	model    *orchestratorStubModel
	tasks    *store.MemoryTaskStore
	sessions *store.MemorySessionStore
	chat     *store.MemoryChatStore
	orch     *Orchestrator
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		model:    &orchestratorStubModel{},
		tasks:    store.NewMemoryTaskStore(),
		sessions: store.NewMemorySessionStore(),
		chat:     store.NewMemoryChatStore(),
	}
	f.orch = NewOrchestrator(f.model, f.tasks, f.sessions, f.chat, nil, testAPIConfig())
	f.orch.pollInterval = 2 * time.Millisecond
	f.orch.awaitTimeout = 500 * time.Millisecond

	require.NoError(t, f.sessions.Create(context.Background(), "sess-1"))
	return f
}

// completeTasks finishes the next pending task with the given terminal
// status, simulating the session worker.
func (f *orchestratorFixture) completeTasks(t *testing.T, status models.TaskStatus, result string) {
	t.Helper()
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			task, err := f.tasks.NextPending(context.Background(), "sess-1")
			if err != nil {
				time.Sleep(2 * time.Millisecond)
				continue
			}
			_ = f.tasks.SetResult(context.Background(), task.ID, status, result)
			return
		}
	}()
}

func TestOrchestratorSimplePath(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.model.classify = "SIMPLE"
	f.model.simple = "4"

	answer, err := f.orch.Ask(context.Background(), "sess-1", "what is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, AnswerTypeSimple, answer.Type)
	assert.Equal(t, "4", answer.Content)
	assert.Empty(t, answer.TaskID)

	history, err := f.chat.History(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "what is 2+2?", history[0].Content)
	assert.Equal(t, models.RoleOrchestrator, history[1].Role)
	assert.Equal(t, "4", history[1].Content)
}

func TestOrchestratorComplexPath(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.model.classify = "COMPLEX"
	f.model.final = "Migrate in two phases, replicas first."

	finalDoc, err := models.FinalResult{
		Task:    "how should we migrate?",
		Summary: "Phased migration with read replicas first.",
	}.Encode()
	require.NoError(t, err)
	f.completeTasks(t, models.TaskStatusCompleted, finalDoc)

	answer, err := f.orch.Ask(context.Background(), "sess-1", "how should we migrate?")
	require.NoError(t, err)
	assert.Equal(t, AnswerTypeDeliberation, answer.Type)
	assert.Equal(t, "Migrate in two phases, replicas first.", answer.Content)
	require.NotEmpty(t, answer.TaskID)

	task, err := f.tasks.Get(context.Background(), answer.TaskID)
	require.NoError(t, err)
	desc := models.ParseTaskDescription(task.Description)
	assert.Equal(t, "collaborative_discussion", desc.Type)
	assert.Equal(t, "how should we migrate?", desc.Input)
	assert.Equal(t, "orchestrator", task.AssignedBy)
	assert.Contains(t, task.AssignedTo, "Divergent")

	history, err := f.chat.History(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleOrchestrator, history[1].Role)
}

func TestOrchestratorDeliberationTimeout(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.model.classify = "COMPLEX"
	f.orch.awaitTimeout = 30 * time.Millisecond

	answer, err := f.orch.Ask(context.Background(), "sess-1", "hard question")
	require.ErrorIs(t, err, ErrDeliberationTimeout)
	require.NotNil(t, answer)
	assert.Equal(t, AnswerTypeDeliberation, answer.Type)
	assert.NotEmpty(t, answer.TaskID, "caller can fetch the result later")
	assert.Empty(t, answer.Content)
}

func TestOrchestratorDeliberationFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.model.classify = "COMPLEX"

	f.completeTasks(t, models.TaskStatusFailed, `{"error":"engine exploded"}`)

	_, err := f.orch.Ask(context.Background(), "sess-1", "hard question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine exploded")
}

func TestOrchestratorSessionChecks(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orch.Ask(context.Background(), "missing", "q")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.sessions.Terminate(context.Background(), "sess-1"))
	_, err = f.orch.Ask(context.Background(), "sess-1", "q")
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestConversationContext(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	assert.Empty(t, f.orch.conversationContext(ctx, "sess-1"), "no history yet")

	_, err := f.chat.Append(ctx, "sess-1", models.RoleUser, "first question")
	require.NoError(t, err)
	_, err = f.chat.Append(ctx, "sess-1", models.RoleOrchestrator, "first answer")
	require.NoError(t, err)
	_, err = f.chat.Append(ctx, "sess-1", models.RoleSpecialist, "internal chatter")
	require.NoError(t, err)

	block := f.orch.conversationContext(ctx, "sess-1")
	assert.Contains(t, block, "=== PREVIOUS CONVERSATION IN THIS SESSION ===")
	assert.Contains(t, block, "User asked: first question")
	assert.Contains(t, block, "Queen responded: first answer")
	assert.NotContains(t, block, "internal chatter")
	assert.Contains(t, block, "=== NEW QUESTION (your current task) ===")
}
