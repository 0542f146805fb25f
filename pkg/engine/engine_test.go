package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jechocarlos/queenbee/pkg/agent"
	"github.com/jechocarlos/queenbee/pkg/config"
	"github.com/jechocarlos/queenbee/pkg/llm"
	"github.com/jechocarlos/queenbee/pkg/models"
	"github.com/jechocarlos/queenbee/pkg/store"
)

// routedModel dispatches by request shape: each deliberator role, the web
// searcher, and the summarizer get their own scripted response queue. Roles
// with an exhausted queue pass.
type routedModel struct {
	mu      sync.Mutex
	scripts map[string][]string
	errs    map[string]error
	calls   map[string]int
}

func newRoutedModel() *routedModel {
	return &routedModel{
		scripts: make(map[string][]string),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func routeKey(req llm.GenerateRequest) string {
	markers := map[string]string{
		"Divergent":  "You are the Divergent thinker",
		"Convergent": "You are the Convergent synthesizer",
		"Critical":   "You are the Critical validator",
		"Pragmatist": "You are the Pragmatist",
		"UserProxy":  "You are the UserProxy",
		"Quantifier": "You are the Quantifier",
	}
	if strings.Contains(req.Prompt, "Perform a web search") {
		return "search"
	}
	for key, marker := range markers {
		if strings.Contains(req.Prompt, marker) {
			return key
		}
	}
	if req.Temperature > 0.35 {
		return "final"
	}
	return "summary"
}

func (m *routedModel) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	key := routeKey(req)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[key]++
	if err := m.errs[key]; err != nil {
		return "", err
	}
	queue := m.scripts[key]
	if len(queue) > 0 {
		resp := queue[0]
		m.scripts[key] = queue[1:]
		return resp, nil
	}
	switch key {
	case "search":
		return "No results found.", nil
	case "summary":
		return "Rolling summary so far.", nil
	case "final":
		return "Final synthesis.", nil
	default:
		return "[PASS]", nil
	}
}

func (m *routedModel) GenerateStream(ctx context.Context, req llm.GenerateRequest) (<-chan string, <-chan error) {
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

func (m *routedModel) callCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

type recordingPublisher struct {
	mu        sync.Mutex
	statuses  []models.TaskStatus
	snapshots int
}

func (p *recordingPublisher) PublishTaskSnapshot(context.Context, string, string, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++
	return nil
}

func (p *recordingPublisher) PublishTaskStatus(_ context.Context, _, _ string, status models.TaskStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return nil
}

func (p *recordingPublisher) seen() ([]models.TaskStatus, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.TaskStatus(nil), p.statuses...), p.snapshots
}

func testEngineConfig() *config.Config {
	return &config.Config{
		Consensus: &config.ConsensusConfig{
			DiscussionRounds:         3,
			SpecialistTimeoutSeconds: 60,
			SummaryIntervalSeconds:   60,
		},
		Engine: &config.EngineConfig{
			TickInterval:       5 * time.Millisecond,
			MonitorInterval:    5 * time.Millisecond,
			IdleDwellSamples:   3,
			HardCapPerRound:    2 * time.Second,
			JoinTimeout:        time.Second,
			SummaryJoinTimeout: time.Second,
		},
	}
}

func createTask(t *testing.T, tasks store.TaskStore, input string) *models.TaskRecord {
	t.Helper()
	desc, err := models.TaskDescription{
		Type:      "collaborative_discussion",
		Input:     input,
		MaxRounds: 3,
	}.Encode()
	require.NoError(t, err)

	task := &models.TaskRecord{
		ID:          "task-1",
		SessionID:   "sess-1",
		Status:      models.TaskStatusPending,
		Description: desc,
		AssignedBy:  "queen",
	}
	require.NoError(t, tasks.Create(context.Background(), task))
	return task
}

func TestEngineRunCompletes(t *testing.T) {
	model := newRoutedModel()
	model.scripts["Divergent"] = []string{"We could shard by tenant or start with read replicas."}
	model.scripts["Convergent"] = []string{"Read replicas first, shard only when write volume demands it."}
	model.scripts["final"] = []string{"Start with read replicas."}

	tasks := store.NewMemoryTaskStore()
	task := createTask(t, tasks, "how should we scale the database?")
	pub := &recordingPublisher{}

	eng := New(model, tasks, testEngineConfig(), pub)
	require.NoError(t, eng.Run(context.Background(), task))

	stored, err := tasks.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	var result models.FinalResult
	require.NoError(t, json.Unmarshal([]byte(stored.Result), &result))
	assert.Equal(t, "how should we scale the database?", result.Task)
	assert.Equal(t, 2, result.TotalContributions)
	assert.Equal(t, "Start with read replicas.", result.Summary)
	assert.Equal(t, 1, result.Statistics.ContributionsPerAgent["Divergent"])
	assert.Equal(t, 1, result.Statistics.ContributionsPerAgent["Convergent"])
	assert.NotEmpty(t, result.Statistics.PassesPerAgent)
	assert.Positive(t, result.Statistics.PeakConcurrentThinking)
	assert.NotEmpty(t, result.Statistics.AverageResponseTimeSeconds)

	contributors := make(map[string]bool)
	for _, c := range result.Contributions {
		contributors[c.Agent] = true
	}
	assert.True(t, contributors["Divergent"])
	assert.True(t, contributors["Convergent"])

	statuses, snapshots := pub.seen()
	require.NotEmpty(t, statuses)
	assert.Equal(t, models.TaskStatusInProgress, statuses[0])
	assert.Equal(t, models.TaskStatusCompleted, statuses[len(statuses)-1])
	assert.Positive(t, snapshots)
}

func TestEngineRunWithWebSearch(t *testing.T) {
	model := newRoutedModel()
	model.scripts["Quantifier"] = []string{"Hey @WebSearcher! Search for lithium battery price trends"}
	model.scripts["Divergent"] = []string{"Battery storage opens several deployment options."}
	model.scripts["search"] = []string{"Prices fell roughly 20% year over year."}

	tasks := store.NewMemoryTaskStore()
	task := createTask(t, tasks, "should we invest in battery storage?")

	eng := New(model, tasks, testEngineConfig(), nil)
	require.NoError(t, eng.Run(context.Background(), task))

	stored, err := tasks.Get(context.Background(), task.ID)
	require.NoError(t, err)

	var result models.FinalResult
	require.NoError(t, json.Unmarshal([]byte(stored.Result), &result))

	assert.Equal(t, 1, result.Statistics.WebSearchesTotal)
	assert.Equal(t, 1, result.Statistics.WebSearchesByAgent["Quantifier"])
	assert.Equal(t, 1, model.callCount("search"))

	var searchEntry *models.Contribution
	for i := range result.Contributions {
		if result.Contributions[i].Agent == "WebSearcher" {
			searchEntry = &result.Contributions[i]
			break
		}
	}
	require.NotNil(t, searchEntry, "search results recorded in the transcript")
	assert.True(t, searchEntry.Hidden)
	assert.Contains(t, searchEntry.Content, "Search results for 'lithium battery price trends'")
	assert.Contains(t, searchEntry.Content, "Prices fell roughly 20%")

	// Hidden entries are excluded from the contribution total.
	assert.Equal(t, 1, result.TotalContributions)
}

func TestEngineRunErrorsCountAsPasses(t *testing.T) {
	model := newRoutedModel()
	for _, d := range agent.Roster {
		model.errs[string(d.Role)] = errors.New("provider exploded")
	}

	tasks := store.NewMemoryTaskStore()
	task := createTask(t, tasks, "anything at all")

	cfg := testEngineConfig()
	cfg.Engine.HardCapPerRound = 30 * time.Millisecond

	eng := New(model, tasks, cfg, nil)
	require.NoError(t, eng.Run(context.Background(), task))

	stored, err := tasks.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)

	var result models.FinalResult
	require.NoError(t, json.Unmarshal([]byte(stored.Result), &result))
	assert.Zero(t, result.TotalContributions)
	assert.Equal(t, agent.NoDiscussion, result.Summary)
	assert.Positive(t, result.Statistics.PassesPerAgent["Divergent"])
	assert.Zero(t, model.callCount("final"), "no synthesis call for an empty discussion")
}

func TestEngineRunExternalStopCompletesWithAccrued(t *testing.T) {
	model := newRoutedModel()
	model.scripts["Divergent"] = []string{"Initial framing of the options."}
	model.scripts["final"] = []string{"Best effort synthesis."}

	tasks := store.NewMemoryTaskStore()
	task := createTask(t, tasks, "long running question")

	cfg := testEngineConfig()
	// Rule out the natural terminators so cancellation is what ends the run.
	cfg.Engine.IdleDwellSamples = 1 << 20
	cfg.Engine.HardCapPerRound = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	eng := New(model, tasks, cfg, nil)
	require.NoError(t, eng.Run(ctx, task))

	stored, err := tasks.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)

	var result models.FinalResult
	require.NoError(t, json.Unmarshal([]byte(stored.Result), &result))
	assert.Equal(t, 1, result.TotalContributions)
	assert.Equal(t, "Best effort synthesis.", result.Summary)
	assert.Equal(t, 1, result.Statistics.ContributionsPerAgent["Divergent"])
}

func TestEngineRunBareDescription(t *testing.T) {
	model := newRoutedModel()
	tasks := store.NewMemoryTaskStore()

	task := &models.TaskRecord{
		ID:          "task-bare",
		SessionID:   "sess-1",
		Status:      models.TaskStatusPending,
		Description: "just a plain question",
	}
	require.NoError(t, tasks.Create(context.Background(), task))

	cfg := testEngineConfig()
	cfg.Engine.HardCapPerRound = 30 * time.Millisecond

	eng := New(model, tasks, cfg, nil)
	require.NoError(t, eng.Run(context.Background(), task))

	stored, err := tasks.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)

	var result models.FinalResult
	require.NoError(t, json.Unmarshal([]byte(stored.Result), &result))
	assert.Equal(t, "just a plain question", result.Task)
}
