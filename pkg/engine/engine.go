package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jechocarlos/queenbee/pkg/agent"
	"github.com/jechocarlos/queenbee/pkg/config"
	"github.com/jechocarlos/queenbee/pkg/llm"
	"github.com/jechocarlos/queenbee/pkg/models"
	"github.com/jechocarlos/queenbee/pkg/store"
)

var searcherName = string(agent.RoleWebSearcher)

// EventPublisher broadcasts task progress to interested listeners. A nil
// publisher disables broadcasting; persistence happens either way.
type EventPublisher interface {
	PublishTaskSnapshot(ctx context.Context, sessionID, taskID, payload string) error
	PublishTaskStatus(ctx context.Context, sessionID, taskID string, status models.TaskStatus) error
}

// Engine runs one deliberation per task: it spawns the specialist roster,
// arbitrates their web searches, keeps a rolling summary, detects
// termination, and persists the final result document.
type Engine struct {
	model     llm.LanguageModel
	tasks     store.TaskStore
	cfg       *config.Config
	publisher EventPublisher
	logger    *slog.Logger
}

func New(model llm.LanguageModel, tasks store.TaskStore, cfg *config.Config, publisher EventPublisher) *Engine {
	return &Engine{
		model:     model,
		tasks:     tasks,
		cfg:       cfg,
		publisher: publisher,
		logger:    slog.With("component", "engine"),
	}
}

// Run executes the task's deliberation to a terminal status. Cancelling ctx
// acts as an external stop: the discussion ends and the task completes with
// whatever contributions accrued. The returned error reports infrastructure
// failures; the task row carries the outcome either way.
func (e *Engine) Run(ctx context.Context, task *models.TaskRecord) error {
	log := e.logger.With("task_id", task.ID, "session_id", task.SessionID)

	desc := models.ParseTaskDescription(task.Description)
	log.Info("Starting deliberation", "max_rounds", desc.MaxRounds)

	if err := e.tasks.SetStatus(ctx, task.ID, models.TaskStatusInProgress); err != nil {
		return err
	}
	e.publishStatus(ctx, task, models.TaskStatusInProgress)

	result, err := e.deliberate(ctx, task, desc)

	// The terminal write must survive a cancelled run context.
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err != nil {
		log.Error("Deliberation failed", "error", err)
		payload, encErr := models.ErrorResult{Error: err.Error()}.Encode()
		if encErr == nil {
			if setErr := e.tasks.SetResult(finalCtx, task.ID, models.TaskStatusFailed, payload); setErr != nil {
				log.Error("Failed to persist failure result", "error", setErr)
			}
		}
		e.publishStatus(finalCtx, task, models.TaskStatusFailed)
		return err
	}

	payload, err := result.Encode()
	if err != nil {
		return err
	}
	if err := e.tasks.SetResult(finalCtx, task.ID, models.TaskStatusCompleted, payload); err != nil {
		return err
	}
	e.publishStatus(finalCtx, task, models.TaskStatusCompleted)
	log.Info("Deliberation completed",
		"total_contributions", result.TotalContributions,
		"duration_seconds", result.Statistics.DurationSeconds)
	return nil
}

// deliberate runs the discussion itself and assembles the final result.
func (e *Engine) deliberate(ctx context.Context, task *models.TaskRecord, desc models.TaskDescription) (*models.FinalResult, error) {
	ecfg := e.cfg.Engine

	roster := make([]string, 0, len(agent.Roster))
	for _, d := range agent.Roster {
		roster = append(roster, string(d.Role))
	}
	st := newState(desc.Input, roster)

	stopCh := make(chan struct{})
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(stopCh) }) }

	arb := newSearchArbiter()
	searcherPrompt, err := e.cfg.SystemPrompt(searcherName)
	if err != nil {
		return nil, err
	}
	searcher := agent.NewWebSearcher(e.model, searcherPrompt)
	summarizer := agent.NewSummarizer(e.model)

	e.persistSnapshot(ctx, task, st)

	var summaryWG sync.WaitGroup
	summaryWG.Add(1)
	go func() {
		defer summaryWG.Done()
		e.summaryLoop(ctx, task, st, summarizer, desc.Input, stopCh)
	}()

	var wg sync.WaitGroup
	for i := range agent.Roster {
		d := &agent.Roster[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.agentLoop(ctx, task, st, d, arb, searcher, desc, stopCh, stop)
		}()
	}

	e.monitor(ctx, st, desc, stopCh)
	stop()
	arb.drain()

	if !waitTimeout(&wg, ecfg.JoinTimeout) {
		e.logger.Warn("Agent workers did not stop within join timeout",
			"task_id", task.ID, "timeout", ecfg.JoinTimeout)
	}
	if !waitTimeout(&summaryWG, ecfg.SummaryJoinTimeout) {
		e.logger.Warn("Summary loop did not stop within join timeout", "task_id", task.ID)
	}

	if ctx.Err() != nil {
		e.logger.Info("External stop received, finalizing with accrued contributions",
			"task_id", task.ID)
	}

	transcript := st.transcript()
	rolling := st.rolling()

	// Cancellation of the run context is the external stop signal; the
	// discussion still finishes with whatever accrued, so the synthesis call
	// runs on a context that survives it.
	synthCtx, cancelSynth := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancelSynth()

	summary, err := summarizer.FinalSynthesis(synthCtx, desc.Input, transcript, rolling)
	if err != nil {
		e.logger.Error("Final synthesis failed", "task_id", task.ID, "error", err)
		summary = "Unable to generate summary."
	}

	visibleCount := 0
	for _, c := range transcript {
		if !c.Hidden {
			visibleCount++
		}
	}

	return &models.FinalResult{
		Task:               desc.Input,
		Context:            desc.Context,
		TotalContributions: visibleCount,
		Contributions:      transcript,
		RollingSummary:     rolling,
		Summary:            summary,
		Statistics:         st.finalStats(),
	}, nil
}

// monitor samples agent activity until the discussion terminates: the hard
// wall-clock cap expires, sustained quiescence is observed, or the stop
// signal fires (all agents passed).
func (e *Engine) monitor(ctx context.Context, st *state, desc models.TaskDescription, stopCh <-chan struct{}) {
	ecfg := e.cfg.Engine
	deadline := time.Now().Add(time.Duration(desc.MaxRounds) * ecfg.HardCapPerRound)

	ticker := time.NewTicker(ecfg.MonitorInterval)
	defer ticker.Stop()

	dwell := 0
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
		}
		if st.allIdleWithDiscussion() {
			dwell++
			if dwell >= ecfg.IdleDwellSamples {
				return
			}
		} else {
			dwell = 0
		}
	}
}

// agentLoop is one specialist's lifecycle: wait for admission, think,
// respond, handle search requests and passes, idle, repeat until stopped.
func (e *Engine) agentLoop(ctx context.Context, task *models.TaskRecord, st *state, d *agent.Descriptor, arb *searchArbiter, searcher *agent.WebSearcher, desc models.TaskDescription, stopCh <-chan struct{}, stop func()) {
	name := string(d.Role)
	log := e.logger.With("task_id", task.ID, "agent", name)

	maxTokens := e.cfg.AgentConfig(string(d.TokenConfigRole)).MaxTokens
	system, err := e.cfg.SystemPrompt(name)
	if err != nil {
		log.Error("Failed to load system prompt", "error", err)
	}

	roster := make([]string, 0, len(agent.Roster))
	for _, rd := range agent.Roster {
		roster = append(roster, string(rd.Role))
	}

	contributed := 0
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if !shouldContribute(d, st.visible(), desc.Input, contributed) {
			if !sleepOrStop(stopCh, e.cfg.Engine.TickInterval) {
				return
			}
			continue
		}

		st.setStatus(name, models.AgentThinking)
		e.persistSnapshot(ctx, task, st)

		started := time.Now()
		prompt := agent.BuildDeliberationPrompt(d.Role, desc.Input, desc.Context, st.transcript(), maxTokens)
		response, genErr := e.model.Generate(ctx, llm.GenerateRequest{
			Prompt:      prompt,
			System:      system,
			Temperature: d.Temperature,
			MaxTokens:   maxTokens,
		})

		if genErr == nil {
			if query, ok := agent.ParseSearchRequest(response); ok {
				e.handleSearch(ctx, task, st, arb, searcher, name, query)
				if !sleepOrStop(stopCh, e.cfg.Engine.TickInterval) {
					return
				}
				continue
			}
		}

		pass := genErr != nil || agent.IsPass(response)
		var content string
		if !pass {
			var kept bool
			content, kept = agent.CleanResponse(response)
			pass = !kept
		}

		if pass {
			if genErr != nil {
				log.Warn("Generation failed, counting as pass", "error", genErr)
			} else {
				log.Info("Agent passed")
			}
			if st.recordPass(name, roster) {
				log.Info("All agents passed, ending discussion")
				stop()
				st.setStatus(name, models.AgentIdle)
				return
			}
		} else {
			contributed++
			st.addContribution(name, content, time.Since(started))
			e.persistSnapshot(ctx, task, st)
			log.Info("Agent contributed", "own_contributions", contributed)
		}

		st.setStatus(name, models.AgentIdle)
		e.persistSnapshot(ctx, task, st)

		if !sleepOrStop(stopCh, e.cfg.Engine.TickInterval) {
			return
		}
	}
}

// handleSearch runs the specialist's search request through the arbiter.
// When the searcher is busy the request queues and a hidden waiting notice
// is appended; otherwise this goroutine performs the search and then drains
// any requests that queued behind it.
func (e *Engine) handleSearch(ctx context.Context, task *models.TaskRecord, st *state, arb *searchArbiter, searcher *agent.WebSearcher, requester, query string) {
	if !arb.acquire(requester, query) {
		st.addHidden(requester, waitingNotice(query))
		st.setStatus(requester, models.AgentWaiting)
		e.persistSnapshot(ctx, task, st)
		return
	}

	req := searchRequest{agent: requester, query: query}
	for {
		st.recordSearch(req.agent, req.query)
		e.persistSnapshot(ctx, task, st)

		body := searcher.Search(ctx, req.query, req.agent)
		st.addHidden(searcherName, "Search results for '"+req.query+"':\n\n"+body)
		st.setStatus(req.agent, models.AgentIdle)
		e.persistSnapshot(ctx, task, st)

		next, ok := arb.release()
		if !ok {
			break
		}
		req = next
	}

	st.setStatus(searcherName, models.AgentIdle)
	e.persistSnapshot(ctx, task, st)
}

// summaryLoop refreshes the rolling summary whenever new transcript entries
// arrived since the last refresh.
func (e *Engine) summaryLoop(ctx context.Context, task *models.TaskRecord, st *state, summarizer *agent.Summarizer, question string, stopCh <-chan struct{}) {
	interval := e.cfg.Consensus.SummaryInterval()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	for {
		select {
		case <-stopCh:
			return
		case <-time.After(interval):
		}

		transcript := st.summaryDue()
		if transcript == nil {
			continue
		}
		summary, err := summarizer.RollingSummary(ctx, question, transcript)
		if err != nil {
			e.logger.Warn("Rolling summary failed", "task_id", task.ID, "error", err)
			continue
		}
		st.setRollingSummary(summary, len(transcript))
		e.persistSnapshot(ctx, task, st)
	}
}

// persistSnapshot writes the current snapshot into the task row and
// broadcasts it. Persistence failures are logged, never fatal; the next
// state change retries naturally.
func (e *Engine) persistSnapshot(ctx context.Context, task *models.TaskRecord, st *state) {
	payload, err := st.snapshot().Encode()
	if err != nil {
		e.logger.Error("Failed to encode snapshot", "task_id", task.ID, "error", err)
		return
	}
	if err := e.tasks.SetResult(ctx, task.ID, models.TaskStatusInProgress, payload); err != nil {
		e.logger.Warn("Failed to persist snapshot", "task_id", task.ID, "error", err)
		return
	}
	if e.publisher != nil {
		if err := e.publisher.PublishTaskSnapshot(ctx, task.SessionID, task.ID, payload); err != nil {
			e.logger.Warn("Failed to publish snapshot", "task_id", task.ID, "error", err)
		}
	}
}

func (e *Engine) publishStatus(ctx context.Context, task *models.TaskRecord, status models.TaskStatus) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishTaskStatus(ctx, task.SessionID, task.ID, status); err != nil {
		e.logger.Warn("Failed to publish task status", "task_id", task.ID, "error", err)
	}
}

// sleepOrStop pauses for d, returning false when the stop signal fires
// first.
func sleepOrStop(stopCh <-chan struct{}, d time.Duration) bool {
	select {
	case <-stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

// waitTimeout waits for wg up to d and reports whether it finished in time.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
