// Package api is the HTTP surface: session lifecycle, the orchestrator
// question flow, raw task access, and health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jechocarlos/queenbee/pkg/agent"
	"github.com/jechocarlos/queenbee/pkg/config"
	"github.com/jechocarlos/queenbee/pkg/llm"
	"github.com/jechocarlos/queenbee/pkg/models"
	"github.com/jechocarlos/queenbee/pkg/store"
)

// Orchestrator errors.
var (
	ErrSessionNotActive    = errors.New("session is not active")
	ErrDeliberationTimeout = errors.New("deliberation did not complete in time")
)

// Answer type values.
const (
	AnswerTypeSimple       = "simple"
	AnswerTypeDeliberation = "deliberation"
)

// Answer is the orchestrator's reply to one question. TaskID is set for
// deliberation answers; on timeout it is the handle for fetching the result
// later.
type Answer struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

// simpleSystem steers the model to a bare final answer for questions that do
// not need the specialist roster.
const simpleSystem = `You answer questions with ONLY the final answer. No reasoning. No steps. No explanation.

Examples:
Q: what is 2+2?
A: 4

Q: what is 50*60?
A: 3000

Q: what's the capital of France?
A: Paris

Now answer this question with ONLY the final answer:`

// ChatPublisher broadcasts chat history entries to live listeners. May be
// nil.
type ChatPublisher interface {
	PublishChatMessage(ctx context.Context, sessionID string, msg *models.ChatMessage) error
}

// Orchestrator routes user questions: trivial ones are answered directly,
// the rest become deliberation tasks whose synthesis is folded into a final
// response.
type Orchestrator struct {
	model      llm.LanguageModel
	classifier *agent.Classifier
	tasks      store.TaskStore
	sessions   store.SessionStore
	chat       store.ChatStore
	publisher  ChatPublisher
	cfg        *config.Config
	logger     *slog.Logger

	// Result polling knobs, shrunk by tests.
	pollInterval time.Duration
	awaitTimeout time.Duration
}

// NewOrchestrator wires the question flow. publisher may be nil.
func NewOrchestrator(model llm.LanguageModel, tasks store.TaskStore, sessions store.SessionStore, chat store.ChatStore, publisher ChatPublisher, cfg *config.Config) *Orchestrator {
	classifierSystem, err := cfg.SystemPrompt("Classifier")
	if err != nil {
		slog.Warn("Failed to load classifier system prompt", "error", err)
	}
	return &Orchestrator{
		model:        model,
		classifier:   agent.NewClassifier(model, classifierSystem, cfg.Orchestrator.ClassifierMaxTokens),
		tasks:        tasks,
		sessions:     sessions,
		chat:         chat,
		publisher:    publisher,
		cfg:          cfg,
		logger:       slog.With("component", "orchestrator"),
		pollInterval: 500 * time.Millisecond,
		awaitTimeout: time.Duration(cfg.Consensus.SpecialistTimeoutSeconds) * time.Second,
	}
}

// Ask processes one user question in a session. Both the question and the
// final response are appended to the session's chat history.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, input string) (*Answer, error) {
	status, err := o.sessions.Status(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if status != models.SessionStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrSessionNotActive, sessionID, status)
	}

	log := o.logger.With("session_id", sessionID)
	o.logMessage(ctx, sessionID, models.RoleUser, input)

	if !o.classifier.Classify(ctx, input) {
		log.Info("Answering simple question directly")
		content, err := o.answerDirectly(ctx, input)
		if err != nil {
			return nil, err
		}
		o.logMessage(ctx, sessionID, models.RoleOrchestrator, content)
		return &Answer{Type: AnswerTypeSimple, Content: content}, nil
	}

	log.Info("Complex question, starting deliberation")
	taskID, err := o.createDeliberation(ctx, sessionID, input)
	if err != nil {
		return nil, err
	}

	result, err := o.awaitResult(ctx, taskID)
	if err != nil {
		// The task keeps running; the caller can fetch the result by ID.
		return &Answer{Type: AnswerTypeDeliberation, TaskID: taskID}, err
	}

	content, err := o.finalResponse(ctx, input, result.Summary)
	if err != nil {
		return &Answer{Type: AnswerTypeDeliberation, TaskID: taskID}, err
	}
	o.logMessage(ctx, sessionID, models.RoleOrchestrator, content)
	return &Answer{Type: AnswerTypeDeliberation, Content: content, TaskID: taskID}, nil
}

// answerDirectly serves the simple path: minimal few-shot prompt, zero
// temperature, tight token cap.
func (o *Orchestrator) answerDirectly(ctx context.Context, input string) (string, error) {
	maxTokens := o.cfg.Orchestrator.SimpleMaxTokens
	system := fmt.Sprintf("%s\n\n**Token Limit**: Keep your response to approximately %d tokens maximum.", simpleSystem, maxTokens)

	response, err := o.model.Generate(ctx, llm.GenerateRequest{
		Prompt:      input,
		System:      system,
		Temperature: 0,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("direct answer failed: %w", err)
	}
	return strings.TrimSpace(response), nil
}

// createDeliberation enqueues a discussion task carrying the prior
// conversation as context. The session's worker picks it up.
func (o *Orchestrator) createDeliberation(ctx context.Context, sessionID, input string) (string, error) {
	desc, err := models.TaskDescription{
		Type:      "collaborative_discussion",
		Input:     input,
		Context:   o.conversationContext(ctx, sessionID),
		MaxRounds: o.cfg.Consensus.DiscussionRounds,
	}.Encode()
	if err != nil {
		return "", err
	}

	assignedTo := make([]string, 0, len(agent.Roster))
	for _, d := range agent.Roster {
		assignedTo = append(assignedTo, string(d.Role))
	}

	task := &models.TaskRecord{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Status:      models.TaskStatusPending,
		Description: desc,
		AssignedBy:  "orchestrator",
		AssignedTo:  assignedTo,
	}
	if err := o.tasks.Create(ctx, task); err != nil {
		return "", err
	}
	return task.ID, nil
}

// awaitResult polls the task until it reaches a terminal status or the
// specialist timeout elapses.
func (o *Orchestrator) awaitResult(ctx context.Context, taskID string) (*models.FinalResult, error) {
	deadline := time.Now().Add(o.awaitTimeout)
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		task, err := o.tasks.Get(ctx, taskID)
		if err != nil {
			return nil, err
		}
		switch task.Status {
		case models.TaskStatusCompleted:
			var result models.FinalResult
			if err := json.Unmarshal([]byte(task.Result), &result); err != nil {
				return nil, fmt.Errorf("malformed deliberation result: %w", err)
			}
			return &result, nil
		case models.TaskStatusFailed:
			var failure models.ErrorResult
			_ = json.Unmarshal([]byte(task.Result), &failure)
			return nil, fmt.Errorf("deliberation failed: %s", failure.Error)
		}
	}
	return nil, fmt.Errorf("%w: task %s", ErrDeliberationTimeout, taskID)
}

// finalResponse folds the specialists' synthesis into a direct answer.
func (o *Orchestrator) finalResponse(ctx context.Context, input, synthesis string) (string, error) {
	maxTokens := o.cfg.Orchestrator.ComplexMaxTokens
	prompt := fmt.Sprintf(`The user asked: "%s"

My specialist team has completed their analysis. Here is their synthesis:

%s

Based on this synthesis, provide a COMPLETE and COMPREHENSIVE answer to the user's question.

Requirements:
- Provide a full, detailed answer (not abbreviated or shortened)
- Continue writing until you've fully answered the question
- Use structure (sections, bullets, numbered lists) if helpful
- Include all relevant context and details from the synthesis
- Do NOT stop early or cut off in the middle of explaining

DO NOT just repeat the synthesis - integrate it into a clear, direct answer that fully addresses what the user asked.

**Token Limit**: Your response should be approximately %d tokens maximum to ensure comprehensive coverage.`, input, synthesis, maxTokens)

	response, err := o.model.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		Temperature: 0.7,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("final response failed: %w", err)
	}
	return strings.TrimSpace(response), nil
}

// conversationContext formats recent user/orchestrator exchanges so
// specialists know what earlier discussions concluded. Specialist chatter is
// excluded. Empty history yields an empty context.
func (o *Orchestrator) conversationContext(ctx context.Context, sessionID string) string {
	messages, err := o.chat.History(ctx, sessionID, o.cfg.Orchestrator.HistoryLimit)
	if err != nil {
		o.logger.Warn("Failed to load chat history for context", "session_id", sessionID, "error", err)
		return ""
	}

	parts := []string{"=== PREVIOUS CONVERSATION IN THIS SESSION ===\n"}
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			parts = append(parts, "User asked: "+msg.Content)
		case models.RoleOrchestrator:
			parts = append(parts, "Queen responded: "+msg.Content)
		}
	}
	if len(parts) == 1 {
		return ""
	}
	parts = append(parts, "\n=== NEW QUESTION (your current task) ===")
	return strings.Join(parts, "\n\n")
}

// logMessage appends to chat history and broadcasts; failures are logged and
// never block the answer flow.
func (o *Orchestrator) logMessage(ctx context.Context, sessionID string, role models.MessageRole, content string) {
	msg, err := o.chat.Append(ctx, sessionID, role, content)
	if err != nil {
		o.logger.Warn("Failed to append chat message", "session_id", sessionID, "role", role, "error", err)
		return
	}
	if o.publisher != nil {
		if err := o.publisher.PublishChatMessage(ctx, sessionID, msg); err != nil {
			o.logger.Warn("Failed to publish chat message", "session_id", sessionID, "error", err)
		}
	}
}
