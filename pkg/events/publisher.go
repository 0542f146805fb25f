package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jechocarlos/queenbee/pkg/models"
)

// maxNotifyBytes stays below PostgreSQL's 8000-byte NOTIFY payload limit.
const maxNotifyBytes = 7900

// Publisher broadcasts discussion progress via pg_notify. All deliveries are
// fire-and-forget; nothing is persisted here.
type Publisher struct {
	db *sql.DB
}

// NewPublisher creates a Publisher on an existing database handle, the
// *sql.DB from database.Client.DB().
func NewPublisher(db *sql.DB) *Publisher {
	return &Publisher{db: db}
}

// PublishTaskSnapshot broadcasts an in-progress snapshot on the session
// channel. Oversized snapshots are delivered as a truncation envelope;
// listeners fetch the full document from the task row.
func (p *Publisher) PublishTaskSnapshot(ctx context.Context, sessionID, taskID, payload string) error {
	env := Envelope{
		Type:      EventTypeTaskSnapshot,
		SessionID: sessionID,
		TaskID:    taskID,
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Data:      json.RawMessage(payload),
	}
	return p.notify(ctx, SessionChannel(sessionID), env)
}

// PublishTaskStatus broadcasts a task status transition on the session
// channel and the global sessions channel. Both sends are attempted; the
// first error wins.
func (p *Publisher) PublishTaskStatus(ctx context.Context, sessionID, taskID string, status models.TaskStatus) error {
	env := Envelope{
		Type:      EventTypeTaskStatus,
		SessionID: sessionID,
		TaskID:    taskID,
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}

	firstErr := p.notify(ctx, SessionChannel(sessionID), env)
	if err := p.notify(ctx, GlobalSessionsChannel, env); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// PublishChatMessage broadcasts a chat history entry on the session channel.
func (p *Publisher) PublishChatMessage(ctx context.Context, sessionID string, msg *models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}
	env := Envelope{
		Type:      EventTypeChatMessage,
		SessionID: sessionID,
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Data:      data,
	}
	return p.notify(ctx, SessionChannel(sessionID), env)
}

func (p *Publisher) notify(ctx context.Context, channel string, env Envelope) error {
	payload, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// encodeEnvelope marshals the envelope, dropping Data when the result would
// exceed the NOTIFY payload limit.
func encodeEnvelope(env Envelope) (string, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if len(payload) <= maxNotifyBytes {
		return string(payload), nil
	}

	env.Data = nil
	env.Truncated = true
	payload, err = json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated envelope: %w", err)
	}
	return string(payload), nil
}
