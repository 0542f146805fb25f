// Package events broadcasts live discussion progress over PostgreSQL
// NOTIFY. Deliveries are transient: the task row already holds the latest
// snapshot, so listeners that miss a notification recover by reading the
// task. Channels are per-session, plus a global channel for session-level
// status fan-out.
package events

import (
	"encoding/json"

	"github.com/jechocarlos/queenbee/pkg/models"
)

// Event types carried in the envelope's type field.
const (
	EventTypeTaskSnapshot = "task.snapshot"
	EventTypeTaskStatus   = "task.status"
	EventTypeChatMessage  = "chat.message"
)

// GlobalSessionsChannel carries task status transitions for every session.
// Monitoring UIs subscribe here instead of one channel per session.
const GlobalSessionsChannel = "sessions"

// SessionChannel returns the NOTIFY channel for one session's events.
// Format: "session:{session_id}"
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// Envelope is the JSON structure delivered on every channel. Data holds the
// type-specific body; for task.snapshot it is the snapshot document itself.
type Envelope struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	TaskID    string            `json:"task_id,omitempty"`
	Status    models.TaskStatus `json:"status,omitempty"`
	Timestamp string            `json:"ts"`
	Data      json.RawMessage   `json:"data,omitempty"`

	// Truncated marks envelopes whose Data was dropped to fit the NOTIFY
	// payload limit; the full document is in the task row.
	Truncated bool `json:"truncated,omitempty"`
}
