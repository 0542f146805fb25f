package models

import "time"

// SessionStatus represents the lifecycle state of a user session.
type SessionStatus string

// Session status constants.
const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusTerminated SessionStatus = "terminated"
)

// MessageRole identifies the author class of a chat history entry.
type MessageRole string

// Message role constants. Orchestrator messages are the synthesized answers
// returned to the user; specialist chatter stays inside task results.
const (
	RoleUser         MessageRole = "user"
	RoleOrchestrator MessageRole = "orchestrator"
	RoleSpecialist   MessageRole = "specialist"
)

// ChatMessage is a row in the chat_history table.
type ChatMessage struct {
	ID        int64       `json:"id"`
	SessionID string      `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}
