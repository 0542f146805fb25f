// Package models defines the persistent and wire-level types shared across
// the queenbee services: tasks, chat history, and discussion snapshots.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a deliberation task.
type TaskStatus string

// Task status constants. Valid transitions are
// PENDING → IN_PROGRESS → {COMPLETED, FAILED}; nothing else.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ValidTransition reports whether a task may move from s to next.
func (s TaskStatus) ValidTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusInProgress
	case TaskStatusInProgress:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// TaskRecord is a row in the tasks table. The description carries a JSON
// TaskDescription payload; result holds the latest discussion snapshot and,
// after termination, the final result document.
type TaskRecord struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Status      TaskStatus `json:"status"`
	Description string     `json:"description"`
	Result      string     `json:"result"`
	AssignedBy  string     `json:"assigned_by"`
	AssignedTo  []string   `json:"assigned_to"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DefaultMaxRounds is the termination budget applied when a task description
// does not specify one.
const DefaultMaxRounds = 3

// TaskDescription is the JSON payload stored in TaskRecord.Description.
type TaskDescription struct {
	Type      string `json:"type,omitempty"`
	Input     string `json:"input"`
	Context   string `json:"context,omitempty"`
	MaxRounds int    `json:"max_rounds,omitempty"`
}

// ParseTaskDescription decodes a task description. Descriptions that are not
// valid JSON are treated as a bare user question, matching how tasks created
// by external tools are handled.
func ParseTaskDescription(raw string) TaskDescription {
	var desc TaskDescription
	if err := json.Unmarshal([]byte(raw), &desc); err != nil || strings.TrimSpace(desc.Input) == "" {
		desc = TaskDescription{Input: raw}
	}
	if desc.MaxRounds < 1 {
		desc.MaxRounds = DefaultMaxRounds
	}
	return desc
}

// Encode serializes the description for storage.
func (d TaskDescription) Encode() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
