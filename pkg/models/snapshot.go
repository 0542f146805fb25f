package models

import "encoding/json"

// AgentState is the live status of one agent during a discussion.
type AgentState string

// Agent state constants published in every snapshot.
const (
	AgentIdle         AgentState = "idle"
	AgentThinking     AgentState = "thinking"
	AgentContributing AgentState = "contributing"
	AgentWaiting      AgentState = "waiting"
	AgentSearching    AgentState = "searching"
)

// Contribution is one message appended to the shared discussion.
// Hidden contributions (search results, waiting notices) occupy positions in
// the transcript and are visible to agents, but are suppressed from
// user-facing output and excluded from contribution totals.
type Contribution struct {
	Agent           string  `json:"agent"`
	Content         string  `json:"content"`
	Timestamp       float64 `json:"ts"`
	ContributionNum int     `json:"contribution_num"`
	Hidden          bool    `json:"hidden"`
}

// WebSearchEvent records one web-search request for observability.
type WebSearchEvent struct {
	Agent     string  `json:"agent"`
	Query     string  `json:"query"`
	Timestamp float64 `json:"ts"`
}

// Snapshot is the in-progress result document written to the task result
// column after every observable state change. External live viewers poll or
// LISTEN for these; the field set is a stable wire contract.
type Snapshot struct {
	Status          string                `json:"status"`
	Task            string                `json:"task"`
	Contributions   []Contribution        `json:"contributions"`
	RollingSummary  string                `json:"rolling_summary"`
	AgentStatus     map[string]AgentState `json:"agent_status"`
	WebSearchEvents []WebSearchEvent      `json:"web_search_events"`
}

// Encode serializes the snapshot; the result column only ever holds
// well-formed JSON.
func (s Snapshot) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FinalResult is the terminal result document stored when a discussion
// completes. TotalContributions counts non-hidden contributions only.
type FinalResult struct {
	Task               string         `json:"task"`
	Context            string         `json:"context"`
	TotalContributions int            `json:"total_contributions"`
	Contributions      []Contribution `json:"contributions"`
	RollingSummary     string         `json:"rolling_summary"`
	Summary            string         `json:"summary"`
	Statistics         Statistics     `json:"statistics"`
}

// Encode serializes the final result document.
func (r FinalResult) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ErrorResult is stored in the result column when a run fails.
type ErrorResult struct {
	Error string `json:"error"`
}

// Encode serializes the error document.
func (r ErrorResult) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Statistics summarizes a completed discussion.
type Statistics struct {
	DurationSeconds            float64            `json:"duration_seconds"`
	TotalMessages              int                `json:"total_messages"`
	ContributionsPerAgent      map[string]int     `json:"contributions_per_agent"`
	PassesPerAgent             map[string]int     `json:"passes_per_agent"`
	WebSearchesTotal           int                `json:"web_searches_total"`
	WebSearchesByAgent         map[string]int     `json:"web_searches_by_agent"`
	AverageResponseTimeSeconds map[string]float64 `json:"average_response_time_seconds"`
	PeakConcurrentThinking     int                `json:"peak_concurrent_thinking"`
}
