// Package config loads and validates queenbee configuration from YAML files
// with environment variable expansion.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the fully resolved configuration used by the rest of the system.
type Config struct {
	configDir string

	System       *SystemConfig
	Consensus    *ConsensusConfig
	OpenRouter   *OpenRouterConfig
	Orchestrator *OrchestratorConfig
	Retention    *RetentionConfig
	Agents       map[string]AgentConfig
	Queue        *QueueConfig
	Engine       *EngineConfig
}

// OrchestratorConfig controls the session-facing question flow: routing,
// token budgets for direct answers, and how much chat history feeds the
// conversation context.
type OrchestratorConfig struct {
	// SimpleMaxTokens caps direct answers to simple questions.
	SimpleMaxTokens int `yaml:"simple_max_tokens"`

	// ComplexMaxTokens caps the final response synthesized from a
	// deliberation result.
	ComplexMaxTokens int `yaml:"complex_max_tokens"`

	// ClassifierMaxTokens caps the routing decision output.
	ClassifierMaxTokens int `yaml:"classifier_max_tokens"`

	// HistoryLimit is how many recent chat messages feed the conversation
	// context block.
	HistoryLimit int `yaml:"history_limit"`
}

// RetentionConfig controls how long finished data is kept before the
// background sweeper removes it.
type RetentionConfig struct {
	// SessionRetentionDays is how long terminated sessions are kept. Deleting
	// a session also removes its tasks and chat history.
	SessionRetentionDays int `yaml:"session_retention_days"`

	// TaskRetentionDays is how long completed and failed tasks are kept
	// inside still-living sessions.
	TaskRetentionDays int `yaml:"task_retention_days"`

	// CleanupIntervalMinutes is the sweep cadence.
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
}

// CleanupInterval returns the sweep cadence as a duration.
func (c *RetentionConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// SystemConfig groups system-wide settings.
type SystemConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// ConsensusConfig controls discussion sizing and cadence.
type ConsensusConfig struct {
	// DiscussionRounds feeds the engine's hard wall-clock cap:
	// hard_cap_seconds = discussion_rounds * 10.
	DiscussionRounds int `yaml:"discussion_rounds"`

	// SpecialistTimeoutSeconds is the outer wall-clock cap observers use when
	// awaiting task completion.
	SpecialistTimeoutSeconds int `yaml:"specialist_timeout_seconds"`

	// SummaryIntervalSeconds is the rolling-summary cadence.
	SummaryIntervalSeconds int `yaml:"summary_interval_seconds"`
}

// SummaryInterval returns the rolling-summary cadence as a duration.
func (c *ConsensusConfig) SummaryInterval() time.Duration {
	return time.Duration(c.SummaryIntervalSeconds) * time.Second
}

// OpenRouterConfig holds provider connection and rate-limit settings.
type OpenRouterConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	// RequestsPerMinute sizes the token bucket in the rate-limit coordinator.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	MaxRetries        int `yaml:"max_retries"`
	RetryDelaySeconds int `yaml:"retry_delay"`
}

// Timeout returns the per-request timeout as a duration.
func (c *OpenRouterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base retry delay as a duration.
func (c *OpenRouterConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// AgentConfig holds per-role settings from YAML. Role temperature and
// relevance keywords are code-level properties of the role itself, not
// configuration.
type AgentConfig struct {
	// SystemPromptFile is a path relative to the config directory.
	SystemPromptFile string `yaml:"system_prompt_file"`

	// MaxTokens caps generated tokens for this role; 0 means provider default.
	MaxTokens int `yaml:"max_tokens"`

	// MaxIterations is an advisory per-role contribution ceiling. The
	// admission policy enforces its own hard cap of three regardless.
	MaxIterations int `yaml:"max_iterations"`
}

// AgentConfig returns the configuration for a role, or a zero value when the
// role is not configured.
func (c *Config) AgentConfig(role string) AgentConfig {
	if c.Agents == nil {
		return AgentConfig{}
	}
	return c.Agents[role]
}

// SystemPrompt reads the system prompt text for a role. Roles without a
// configured prompt file get an empty prompt.
func (c *Config) SystemPrompt(role string) (string, error) {
	ac := c.AgentConfig(role)
	if ac.SystemPromptFile == "" {
		return "", nil
	}
	path := ac.SystemPromptFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.configDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// QueueConfig controls session worker polling and shutdown behavior.
// These are code-level defaults, overridable by embedders and tests.
type QueueConfig struct {
	// PollInterval is how often a session worker checks for pending tasks.
	PollInterval time.Duration

	// ErrorBackoff is the pause after an engine failure before the next poll.
	ErrorBackoff time.Duration

	// ShutdownGrace is how long Stop waits for a worker to finish its
	// current task before abandoning it.
	ShutdownGrace time.Duration
}

// EngineConfig controls discussion engine timing. Production values follow
// the discussion protocol; tests shrink them to keep runs fast.
type EngineConfig struct {
	// TickInterval is the pause between agent loop iterations.
	TickInterval time.Duration

	// MonitorInterval is the termination detector sampling cadence.
	MonitorInterval time.Duration

	// IdleDwellSamples is how many consecutive all-idle samples end the
	// discussion.
	IdleDwellSamples int

	// HardCapPerRound converts the task's max_rounds budget into a
	// wall-clock cap: max_rounds * HardCapPerRound.
	HardCapPerRound time.Duration

	// JoinTimeout bounds the per-worker wait after the stop signal; workers
	// still running afterwards are abandoned.
	JoinTimeout time.Duration

	// SummaryJoinTimeout bounds the wait for the summary loop to exit.
	SummaryJoinTimeout time.Duration
}
