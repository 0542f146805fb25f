package config

import "time"

// Built-in defaults. YAML values override these through the loader's merge.

// DefaultConsensusConfig returns the built-in discussion defaults.
func DefaultConsensusConfig() *ConsensusConfig {
	return &ConsensusConfig{
		DiscussionRounds:         3,
		SpecialistTimeoutSeconds: 300,
		SummaryIntervalSeconds:   10,
	}
}

// DefaultOpenRouterConfig returns the built-in provider defaults.
// RequestsPerMinute matches the OpenRouter free tier.
func DefaultOpenRouterConfig() *OpenRouterConfig {
	return &OpenRouterConfig{
		Model:             "anthropic/claude-3.5-sonnet",
		BaseURL:           "https://openrouter.ai/api/v1",
		TimeoutSeconds:    120,
		RequestsPerMinute: 16,
		MaxRetries:        3,
		RetryDelaySeconds: 5,
	}
}

// DefaultOrchestratorConfig returns the built-in question-flow defaults.
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		SimpleMaxTokens:     100,
		ComplexMaxTokens:    8000,
		ClassifierMaxTokens: 10,
		HistoryLimit:        10,
	}
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		SessionRetentionDays:   30,
		TaskRetentionDays:      7,
		CleanupIntervalMinutes: 60,
	}
}

// DefaultQueueConfig returns the built-in session worker defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		PollInterval:  2 * time.Second,
		ErrorBackoff:  5 * time.Second,
		ShutdownGrace: 5 * time.Second,
	}
}

// DefaultEngineConfig returns the built-in discussion engine timing.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		TickInterval:       2 * time.Second,
		MonitorInterval:    1 * time.Second,
		IdleDwellSamples:   15,
		HardCapPerRound:    10 * time.Second,
		JoinTimeout:        5 * time.Second,
		SummaryJoinTimeout: 3 * time.Second,
	}
}

// DefaultSystemConfig returns the built-in system identity.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		Name:        "queenbee",
		Environment: "development",
	}
}
