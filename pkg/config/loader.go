package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// queenbeeYAML mirrors the queenbee.yaml file structure. All sections are
// optional; built-in defaults fill the gaps.
type queenbeeYAML struct {
	System       *SystemConfig          `yaml:"system"`
	Consensus    *ConsensusConfig       `yaml:"consensus"`
	OpenRouter   *OpenRouterConfig      `yaml:"openrouter"`
	Orchestrator *OrchestratorConfig    `yaml:"orchestrator"`
	Retention    *RetentionConfig       `yaml:"retention"`
	Agents       map[string]AgentConfig `yaml:"agents"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read queenbee.yaml from configDir
//  2. Expand environment variables
//  3. Merge user values over built-in defaults
//  4. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"agents", len(cfg.Agents),
		"model", cfg.OpenRouter.Model,
		"discussion_rounds", cfg.Consensus.DiscussionRounds)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	raw := queenbeeYAML{
		Agents: make(map[string]AgentConfig),
	}
	if err := loadYAML(configDir, "queenbee.yaml", &raw); err != nil {
		return nil, NewLoadError("queenbee.yaml", err)
	}

	// Start with built-in defaults, then merge user values on top so unset
	// fields keep their defaults.
	system := DefaultSystemConfig()
	consensus := DefaultConsensusConfig()
	openrouter := DefaultOpenRouterConfig()
	orchestrator := DefaultOrchestratorConfig()
	retention := DefaultRetentionConfig()

	if raw.System != nil {
		if err := mergo.Merge(system, raw.System, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge system config: %w", err)
		}
	}
	if raw.Consensus != nil {
		if err := mergo.Merge(consensus, raw.Consensus, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge consensus config: %w", err)
		}
	}
	if raw.OpenRouter != nil {
		if err := mergo.Merge(openrouter, raw.OpenRouter, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge openrouter config: %w", err)
		}
	}
	if raw.Orchestrator != nil {
		if err := mergo.Merge(orchestrator, raw.Orchestrator, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge orchestrator config: %w", err)
		}
	}
	if raw.Retention != nil {
		if err := mergo.Merge(retention, raw.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	return &Config{
		configDir:    configDir,
		System:       system,
		Consensus:    consensus,
		OpenRouter:   openrouter,
		Orchestrator: orchestrator,
		Retention:    retention,
		Agents:       raw.Agents,
		Queue:        DefaultQueueConfig(),
		Engine:       DefaultEngineConfig(),
	}, nil
}

func loadYAML(configDir, filename string, target any) error {
	path := filepath.Join(configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Consensus.DiscussionRounds < 1 {
		return &ValidationError{Field: "consensus.discussion_rounds", Message: "must be >= 1"}
	}
	if cfg.Consensus.SummaryIntervalSeconds < 1 {
		return &ValidationError{Field: "consensus.summary_interval_seconds", Message: "must be >= 1"}
	}
	if cfg.Consensus.SpecialistTimeoutSeconds < 1 {
		return &ValidationError{Field: "consensus.specialist_timeout_seconds", Message: "must be >= 1"}
	}
	if cfg.OpenRouter.RequestsPerMinute < 1 {
		return &ValidationError{Field: "openrouter.requests_per_minute", Message: "must be >= 1"}
	}
	if cfg.OpenRouter.MaxRetries < 1 {
		return &ValidationError{Field: "openrouter.max_retries", Message: "must be >= 1"}
	}
	if cfg.Orchestrator.SimpleMaxTokens < 1 {
		return &ValidationError{Field: "orchestrator.simple_max_tokens", Message: "must be >= 1"}
	}
	if cfg.Orchestrator.ComplexMaxTokens < 1 {
		return &ValidationError{Field: "orchestrator.complex_max_tokens", Message: "must be >= 1"}
	}
	if cfg.Orchestrator.HistoryLimit < 1 {
		return &ValidationError{Field: "orchestrator.history_limit", Message: "must be >= 1"}
	}
	if cfg.Retention.SessionRetentionDays < 1 {
		return &ValidationError{Field: "retention.session_retention_days", Message: "must be >= 1"}
	}
	if cfg.Retention.TaskRetentionDays < 1 {
		return &ValidationError{Field: "retention.task_retention_days", Message: "must be >= 1"}
	}
	if cfg.Retention.CleanupIntervalMinutes < 1 {
		return &ValidationError{Field: "retention.cleanup_interval_minutes", Message: "must be >= 1"}
	}
	for role, ac := range cfg.Agents {
		if ac.MaxTokens < 0 {
			return &ValidationError{Field: "agents." + role + ".max_tokens", Message: "must be >= 0"}
		}
	}
	return nil
}
