package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queenbee.yaml"), []byte(content), 0o644))
	return dir
}

func TestInitializeAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, "system:\n  name: queenbee\n")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Consensus.DiscussionRounds)
	assert.Equal(t, 300, cfg.Consensus.SpecialistTimeoutSeconds)
	assert.Equal(t, 10, cfg.Consensus.SummaryIntervalSeconds)
	assert.Equal(t, 16, cfg.OpenRouter.RequestsPerMinute)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouter.BaseURL)
	assert.NotNil(t, cfg.Queue)
	assert.NotNil(t, cfg.Engine)
	assert.Equal(t, 15, cfg.Engine.IdleDwellSamples)
}

func TestInitializeUserValuesOverrideDefaults(t *testing.T) {
	dir := writeConfig(t, `
consensus:
  discussion_rounds: 5
  summary_interval_seconds: 2
openrouter:
  model: openai/gpt-4o-mini
  requests_per_minute: 60
agents:
  Divergent:
    max_tokens: 200
    max_iterations: 3
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Consensus.DiscussionRounds)
	assert.Equal(t, 2, cfg.Consensus.SummaryIntervalSeconds)
	// Unset fields keep defaults.
	assert.Equal(t, 300, cfg.Consensus.SpecialistTimeoutSeconds)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.OpenRouter.Model)
	assert.Equal(t, 60, cfg.OpenRouter.RequestsPerMinute)
	assert.Equal(t, 200, cfg.AgentConfig("Divergent").MaxTokens)
	// Unknown roles resolve to the zero value.
	assert.Equal(t, 0, cfg.AgentConfig("Nonexistent").MaxTokens)
}

func TestInitializeExpandsEnvironment(t *testing.T) {
	t.Setenv("QB_LOADER_TEST_KEY", "sk-or-test")
	dir := writeConfig(t, "openrouter:\n  api_key: \"{{.QB_LOADER_TEST_KEY}}\"\n")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-or-test", cfg.OpenRouter.APIKey)
}

func TestInitializeMissingFile(t *testing.T) {
	_, err := Initialize(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestInitializeInvalidYAML(t *testing.T) {
	dir := writeConfig(t, "consensus: [not: a: map\n")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitializeRejectsInvalidValues(t *testing.T) {
	dir := writeConfig(t, "consensus:\n  discussion_rounds: -1\n")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "consensus.discussion_rounds", verr.Field)
}

func TestSystemPromptReadsRelativeFile(t *testing.T) {
	dir := writeConfig(t, `
agents:
  Critical:
    system_prompt_file: prompts/critical.txt
`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "prompts", "critical.txt"),
		[]byte("You validate ideas and identify risks."), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	prompt, err := cfg.SystemPrompt("Critical")
	require.NoError(t, err)
	assert.Equal(t, "You validate ideas and identify risks.", prompt)

	// Roles without a prompt file get an empty prompt, not an error.
	prompt, err = cfg.SystemPrompt("Divergent")
	require.NoError(t, err)
	assert.Empty(t, prompt)
}
