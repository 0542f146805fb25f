// Package llm provides the language model abstraction consumed by the
// deliberation engine, a shared rate-limit coordinator, and the OpenRouter
// client implementation.
package llm

import "context"

// GenerateRequest describes one generation call.
type GenerateRequest struct {
	// Prompt is the user-turn content.
	Prompt string

	// System is the optional system prompt.
	System string

	// Temperature is the sampling temperature in [0, 2]. The engine treats
	// it as a determinism concept only and never assumes reproducibility.
	Temperature float64

	// MaxTokens caps generated tokens; 0 means provider default.
	MaxTokens int
}

// LanguageModel is the text generation capability. Implementations must be
// safe for concurrent use; the engine calls Generate from several agent
// goroutines at once.
//
// GenerateStream returns a lazy, single-pass chunk sequence whose
// concatenation equals the non-streaming output. The chunk channel is closed
// on completion; at most one error is delivered on the error channel.
// Streaming exists for end-user display; the deliberation loop itself
// always uses Generate.
type LanguageModel interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan string, <-chan error)
}
