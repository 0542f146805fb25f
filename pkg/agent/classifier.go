package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jechocarlos/queenbee/pkg/llm"
)

const classifierPrompt = `Your job is to classify this user question as SIMPLE or COMPLEX.

User Question: %q

Classification Rules:

SIMPLE = Direct factual answer exists, no discussion needed
Examples:
- "what is 2+2?" → SIMPLE (basic math)
- "what's the capital of France?" → SIMPLE (factual lookup)
- "who created Python?" → SIMPLE (factual)
- "define recursion" → SIMPLE (definition)
- "what does REST stand for?" → SIMPLE (acronym)

COMPLEX = Requires analysis, trade-offs, multiple perspectives, or subjective judgment
Examples:
- "should I use microservices or monolith?" → COMPLEX (needs analysis)
- "what are the best practices for X?" → COMPLEX (needs discussion)
- "how do I design a scalable system?" → COMPLEX (needs architecture discussion)
- "compare React vs Vue" → COMPLEX (needs multiple perspectives)
- "analyze this approach" → COMPLEX (needs critical thinking)

Answer with EXACTLY ONE WORD: SIMPLE or COMPLEX

Your classification:`

// Classifier routes questions between the direct-answer path and the full
// deliberation path.
type Classifier struct {
	model     llm.LanguageModel
	system    string
	maxTokens int
}

// NewClassifier builds a classifier. system may be empty; maxTokens <= 0
// falls back to a small default since one word is expected.
func NewClassifier(model llm.LanguageModel, system string, maxTokens int) *Classifier {
	if maxTokens <= 0 {
		maxTokens = 10
	}
	return &Classifier{model: model, system: system, maxTokens: maxTokens}
}

// Classify reports whether the question needs specialist deliberation.
// Classification errors default to complex so the specialists handle
// anything uncertain.
func (c *Classifier) Classify(ctx context.Context, userInput string) bool {
	prompt := fmt.Sprintf(classifierPrompt, userInput)
	prompt += fmt.Sprintf("\n\n**Token Limit**: Keep your response to approximately %d tokens maximum.", c.maxTokens)

	response, err := c.model.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		System:      c.system,
		Temperature: 0.0,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		slog.Warn("Classification failed, defaulting to complex", "error", err)
		return true
	}

	decision := strings.ToUpper(strings.TrimSpace(response))
	isComplex := strings.Contains(decision, "COMPLEX")
	slog.Info("Classified question", "decision", decision, "is_complex", isComplex)
	return isComplex
}
