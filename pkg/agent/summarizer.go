package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/jechocarlos/queenbee/pkg/llm"
	"github.com/jechocarlos/queenbee/pkg/models"
)

const (
	rollingSummarySystem = "You are a concise summarizer. Extract and synthesize key insights from expert discussions. Focus on the substance of what's being discussed, not meta-commentary about the discussion itself."

	finalSynthesisSystem = "You are an expert synthesizer. Create comprehensive yet concise summaries that capture the essence of multi-perspective discussions. Focus on insights, recommendations, and actionable conclusions."

	// NoDiscussion is the fixed synthesis for discussions that produced no
	// contributions. Consumers depend on the exact string.
	NoDiscussion = "No discussion occurred."
)

// Summarizer produces the rolling summary during a discussion and the final
// synthesis after it ends.
type Summarizer struct {
	model llm.LanguageModel
}

func NewSummarizer(model llm.LanguageModel) *Summarizer {
	return &Summarizer{model: model}
}

// RollingSummary condenses the discussion so far into a few sentences.
func (s *Summarizer) RollingSummary(ctx context.Context, userInput string, contributions []models.Contribution) (string, error) {
	if len(contributions) == 0 {
		return "No contributions yet.", nil
	}

	var lines []string
	for _, c := range contributions {
		lines = append(lines, fmt.Sprintf("**%s:** %s", c.Agent, c.Content))
	}

	prompt := fmt.Sprintf(`Question: %q

Here are the %d expert contributions made so far:

%s

Provide a BRIEF summary (2-3 sentences max) of the KEY INSIGHTS and MAIN POINTS that have emerged. Focus on WHAT the experts are saying about the question, not the discussion process.`,
		userInput, len(contributions), strings.Join(lines, "\n\n"))

	return s.model.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		System:      rollingSummarySystem,
		Temperature: 0.3,
	})
}

// FinalSynthesis produces the comprehensive answer from the complete
// discussion. An empty discussion yields NoDiscussion without a model call.
func (s *Summarizer) FinalSynthesis(ctx context.Context, userInput string, contributions []models.Contribution, rollingSummary string) (string, error) {
	if len(contributions) == 0 {
		return NoDiscussion, nil
	}

	var lines []string
	for i, c := range contributions {
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, c.Agent, c.Content))
	}

	rollingContext := ""
	if rollingSummary != "" {
		rollingContext = fmt.Sprintf("\nROLLING SUMMARY (generated during discussion):\n%s\n\n", rollingSummary)
	}

	prompt := fmt.Sprintf(`Question: %q

%sCOMPLETE DISCUSSION (%d contributions):
%s

Synthesize this discussion into a clear, comprehensive answer. Focus on:
1. The KEY INSIGHTS and RECOMMENDATIONS from the specialists
2. Any critical concerns or trade-offs identified
3. A direct, actionable answer to the user's question

Your response should focus on WHAT WAS DISCUSSED (the substance), not how the discussion proceeded.
Keep it concise: 4-5 sentences maximum.`,
		userInput, rollingContext, len(contributions), strings.Join(lines, "\n\n"))

	return s.model.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		System:      finalSynthesisSystem,
		Temperature: 0.4,
	})
}
