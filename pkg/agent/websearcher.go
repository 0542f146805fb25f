package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jechocarlos/queenbee/pkg/llm"
)

// WebSearcher serves search requests from deliberating specialists. It
// relies on a search-capable upstream model; the prompt instructs the model
// to ground its answer in live results.
type WebSearcher struct {
	model  llm.LanguageModel
	system string
}

func NewWebSearcher(model llm.LanguageModel, system string) *WebSearcher {
	return &WebSearcher{model: model, system: system}
}

// Search runs one query on behalf of a requesting specialist. Failures are
// returned as the result text so the discussion keeps moving; a failed
// search never fails the deliberation.
func (w *WebSearcher) Search(ctx context.Context, query, requestingAgent string) string {
	log := slog.With("requesting_agent", requestingAgent)
	log.Info("Performing web search", "query", query)

	prompt := fmt.Sprintf(`Perform a web search to answer the following query:

%s

Instructions:
- Use your web search capability to find current, accurate information
- Provide factual results with sources when possible
- Keep the response focused and relevant to the query
- If multiple sources have different information, note the differences
- If information is not found, clearly state that

Search results:`, query)

	result, err := w.model.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		System:      w.system,
		Temperature: 0.3,
	})
	if err != nil {
		log.Error("Web search failed", "error", err)
		return fmt.Sprintf("Web search failed: %v", err)
	}

	log.Info("Web search completed")
	return result
}
