package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPass(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"bracketed", "[PASS]", true},
		{"bracketed with reason", "[PASS] - nothing to add", true},
		{"bare", "PASS", true},
		{"lowercase", "pass", true},
		{"leading whitespace", "  \n [pass]", true},
		{"bracket then spaces", "[ PASS ]", true},
		{"mid-text mention", "I will not PASS on this one", false},
		{"contribution", "We should consider sharding.", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPass(tt.response))
		})
	}
}

func TestParseSearchRequest(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantQuery string
		wantOK    bool
	}{
		{
			name:      "natural phrasing",
			response:  "Hey @WebSearcher! Search for PostgreSQL 17 performance benchmarks",
			wantQuery: "PostgreSQL 17 performance benchmarks",
			wantOK:    true,
		},
		{
			name:      "comma and lowercase",
			response:  "@WebSearcher, search current React market share",
			wantQuery: "current React market share",
			wantOK:    true,
		},
		{
			name:      "quoted query",
			response:  `@WebSearcher search for "kafka vs rabbitmq throughput"`,
			wantQuery: "kafka vs rabbitmq throughput",
			wantOK:    true,
		},
		{
			name:      "query stops at period",
			response:  "Before I answer: @WebSearcher! Search for typical SaaS churn rates. Then I'll weigh in.",
			wantQuery: "typical SaaS churn rates",
			wantOK:    true,
		},
		{
			name:     "no request",
			response: "The WebSearcher already covered this.",
			wantOK:   false,
		},
		{
			name:     "mention without search verb",
			response: "Thanks @WebSearcher for the results.",
			wantOK:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, ok := ParseSearchRequest(tt.response)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantQuery, query)
			}
		})
	}
}

func TestCleanResponse(t *testing.T) {
	t.Run("strips tool tags and trailing content", func(t *testing.T) {
		in := "Here is my actual point about caching layers.\n<|tool_call|>fetch(x)"
		out, ok := CleanResponse(in)
		assert.True(t, ok)
		assert.Equal(t, "Here is my actual point about caching layers.", out)
	})

	t.Run("strips standalone tags", func(t *testing.T) {
		in := "A solid contribution with real substance here.<|end|>"
		out, ok := CleanResponse(in)
		assert.True(t, ok)
		assert.Equal(t, "A solid contribution with real substance here.", out)
	})

	t.Run("collapses blank runs", func(t *testing.T) {
		in := "First paragraph of the answer.\n\n\n\nSecond paragraph of the answer."
		out, ok := CleanResponse(in)
		assert.True(t, ok)
		assert.Equal(t, "First paragraph of the answer.\n\nSecond paragraph of the answer.", out)
	})

	t.Run("all tool syntax counts as pass", func(t *testing.T) {
		_, ok := CleanResponse("<|tool_call|>search(query)")
		assert.False(t, ok)
	})

	t.Run("under ten chars counts as pass", func(t *testing.T) {
		_, ok := CleanResponse("ok")
		assert.False(t, ok)
	})
}
