package agent

import (
	"regexp"
	"strings"
)

// Response marker handling. Specialist replies carry three kinds of signal
// besides prose: an explicit pass, a web search request addressed to
// @WebSearcher, and leftover tool-calling syntax that must be stripped
// before the reply counts as a contribution.

var (
	// Matches "@WebSearcher! Search for X", "@WebSearcher, search X" and
	// similar phrasings. The query runs to the first quote, period, or
	// newline.
	searchRequestRe = regexp.MustCompile(`(?i)@WebSearcher[!,.]?\s*[Ss]earch\s+(?:for\s+)?["']?([^"'.\n]+)["']?`)

	// Tool-calling tags and their trailing content.
	toolTagContentRe = regexp.MustCompile(`<\|[^|]*\|>[^<]*`)
	toolTagRe        = regexp.MustCompile(`<\|[^|]*\|>`)
	blankRunsRe      = regexp.MustCompile(`\n\s*\n\s*\n+`)

	passRe = regexp.MustCompile(`(?i)^\s*\[?\s*PASS`)
)

// IsPass reports whether a reply is an explicit pass. Only the leading
// marker counts; "PASS" mentioned mid-text is prose.
func IsPass(response string) bool {
	return passRe.MatchString(response)
}

// ParseSearchRequest extracts a web search query from a reply. The second
// return value is false when the reply contains no search request.
func ParseSearchRequest(response string) (string, bool) {
	m := searchRequestRe.FindStringSubmatch(response)
	if m == nil {
		return "", false
	}
	query := strings.TrimSpace(m[1])
	if query == "" {
		return "", false
	}
	return query, true
}

// CleanResponse strips tool-calling syntax and collapses the leftover blank
// runs. The second return value is false when nothing substantive remains;
// such replies count as passes.
func CleanResponse(response string) (string, bool) {
	text := toolTagContentRe.ReplaceAllString(response, "")
	text = toolTagRe.ReplaceAllString(text, "")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	if len(text) < 10 {
		return "", false
	}
	return text, true
}
