package agent

import (
	"fmt"
	"strings"

	"github.com/jechocarlos/queenbee/pkg/models"
)

// FormatDiscussion renders the discussion history for specialist prompts.
// Hidden contributions (search results, waiting notices) are included; they
// are hidden from end users, not from agents.
func FormatDiscussion(contributions []models.Contribution) string {
	if len(contributions) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range contributions {
		fmt.Fprintf(&b, "--- Contribution %d ---\n", i+1)
		fmt.Fprintf(&b, "Agent: %s (contribution #%d)\n", c.Agent, c.ContributionNum)
		fmt.Fprintf(&b, "Content: %s\n\n", c.Content)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// roleBrief holds the per-role section of the deliberation prompt.
type roleBrief struct {
	identity    string
	analysis    string
	passWhen    string
	contribute  string
	searchHints string
	closing     string
}

var roleBriefs = map[Role]roleBrief{
	RoleDivergent: {
		identity: "You are the Divergent thinker. Your role is to explore diverse perspectives.",
		analysis: `1. Read through all existing contributions
2. Identify what perspectives, angles, and ideas are already covered
3. Ask yourself: "What NEW perspective can I add that hasn't been mentioned?"`,
		passWhen: `- The question has been thoroughly explored from multiple angles
- You would just be repeating what others already said
- No new perspectives come to mind`,
		contribute: `- A completely NEW perspective or angle not yet mentioned
- A challenge to assumptions no one else has raised
- A different way of thinking about the problem
- An unexplored aspect or dimension`,
		searchHints: `- If the question involves current events, recent data, specific facts, benchmarks, or real-world examples, ALWAYS request a web search FIRST
- Don't rely on your training data for factual claims - get real sources
- Examples: latest pricing, current statistics, recent developments, specific company info, technical benchmarks`,
		closing: "Be specific and concrete. Add genuine value, not repetition.",
	},
	RoleConvergent: {
		identity: "You are the Convergent synthesizer. Your role is to find patterns and create actionable recommendations.",
		analysis: `1. Review all existing contributions thoroughly
2. Check what syntheses, patterns, or recommendations already exist
3. Ask yourself: "What NEW synthesis or refinement can I provide?"`,
		passWhen: `- A clear synthesis has already been provided
- The recommendations are already well-defined
- You would just be restating existing conclusions`,
		contribute: `- A NEW synthesis that builds on recent contributions
- Additional patterns or connections not yet highlighted
- Refined or prioritized recommendations based on new information
- Clearer action items or implementation guidance`,
		searchHints: `- If your synthesis requires current data, pricing, performance metrics, or specific real-world examples, ALWAYS request a web search FIRST
- Don't make recommendations based on outdated training data - get real sources
- Examples: current best practices, actual costs, real performance data, existing solutions`,
		closing: "Be specific about what you're adding beyond what's already been said.",
	},
	RoleCritical: {
		identity: "You are the Critical validator. Your role is to identify risks, flaws, and validate solutions.",
		analysis: `1. Review all existing contributions and concerns raised
2. Check what risks, issues, and validations have been mentioned
3. Ask yourself: "What NEW concern or validation can I provide?"`,
		passWhen: `- Major risks and concerns have been thoroughly identified
- Proposed solutions have been adequately validated
- You would just be repeating existing critiques`,
		contribute: `- A NEW risk, concern, or edge case not yet mentioned
- Validation of recently proposed solutions
- A logical inconsistency or flaw others missed
- Important safeguards or considerations overlooked`,
		searchHints: `- If you need to validate claims with real data, check for known issues, or verify technical details, ALWAYS request a web search FIRST
- Don't assume risks based on outdated knowledge - check current information
- Examples: known security vulnerabilities, actual failure cases, documented limitations, compatibility issues`,
		closing: "Be specific about the new concern or validation you're adding.",
	},
	RolePragmatist: {
		identity: "You are the Pragmatist. Your role is to ground discussions in practical reality and implementation feasibility.",
		analysis: `1. Review all proposed solutions and approaches
2. Check what feasibility concerns have been raised
3. Ask yourself: "What NEW practical constraint or reality check can I provide?"`,
		passWhen: `- Practical constraints have been thoroughly covered
- Feasibility has been adequately addressed
- You would just be repeating existing reality checks`,
		contribute: `- NEW practical constraints (time, resources, skills, budget)
- Realistic assessment of what's actually buildable
- Incremental or "good enough" alternatives
- Resource or timeline reality checks`,
		searchHints: `- If you need data on implementation timelines, resource requirements, or real-world feasibility, ALWAYS request a web search FIRST
- Don't guess about costs or timelines - get actual data
- Examples: typical implementation times, resource requirements, real project costs, case studies`,
		closing: "Focus on practical constraints and what's actually achievable.",
	},
	RoleUserProxy: {
		identity: "You are the UserProxy. Your role is to represent the end-user perspective and ensure solutions serve actual user needs.",
		analysis: `1. Review all proposed solutions and technical approaches
2. Check what user-focused concerns have been raised
3. Ask yourself: "What NEW user perspective can I provide?"`,
		passWhen: `- User needs and experience have been thoroughly considered
- User impact has been adequately addressed
- You would just be repeating existing user advocacy`,
		contribute: `- NEW user needs or pain points not yet mentioned
- User experience concerns overlooked by technical discussion
- Challenge to technical complexity that doesn't serve users
- Accessibility or usability concerns`,
		searchHints: `- If you need data on user behavior, feedback, or usability research, ALWAYS request a web search FIRST
- Don't assume what users want - get real user data
- Examples: user research, surveys, common complaints, usability studies, accessibility standards`,
		closing: "Focus on user needs and whether solutions serve actual users.",
	},
	RoleQuantifier: {
		identity: "You are the Quantifier. Your role is to ground discussions in concrete numbers, metrics, and measurable outcomes.",
		analysis: `1. Review all discussions for vague qualitative claims
2. Check what metrics and numbers have been defined
3. Ask yourself: "What NEW quantitative perspective can I provide?"`,
		passWhen: `- Concrete metrics and numbers have been thoroughly defined
- Success criteria with thresholds already established
- You would just be repeating existing quantitative analysis`,
		contribute: `- NEW specific metrics or measurable criteria not yet defined
- Challenge vague terms ("faster," "better," "scalable") with "how much?"
- Concrete success thresholds and acceptance criteria
- Performance benchmarks or industry standards`,
		searchHints: `- If you need actual benchmarks, costs, performance data, or industry metrics, ALWAYS request a web search FIRST
- Don't estimate or guess numbers - get real data
- Examples: performance benchmarks, pricing comparisons, industry standards, typical metrics`,
		closing: "Demand specific numbers and define concrete metrics.",
	},
}

// BuildDeliberationPrompt builds a specialist's turn prompt: the question,
// accumulated context, the discussion so far, and the role's brief with pass
// and web-search instructions.
func BuildDeliberationPrompt(role Role, userInput, context string, contributions []models.Contribution, maxTokens int) string {
	brief, ok := roleBriefs[role]
	if !ok {
		return ""
	}

	discussionText := FormatDiscussion(contributions)
	if discussionText == "" {
		discussionText = "No discussion yet - you'll be the first to contribute."
	}

	contextBlock := ""
	if context != "" {
		contextBlock = context + "\n"
	}

	tokenInstruction := "Keep it concise"
	if maxTokens > 0 {
		tokenInstruction = fmt.Sprintf("Maximum %d tokens", maxTokens)
	}

	return fmt.Sprintf(`Original question: %s

%sDiscussion so far:
%s

%s

CRITICAL: Before responding, carefully analyze what has ALREADY been said:
%s

Respond with [PASS] if:
%s

Only contribute if you can add:
%s

IMPORTANT - WEB SEARCH FIRST:
%s
- Request search naturally: "Hey @WebSearcher! Search for [your query]"
- After getting search results, you can then contribute your perspective based on actual data

KEEP IT BRIEF: %s. %s`,
		userInput, contextBlock, discussionText,
		brief.identity, brief.analysis, brief.passWhen, brief.contribute,
		brief.searchHints, tokenInstruction, brief.closing)
}
