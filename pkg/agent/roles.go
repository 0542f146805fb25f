// Package agent defines the deliberation roles, their prompts, and the
// auxiliary agents (classifier, summarizer, web searcher) built on top of the
// shared language model.
package agent

import "strings"

// Role identifies a deliberating specialist.
type Role string

const (
	RoleDivergent  Role = "Divergent"
	RoleConvergent Role = "Convergent"
	RoleCritical   Role = "Critical"
	RolePragmatist Role = "Pragmatist"
	RoleUserProxy  Role = "UserProxy"
	RoleQuantifier Role = "Quantifier"

	// RoleWebSearcher is the arbitration agent. It never deliberates and is
	// excluded from admission and termination accounting.
	RoleWebSearcher Role = "WebSearcher"
)

// Descriptor is the static definition of one deliberating role.
type Descriptor struct {
	Role Role

	// Temperature for deliberation turns. Divergent runs hot for breadth,
	// Critical runs cold for consistency.
	Temperature float64

	// Core roles open the discussion; support roles wait for it to start.
	Core bool

	// Keywords whose presence in the question or recent discussion marks
	// this role's expertise as relevant.
	Keywords []string

	// TokenConfigRole names the agents config entry whose max_tokens limit
	// applies. Support roles borrow the Convergent budget.
	TokenConfigRole Role
}

// Roster is the fixed deliberation lineup, in spawn order.
var Roster = []Descriptor{
	{
		Role:        RoleDivergent,
		Temperature: 0.9,
		Core:        true,
		Keywords: []string{
			"options", "alternatives", "possibilities", "approaches",
			"ideas", "creative", "different ways", "what if",
		},
		TokenConfigRole: RoleDivergent,
	},
	{
		Role:        RoleConvergent,
		Temperature: 0.5,
		Core:        true,
		Keywords: []string{
			"decide", "choose", "recommend", "best", "solution",
			"action", "implement", "plan", "synthesis",
		},
		TokenConfigRole: RoleConvergent,
	},
	{
		Role:        RoleCritical,
		Temperature: 0.3,
		Core:        true,
		Keywords: []string{
			"risks", "problems", "concerns", "issues", "validate",
			"verify", "wrong", "fail", "security", "flaws",
		},
		TokenConfigRole: RoleCritical,
	},
	{
		Role:        RolePragmatist,
		Temperature: 0.5,
		Keywords: []string{
			"practical", "feasible", "implement", "resources",
			"cost", "timeline", "realistic", "constraints",
		},
		TokenConfigRole: RoleConvergent,
	},
	{
		Role:        RoleUserProxy,
		Temperature: 0.5,
		Keywords: []string{
			"user", "experience", "usability", "customer",
			"audience", "accessible", "interface", "ux",
		},
		TokenConfigRole: RoleConvergent,
	},
	{
		Role:        RoleQuantifier,
		Temperature: 0.5,
		Keywords: []string{
			"metrics", "numbers", "measure", "data",
			"performance", "benchmark", "statistics", "quantify",
		},
		TokenConfigRole: RoleConvergent,
	},
}

// Lookup returns the descriptor for a role, or nil for roles outside the
// deliberation roster.
func Lookup(role Role) *Descriptor {
	for i := range Roster {
		if Roster[i].Role == role {
			return &Roster[i]
		}
	}
	return nil
}

// RelevantTo reports whether any of the role's expertise keywords appear in
// the text. Matching is case-insensitive substring containment.
func (d *Descriptor) RelevantTo(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range d.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// CoreRoles returns the roles expected to open a discussion.
func CoreRoles() []Role {
	var roles []Role
	for _, d := range Roster {
		if d.Core {
			roles = append(roles, d.Role)
		}
	}
	return roles
}
