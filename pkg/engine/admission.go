package engine

import (
	"github.com/jechocarlos/queenbee/pkg/agent"
	"github.com/jechocarlos/queenbee/pkg/models"
)

// Admission thresholds. The policy front-loads breadth (core roles first),
// then throttles repeat contributors, then closes the discussion down as the
// transcript grows.
const (
	perAgentContributionCap = 3
	earlyPhaseLimit         = 6
	latePhaseLimit          = 12
	recencyWindow           = 3
)

// shouldContribute decides whether a deliberator may take a turn. It
// operates on the visible transcript only; search results and waiting
// notices never count toward discussion size or recency.
func shouldContribute(d *agent.Descriptor, visible []models.Contribution, question string, contributed int) bool {
	if d == nil {
		return false
	}
	name := string(d.Role)

	// First contribution: always welcome while the discussion is tiny,
	// afterwards only when the agent's expertise matches the topic.
	if contributed == 0 {
		if len(visible) < 2 {
			return true
		}
		return expertiseRelevant(d, question, visible)
	}

	if len(visible) > 0 {
		// Never twice in a row.
		if visible[len(visible)-1].Agent == name {
			return false
		}
		// No more than one appearance in the last few turns.
		if len(visible) >= recencyWindow {
			recent := 0
			for _, c := range visible[len(visible)-recencyWindow:] {
				if c.Agent == name {
					recent++
				}
			}
			if recent >= 2 {
				return false
			}
		}
	}

	if contributed >= perAgentContributionCap {
		return false
	}

	if len(visible) < earlyPhaseLimit {
		return contributionNeeded(d, visible)
	}

	if len(visible) < latePhaseLimit {
		if contributed >= 2 {
			return false
		}
		return expertiseRelevant(d, question, visible)
	}

	return false
}

// expertiseRelevant reports whether the agent's keywords match the question
// or any of the last few visible contributions.
func expertiseRelevant(d *agent.Descriptor, question string, visible []models.Contribution) bool {
	if d.RelevantTo(question) {
		return true
	}
	start := len(visible) - recencyWindow
	if start < 0 {
		start = 0
	}
	for _, c := range visible[start:] {
		if d.RelevantTo(c.Content) {
			return true
		}
	}
	return false
}

// contributionNeeded governs the early phase: core roles take turns only
// while one of them is still missing from the discussion; support roles wait
// for the discussion to take shape and then get one turn each.
func contributionNeeded(d *agent.Descriptor, visible []models.Contribution) bool {
	if len(visible) == 0 {
		return true
	}

	spoken := make(map[string]bool, len(visible))
	for _, c := range visible {
		spoken[c.Agent] = true
	}

	if d.Core {
		for _, core := range agent.CoreRoles() {
			if !spoken[string(core)] {
				return true
			}
		}
		return false
	}

	if len(visible) < 2 {
		return false
	}
	return !spoken[string(d.Role)]
}
