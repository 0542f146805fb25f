// Package engine runs collaborative deliberations: role-specialized agents
// contribute concurrently to a shared transcript under an admission policy,
// with a rolling summary, arbitrated web searches, and quiescence-based
// termination.
package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jechocarlos/queenbee/pkg/models"
)

// state is the shared discussion state. One mutex guards everything; every
// observable change happens under it so snapshots are always consistent.
type state struct {
	mu sync.Mutex

	task          string
	contributions []models.Contribution
	rollingSummary string
	summaryCount   int // transcript length at last summary

	agentStatus map[string]models.AgentState
	events      []models.WebSearchEvent

	// Consecutive passes per deliberator, reset on contribution.
	passCount map[string]int

	contribStats  map[string]int
	passStats     map[string]int
	responseTimes map[string][]float64
	searches      int
	searchesBy    map[string]int
	peakThinking  int

	start time.Time
}

func newState(task string, roles []string) *state {
	st := &state{
		task:          task,
		agentStatus:   make(map[string]models.AgentState),
		passCount:     make(map[string]int),
		contribStats:  make(map[string]int),
		passStats:     make(map[string]int),
		responseTimes: make(map[string][]float64),
		searchesBy:    make(map[string]int),
		start:         time.Now(),
	}
	for _, r := range roles {
		st.agentStatus[r] = models.AgentIdle
	}
	return st
}

func nowStamp() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// visible returns a copy of the non-hidden transcript, the input to the
// admission policy.
func (s *state) visible() []models.Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Contribution
	for _, c := range s.contributions {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// transcript returns a copy of the full transcript, hidden entries included.
func (s *state) transcript() []models.Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Contribution(nil), s.contributions...)
}

func (s *state) setStatus(agent string, status models.AgentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(agent, status)
}

func (s *state) setStatusLocked(agent string, status models.AgentState) {
	s.agentStatus[agent] = status
	if status == models.AgentThinking {
		thinking := 0
		for _, st := range s.agentStatus {
			if st == models.AgentThinking {
				thinking++
			}
		}
		if thinking > s.peakThinking {
			s.peakThinking = thinking
		}
	}
}

// addContribution appends a visible contribution, records its response time,
// and resets the agent's consecutive-pass counter. The ordinal is the entry's
// 1-based position in the full transcript at append time, hidden entries
// included, so ordinals stay unique and monotonic across the document.
func (s *state) addContribution(agent, content string, responseTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contributions = append(s.contributions, models.Contribution{
		Agent:           agent,
		Content:         content,
		Timestamp:       nowStamp(),
		ContributionNum: len(s.contributions) + 1,
	})
	s.contribStats[agent]++
	s.passCount[agent] = 0
	s.responseTimes[agent] = append(s.responseTimes[agent], responseTime.Seconds())
	s.setStatusLocked(agent, models.AgentContributing)
}

// addHidden appends a hidden transcript entry (search result or waiting
// notice). Its ordinal is positional within the full transcript.
func (s *state) addHidden(agent, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contributions = append(s.contributions, models.Contribution{
		Agent:           agent,
		Content:         content,
		Timestamp:       nowStamp(),
		ContributionNum: len(s.contributions) + 1,
		Hidden:          true,
	})
}

// recordPass counts a pass and reports whether every deliberator has now
// passed at least once consecutively while the transcript holds at least two
// entries, the all-passed termination condition.
func (s *state) recordPass(agent string, roster []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passStats[agent]++
	s.passCount[agent]++

	if len(s.contributions) < 2 {
		return false
	}
	for _, r := range roster {
		if s.passCount[r] < 1 {
			return false
		}
	}
	return true
}

// recordSearch registers a search event and marks the searcher busy and the
// requester searching-adjacent.
func (s *state) recordSearch(requester, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, models.WebSearchEvent{
		Agent:     requester,
		Query:     query,
		Timestamp: nowStamp(),
	})
	s.searches++
	s.searchesBy[requester]++
	s.setStatusLocked(string(searcherName), models.AgentSearching)
	s.setStatusLocked(requester, models.AgentThinking)
}

func (s *state) setRollingSummary(summary string, transcriptLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollingSummary = summary
	s.summaryCount = transcriptLen
}

func (s *state) rolling() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollingSummary
}

// summaryDue returns the transcript copy when new entries arrived since the
// last summary, or nil when the summary is current.
func (s *state) summaryDue() []models.Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.contributions) == 0 || len(s.contributions) == s.summaryCount {
		return nil
	}
	return append([]models.Contribution(nil), s.contributions...)
}

// allIdleWithDiscussion reports whether every agent is idle and at least one
// transcript entry exists, the quiescence sample for the termination
// detector.
func (s *state) allIdleWithDiscussion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.contributions) == 0 {
		return false
	}
	for _, st := range s.agentStatus {
		if st != models.AgentIdle {
			return false
		}
	}
	return true
}

// snapshot builds the in-progress result document.
func (s *state) snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[string]models.AgentState, len(s.agentStatus))
	for k, v := range s.agentStatus {
		status[k] = v
	}
	return models.Snapshot{
		Status:          "in_progress",
		Task:            s.task,
		Contributions:   append([]models.Contribution(nil), s.contributions...),
		RollingSummary:  s.rollingSummary,
		AgentStatus:     status,
		WebSearchEvents: append([]models.WebSearchEvent(nil), s.events...),
	}
}

// finalStats compiles the discussion statistics.
func (s *state) finalStats() models.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	avg := make(map[string]float64)
	for agent, times := range s.responseTimes {
		if len(times) == 0 {
			continue
		}
		var sum float64
		for _, t := range times {
			sum += t
		}
		avg[agent] = round2(sum / float64(len(times)))
	}

	return models.Statistics{
		DurationSeconds:            round2(time.Since(s.start).Seconds()),
		TotalMessages:              len(s.contributions),
		ContributionsPerAgent:      copyCounts(s.contribStats),
		PassesPerAgent:             copyCounts(s.passStats),
		WebSearchesTotal:           s.searches,
		WebSearchesByAgent:         copyCounts(s.searchesBy),
		AverageResponseTimeSeconds: avg,
		PeakConcurrentThinking:     s.peakThinking,
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// waitingNotice is the hidden transcript entry added when a specialist's
// search request is queued behind an active search.
func waitingNotice(query string) string {
	trimmed := query
	if len(trimmed) > 80 {
		trimmed = trimmed[:80] + "..."
	}
	return fmt.Sprintf("*Waiting for @WebSearcher to finish current search before requesting: '%s'*", trimmed)
}
