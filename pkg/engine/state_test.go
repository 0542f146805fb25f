package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jechocarlos/queenbee/pkg/models"
)

var testRoster = []string{"Divergent", "Convergent", "Critical"}

func TestStateVisibleExcludesHidden(t *testing.T) {
	st := newState("q", testRoster)
	st.addContribution("Divergent", "an idea", 10*time.Millisecond)
	st.addHidden("WebSearcher", "Search results for 'x':\n\ndata")
	st.addContribution("Critical", "a concern", 20*time.Millisecond)

	visible := st.visible()
	require.Len(t, visible, 2)
	assert.Equal(t, "Divergent", visible[0].Agent)
	assert.Equal(t, "Critical", visible[1].Agent)

	full := st.transcript()
	require.Len(t, full, 3)
	assert.True(t, full[1].Hidden)
	// Every entry carries its 1-based transcript position, hidden or not.
	for i, c := range full {
		assert.Equal(t, i+1, c.ContributionNum)
	}
}

func TestStateContributionOrdinalsArePositional(t *testing.T) {
	st := newState("q", testRoster)
	st.addContribution("Divergent", "first", time.Millisecond)
	st.addContribution("Convergent", "second", time.Millisecond)

	full := st.transcript()
	require.Len(t, full, 2)
	assert.Equal(t, 1, full[0].ContributionNum)
	assert.Equal(t, "Convergent", full[1].Agent)
	assert.Equal(t, 2, full[1].ContributionNum, "second contributor takes position 2, not its own count")
}

func TestStateRecordPassAllPassed(t *testing.T) {
	st := newState("q", testRoster)

	assert.False(t, st.recordPass("Divergent", testRoster), "no discussion yet")

	st.addContribution("Divergent", "first", time.Millisecond)
	st.addContribution("Convergent", "second", time.Millisecond)
	assert.False(t, st.recordPass("Divergent", testRoster), "others have not passed")
	assert.False(t, st.recordPass("Critical", testRoster))
	assert.True(t, st.recordPass("Convergent", testRoster), "everyone passed consecutively")
}

func TestStateContributionResetsPassStreak(t *testing.T) {
	st := newState("q", testRoster)
	st.addContribution("Divergent", "a", time.Millisecond)
	st.addContribution("Convergent", "b", time.Millisecond)

	st.recordPass("Divergent", testRoster)
	st.recordPass("Critical", testRoster)
	st.addContribution("Divergent", "c", time.Millisecond)

	assert.False(t, st.recordPass("Convergent", testRoster), "contribution reset the streak")

	stats := st.finalStats()
	assert.Equal(t, 2, stats.ContributionsPerAgent["Divergent"])
	assert.Equal(t, 1, stats.PassesPerAgent["Divergent"])
	assert.Equal(t, 1, stats.PassesPerAgent["Critical"])
}

func TestStatePeakConcurrentThinking(t *testing.T) {
	st := newState("q", testRoster)

	st.setStatus("Divergent", models.AgentThinking)
	st.setStatus("Convergent", models.AgentThinking)
	st.setStatus("Divergent", models.AgentIdle)
	st.setStatus("Critical", models.AgentThinking)

	stats := st.finalStats()
	assert.Equal(t, 2, stats.PeakConcurrentThinking)
}

func TestStateAllIdleWithDiscussion(t *testing.T) {
	st := newState("q", testRoster)
	assert.False(t, st.allIdleWithDiscussion(), "empty discussion never counts as quiescent")

	st.addContribution("Divergent", "a", time.Millisecond)
	assert.False(t, st.allIdleWithDiscussion(), "contributor still marked contributing")

	st.setStatus("Divergent", models.AgentIdle)
	assert.True(t, st.allIdleWithDiscussion())

	st.setStatus("Critical", models.AgentThinking)
	assert.False(t, st.allIdleWithDiscussion())
}

func TestStateSummaryDue(t *testing.T) {
	st := newState("q", testRoster)
	assert.Nil(t, st.summaryDue(), "nothing to summarize")

	st.addContribution("Divergent", "a", time.Millisecond)
	due := st.summaryDue()
	require.Len(t, due, 1)

	st.setRollingSummary("so far: a", 1)
	assert.Nil(t, st.summaryDue(), "summary is current")

	st.addHidden("WebSearcher", "results")
	assert.Len(t, st.summaryDue(), 2, "hidden entries count toward summary freshness")
}

func TestStateSnapshotIsDeepCopy(t *testing.T) {
	st := newState("the question", testRoster)
	st.addContribution("Divergent", "a", time.Millisecond)
	st.recordSearch("Divergent", "x")

	snap := st.snapshot()
	assert.Equal(t, "in_progress", snap.Status)
	assert.Equal(t, "the question", snap.Task)
	require.Len(t, snap.Contributions, 1)
	require.Len(t, snap.WebSearchEvents, 1)
	assert.Equal(t, models.AgentSearching, snap.AgentStatus["WebSearcher"])

	snap.AgentStatus["Divergent"] = models.AgentWaiting
	snap.Contributions[0].Content = "mutated"

	fresh := st.snapshot()
	assert.Equal(t, models.AgentThinking, fresh.AgentStatus["Divergent"], "recordSearch marks the requester thinking")
	assert.Equal(t, "a", fresh.Contributions[0].Content)
}

func TestWaitingNoticeTruncatesLongQueries(t *testing.T) {
	long := strings.Repeat("q", 100)
	notice := waitingNotice(long)
	assert.Contains(t, notice, strings.Repeat("q", 80)+"...")
	assert.NotContains(t, notice, strings.Repeat("q", 81))

	short := waitingNotice("battery costs")
	assert.Equal(t, "*Waiting for @WebSearcher to finish current search before requesting: 'battery costs'*", short)
}
