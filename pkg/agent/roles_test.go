package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRosterShape(t *testing.T) {
	require.Len(t, Roster, 6)
	assert.Equal(t, []Role{RoleDivergent, RoleConvergent, RoleCritical}, CoreRoles())

	for _, d := range Roster {
		assert.NotEmpty(t, d.Keywords, "%s has no keywords", d.Role)
		assert.Positive(t, d.Temperature, "%s has no temperature", d.Role)
	}
}

func TestLookup(t *testing.T) {
	d := Lookup(RoleDivergent)
	require.NotNil(t, d)
	assert.InDelta(t, 0.9, d.Temperature, 0.001)

	assert.Nil(t, Lookup(RoleWebSearcher))
	assert.Nil(t, Lookup("Nonexistent"))
}

func TestRelevantTo(t *testing.T) {
	critical := Lookup(RoleCritical)
	require.NotNil(t, critical)

	assert.True(t, critical.RelevantTo("What are the security risks of this design?"))
	assert.True(t, critical.RelevantTo("We must VALIDATE the approach"))
	assert.False(t, critical.RelevantTo("What color should the logo be?"))

	quantifier := Lookup(RoleQuantifier)
	require.NotNil(t, quantifier)
	assert.True(t, quantifier.RelevantTo("show me the performance numbers"))
	assert.False(t, quantifier.RelevantTo("tell me a story"))
}
