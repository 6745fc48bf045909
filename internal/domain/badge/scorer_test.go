package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridehub/achievement-engine/internal/domain/metric"
)

// pass and fail build rules that do and do not hold for skillSnapshot.
func pass(id string, weight float64, required bool) Rule {
	return Rule{ID: id, FieldName: "skill", Operator: OpGreaterOrEqual, Threshold: 50, Weight: weight, Required: required}
}

func fail(id string, weight float64, required bool) Rule {
	return Rule{ID: id, FieldName: "skill", Operator: OpGreaterOrEqual, Threshold: 90, Weight: weight, Required: required}
}

var skillSnapshot = metric.NewSnapshot("athlete-1", map[string]metric.Value{"skill": metric.Number(75)})

func TestScore_WeightedAggregation(t *testing.T) {
	b := Badge{ID: "b1", Rules: []Rule{pass("a", 2, false), fail("b", 1, false), pass("c", 1, false)}}

	res := NewScorer(nil).Score(b, skillSnapshot)

	assert.Equal(t, 75, res.ProgressPercent)
	assert.False(t, res.IsEarned)
	require.Len(t, res.PerRule, 3)
	assert.True(t, res.PerRule[0].Satisfied)
	assert.False(t, res.PerRule[1].Satisfied)
}

func TestScore_RequiredIsAGateNotSufficient(t *testing.T) {
	b := Badge{ID: "b2", Rules: []Rule{pass("r1", 1, true), pass("r2", 1, true), fail("opt", 1, false)}}

	res := NewScorer(nil).Score(b, skillSnapshot)

	assert.Equal(t, 67, res.ProgressPercent)
	assert.True(t, res.RequiredMet())
	assert.False(t, res.IsEarned)
}

func TestScore_FailedRequiredBlocksEarning(t *testing.T) {
	b := Badge{ID: "b3", Rules: []Rule{
		fail("core", 1, true),
		pass("o1", 100, false),
		pass("o2", 100, false),
	}}

	res := NewScorer(nil).Score(b, skillSnapshot)

	assert.Equal(t, 100, res.ProgressPercent)
	assert.False(t, res.RequiredMet())
	assert.False(t, res.IsEarned)
}

func TestScore_AllOptionalCanBeEarned(t *testing.T) {
	b := Badge{ID: "b4", Rules: []Rule{pass("o1", 3, false), pass("o2", 0.5, false)}}

	res := NewScorer(nil).Score(b, skillSnapshot)

	assert.Equal(t, 100, res.ProgressPercent)
	assert.True(t, res.IsEarned)
}

func TestScore_ZeroRulesNeverEarned(t *testing.T) {
	res := NewScorer(nil).Score(Badge{ID: "empty"}, skillSnapshot)

	assert.Equal(t, 0, res.ProgressPercent)
	assert.False(t, res.IsEarned)
	assert.Empty(t, res.PerRule)
}

func TestScore_DisabledRulesIgnored(t *testing.T) {
	disabled := fail("off", 10, true)
	disabled.Disabled = true
	b := Badge{ID: "b5", Rules: []Rule{pass("on", 1, false), disabled}}

	res := NewScorer(nil).Score(b, skillSnapshot)

	assert.Equal(t, 100, res.ProgressPercent)
	assert.True(t, res.IsEarned)
	assert.Len(t, res.PerRule, 1)

	disabledOnly := Badge{ID: "b6", Rules: []Rule{disabled}}
	res = NewScorer(nil).Score(disabledOnly, skillSnapshot)
	assert.Equal(t, 0, res.ProgressPercent)
	assert.False(t, res.IsEarned)
}

func TestScore_MissingMetricCountsAsFailure(t *testing.T) {
	b := Badge{ID: "b7", Rules: []Rule{
		pass("known", 1, false),
		{ID: "unknown", FieldName: "endurance", Operator: OpGreaterThan, Threshold: 1, Weight: 1},
	}}

	res := NewScorer(nil).Score(b, skillSnapshot)

	assert.Equal(t, 50, res.ProgressPercent)
	assert.False(t, res.IsEarned)
	assert.True(t, res.PerRule[1].Missing)
}

func TestScore_Deterministic(t *testing.T) {
	b := Badge{ID: "b8", Rules: []Rule{pass("a", 1.3, false), fail("b", 2.7, true), pass("c", 0.1, false)}}
	scorer := NewScorer(nil)

	first := scorer.Score(b, skillSnapshot)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, scorer.Score(b, skillSnapshot))
	}
}
