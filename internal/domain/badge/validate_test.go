package badge

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stridehub/achievement-engine/internal/domain/metric"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

func validBadge() Badge {
	return Badge{
		ID:     "sprinter-gold",
		Name:   "Sprinter",
		Level:  LevelGold,
		Sport:  "athletics",
		Active: true,
		Origin: SystemOrigin(),
		Rules: []Rule{
			{ID: "r1", FieldName: "sprint_100m", Operator: OpLessOrEqual, Threshold: 11.5, Weight: 2, Required: true},
			{ID: "r2", FieldName: "reaction", Operator: OpGreaterThan, Threshold: 0.8, Weight: 1},
		},
	}
}

func TestValidate_AcceptsWellFormedBadge(t *testing.T) {
	assert.NoError(t, Validate(validBadge()))

	coach := validBadge()
	coach.Origin = CoachOrigin("coach-7")
	assert.NoError(t, Validate(coach))
}

func TestValidate_RejectsMalformedDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Badge)
	}{
		{"no rules", func(b *Badge) { b.Rules = nil }},
		{"only disabled rules", func(b *Badge) {
			for i := range b.Rules {
				b.Rules[i].Disabled = true
			}
		}},
		{"unknown operator", func(b *Badge) { b.Rules[0].Operator = "approx" }},
		{"nan threshold", func(b *Badge) { b.Rules[0].Threshold = math.NaN() }},
		{"infinite threshold", func(b *Badge) { b.Rules[1].Threshold = math.Inf(-1) }},
		{"zero weight", func(b *Badge) { b.Rules[1].Weight = 0 }},
		{"negative weight", func(b *Badge) { b.Rules[1].Weight = -1 }},
		{"infinite weight", func(b *Badge) { b.Rules[1].Weight = math.Inf(1) }},
		{"empty field", func(b *Badge) { b.Rules[0].FieldName = "" }},
		{"unknown level", func(b *Badge) { b.Level = "diamond" }},
		{"coach origin without coach", func(b *Badge) { b.Origin = Origin{Kind: OriginCoach} }},
		{"unknown origin", func(b *Badge) { b.Origin = Origin{Kind: "import"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBadge()
			tt.mutate(&b)

			err := Validate(b)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrBadgeConfigInvalid))
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestValidate_IgnoresDisabledDraftRules(t *testing.T) {
	b := validBadge()
	b.Rules = append(b.Rules, Rule{ID: "draft", Disabled: true})

	assert.NoError(t, Validate(b))

	snap := metric.NewSnapshot("athlete-1", map[string]metric.Value{
		"sprint_100m": metric.Number(11.2),
		"reaction":    metric.Number(0.9),
	})
	result := NewScorer(nil).Score(b, snap)
	assert.True(t, result.IsEarned)
	assert.Equal(t, 100, result.ProgressPercent)
	assert.Len(t, result.PerRule, 2)

	b.Rules[2].Disabled = false
	assert.ErrorIs(t, Validate(b), shared.ErrBadgeConfigInvalid)
}

func TestValidateCategory(t *testing.T) {
	assert.NoError(t, ValidateCategory(Category{ID: "endurance", Name: "Endurance"}))
	assert.ErrorIs(t, ValidateCategory(Category{ID: "endurance"}), shared.ErrBadgeConfigInvalid)
	assert.ErrorIs(t, ValidateCategory(Category{Name: "Endurance"}), shared.ErrBadgeConfigInvalid)
}

func TestOriginIsCoachAuthored(t *testing.T) {
	assert.True(t, CoachOrigin("coach-7").IsCoachAuthored())
	assert.False(t, SystemOrigin().IsCoachAuthored())
}

func TestBadgeAppliesTo(t *testing.T) {
	b := validBadge()
	assert.True(t, b.AppliesTo("athletics"))
	assert.True(t, b.AppliesTo("Athletics"))
	assert.False(t, b.AppliesTo("swimming"))

	b.Sport = SportAll
	assert.True(t, b.AppliesTo("swimming"))

	b.Sport = ""
	assert.True(t, b.AppliesTo("rowing"))
}

func TestLevelRank(t *testing.T) {
	assert.Less(t, LevelBronze.Rank(), LevelSilver.Rank())
	assert.Less(t, LevelSilver.Rank(), LevelGold.Rank())
	assert.Less(t, LevelGold.Rank(), LevelPlatinum.Rank())
	assert.Zero(t, Level("wood").Rank())
}
