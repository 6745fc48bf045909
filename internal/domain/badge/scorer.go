package badge

import (
	"math"

	"github.com/stridehub/achievement-engine/internal/domain/metric"
)

// ScoreResult is the aggregate verdict for one badge and one snapshot.
type ScoreResult struct {
	BadgeID         string       `json:"badge_id"`
	ProgressPercent int          `json:"progress_percent"`
	IsEarned        bool         `json:"is_earned"`
	PerRule         []RuleResult `json:"per_rule"`
}

// RequiredMet reports whether every required rule in the result holds.
func (r ScoreResult) RequiredMet() bool {
	for _, rr := range r.PerRule {
		if rr.Required && !rr.Satisfied {
			return false
		}
	}
	return true
}

// Scorer aggregates rule results into a badge progress and earned verdict.
type Scorer struct {
	evaluator *Evaluator
}

// NewScorer creates a Scorer. A nil evaluator uses binary credit.
func NewScorer(evaluator *Evaluator) *Scorer {
	if evaluator == nil {
		evaluator = NewEvaluator(nil)
	}
	return &Scorer{evaluator: evaluator}
}

// Score evaluates every enabled rule of b against snap.
//
// Progress is the weighted share of credit over all enabled rules, rounded
// to a whole percent. The badge is earned only when every required rule is
// satisfied and progress reached 100. Rules whose weight is not a positive
// finite number contribute nothing to either sum.
func (s *Scorer) Score(b Badge, snap metric.Snapshot) ScoreResult {
	rules := b.EnabledRules()
	result := ScoreResult{
		BadgeID: b.ID,
		PerRule: make([]RuleResult, 0, len(rules)),
	}

	var weightedSum, weightTotal float64
	for _, rule := range rules {
		rr := s.evaluator.Evaluate(rule, snap)
		result.PerRule = append(result.PerRule, rr)

		if !validWeight(rule.Weight) {
			continue
		}
		weightedSum += rule.Weight * rr.Credit
		weightTotal += rule.Weight
	}

	if weightTotal > 0 {
		result.ProgressPercent = int(math.Round(100 * weightedSum / weightTotal))
	}
	if result.ProgressPercent > 100 {
		result.ProgressPercent = 100
	}

	result.IsEarned = weightTotal > 0 &&
		result.RequiredMet() &&
		result.ProgressPercent >= 100

	return result
}

func validWeight(w float64) bool {
	return w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}
