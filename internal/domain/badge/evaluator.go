package badge

import (
	"math"

	"github.com/stridehub/achievement-engine/internal/domain/metric"
)

// RuleResult is the outcome of evaluating one rule against a snapshot.
type RuleResult struct {
	RuleID    string  `json:"rule_id"`
	FieldName string  `json:"field_name"`
	Required  bool    `json:"is_required"`
	Satisfied bool    `json:"satisfied"`
	Credit    float64 `json:"credit"`

	// Missing is set when the snapshot had no usable value for the field.
	Missing bool `json:"missing,omitempty"`
}

// CreditPolicy turns a comparison into fractional credit in [0, 1].
type CreditPolicy interface {
	Credit(rule Rule, value float64, satisfied bool) float64
}

// BinaryCredit grants full credit for a satisfied rule and nothing otherwise.
type BinaryCredit struct{}

// Credit implements CreditPolicy.
func (BinaryCredit) Credit(_ Rule, _ float64, satisfied bool) float64 {
	if satisfied {
		return 1
	}
	return 0
}

// LinearCredit grants partial credit proportional to the distance covered
// towards the threshold. An unsatisfied rule never reaches full credit.
type LinearCredit struct{}

// Credit implements CreditPolicy.
func (LinearCredit) Credit(rule Rule, value float64, satisfied bool) float64 {
	if satisfied {
		return 1
	}

	var c float64
	switch rule.Operator {
	case OpGreaterThan, OpGreaterOrEqual:
		if rule.Threshold > 0 && value > 0 {
			c = value / rule.Threshold
		}
	case OpLessThan, OpLessOrEqual:
		if value > 0 && rule.Threshold > 0 {
			c = rule.Threshold / value
		}
	}

	return math.Min(c, math.Nextafter(1, 0))
}

// Evaluator decides whether a single rule holds for a snapshot.
// It is total: missing or malformed input yields an unsatisfied result.
type Evaluator struct {
	policy CreditPolicy
}

// NewEvaluator creates an Evaluator. A nil policy means BinaryCredit.
func NewEvaluator(policy CreditPolicy) *Evaluator {
	if policy == nil {
		policy = BinaryCredit{}
	}
	return &Evaluator{policy: policy}
}

// Evaluate checks rule against snap.
func (e *Evaluator) Evaluate(rule Rule, snap metric.Snapshot) RuleResult {
	result := RuleResult{
		RuleID:    rule.ID,
		FieldName: rule.FieldName,
		Required:  rule.Required,
	}

	v, ok := snap.Get(rule.FieldName)
	if !ok {
		result.Missing = true
		return result
	}
	value, ok := v.Numeric()
	if !ok {
		result.Missing = true
		return result
	}
	if math.IsNaN(rule.Threshold) || math.IsInf(rule.Threshold, 0) {
		return result
	}

	satisfied, ok := rule.Operator.Compare(value, rule.Threshold)
	if !ok {
		return result
	}

	result.Satisfied = satisfied
	result.Credit = clampCredit(e.policy.Credit(rule, value, satisfied))
	return result
}

func clampCredit(c float64) float64 {
	switch {
	case math.IsNaN(c), c <= 0:
		return 0
	case c >= 1:
		return 1
	default:
		return c
	}
}
