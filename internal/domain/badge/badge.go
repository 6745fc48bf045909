package badge

import (
	"context"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// SportAll scopes a badge to every sport.
const SportAll = "all"

// Operator is the comparison a rule applies between metric and threshold.
type Operator string

const (
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpEqual          Operator = "eq"
)

// IsValid reports whether the operator is one the evaluator understands.
func (o Operator) IsValid() bool {
	switch o {
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpEqual:
		return true
	}
	return false
}

// Compare applies the operator. ok is false for unknown operators.
// Equality is exact: no tolerance is applied.
func (o Operator) Compare(value, threshold float64) (result bool, ok bool) {
	switch o {
	case OpGreaterThan:
		return value > threshold, true
	case OpGreaterOrEqual:
		return value >= threshold, true
	case OpLessThan:
		return value < threshold, true
	case OpLessOrEqual:
		return value <= threshold, true
	case OpEqual:
		return value == threshold, true
	default:
		return false, false
	}
}

// Level is the ordinal tier of a badge.
type Level string

const (
	LevelBronze   Level = "bronze"
	LevelSilver   Level = "silver"
	LevelGold     Level = "gold"
	LevelPlatinum Level = "platinum"
)

// Rank returns the ordinal position of the level, 0 for unknown levels.
func (l Level) Rank() int {
	switch l {
	case LevelBronze:
		return 1
	case LevelSilver:
		return 2
	case LevelGold:
		return 3
	case LevelPlatinum:
		return 4
	default:
		return 0
	}
}

// OriginKind tells who authored a badge.
type OriginKind string

const (
	OriginSystem OriginKind = "system"
	OriginCoach  OriginKind = "coach"
)

// Origin records whether a badge is system-authored or coach-authored.
// Coach-authored badges carry the author's identity.
type Origin struct {
	Kind    OriginKind `json:"kind" validate:"oneof=system coach"`
	CoachID string     `json:"coach_id,omitempty" validate:"required_if=Kind coach"`
}

// SystemOrigin returns the origin of platform-defined badges.
func SystemOrigin() Origin { return Origin{Kind: OriginSystem} }

// CoachOrigin returns the origin of a badge authored by coachID.
func CoachOrigin(coachID string) Origin { return Origin{Kind: OriginCoach, CoachID: coachID} }

// IsCoachAuthored reports whether a coach authored the badge.
func (o Origin) IsCoachAuthored() bool { return o.Kind == OriginCoach }

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Category groups badges for display.
type Category struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// Rule is one threshold condition on a named metric.
type Rule struct {
	ID        string   `json:"id"`
	FieldName string   `json:"field_name" validate:"required"`
	Operator  Operator `json:"operator" validate:"oneof=gt gte lt lte eq"`
	Threshold float64  `json:"threshold" validate:"finite"`
	Weight    float64  `json:"weight" validate:"finite,gt=0"`
	Required  bool     `json:"is_required"`

	// Disabled rules are ignored by the scorer.
	Disabled bool `json:"disabled,omitempty"`
}

// Badge is an achievement definition owning a set of rules.
type Badge struct {
	ID          string    `json:"id" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	CategoryID  string    `json:"category_id"`
	Level       Level     `json:"level" validate:"oneof=bronze silver gold platinum"`
	Sport       string    `json:"sport"`
	Active      bool      `json:"is_active"`
	Origin      Origin    `json:"origin"`
	Rules       []Rule    `json:"rules" validate:"dive"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EnabledRules returns the rules that take part in scoring.
func (b Badge) EnabledRules() []Rule {
	rules := make([]Rule, 0, len(b.Rules))
	for _, r := range b.Rules {
		if !r.Disabled {
			rules = append(rules, r)
		}
	}
	return rules
}

// AppliesTo reports whether the badge is scoped to sport.
// An empty scope is treated like SportAll.
func (b Badge) AppliesTo(sport string) bool {
	if b.Sport == "" || b.Sport == SportAll {
		return true
	}
	return strings.EqualFold(b.Sport, sport)
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog provides badge definitions together with their rules.
type Catalog interface {
	// ListActive returns active badges applicable to sport.
	ListActive(ctx context.Context, sport string) ([]Badge, error)

	// Get returns a badge regardless of its active flag.
	// Returns shared.ErrBadgeNotFound if it does not exist.
	Get(ctx context.Context, id string) (*Badge, error)
}

// Editor is implemented by catalogs that accept badge edits.
type Editor interface {
	// Save creates or replaces a badge with its rules. A badge whose
	// category does not exist fails with shared.ErrCategoryNotFound.
	Save(ctx context.Context, b Badge) error
	SetActive(ctx context.Context, id string, active bool) error
	SaveCategory(ctx context.Context, cat Category) error
}
