// Package award models the relationship between an athlete and a badge and
// the ledger that creates, refreshes and revokes it.
package award

import (
	"time"

	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

// SystemActor is recorded as AwardedBy for awards created by evaluation.
const SystemActor = "system"

// ══════════════════════════════════════════════════════════════════════════════
// AWARD ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Award is the single record for one (athlete, badge) pair. A revoked award
// stays in place for audit and is reinstated in place on re-award.
type Award struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"student_id"`
	BadgeID      string     `json:"badge_id"`
	Progress     int        `json:"progress"`
	AwardedAt    time.Time  `json:"awarded_at"`
	AwardedBy    string     `json:"awarded_by"`
	IsRevoked    bool       `json:"is_revoked"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokedBy    string     `json:"revoked_by,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActive reports whether the award currently counts as earned.
func (a *Award) IsActive() bool {
	return a != nil && !a.IsRevoked
}

// IsSystemAwarded reports whether evaluation, not a coach, granted the award.
func (a *Award) IsSystemAwarded() bool {
	return a.AwardedBy == SystemActor
}

// SetProgress stores the latest computed progress, clamped to 0..100.
// It returns true if the stored value changed.
func (a *Award) SetProgress(p int, now time.Time) bool {
	p = clampProgress(p)
	if a.Progress == p {
		return false
	}
	a.Progress = p
	a.UpdatedAt = now
	return true
}

// Revoke marks the award revoked.
func (a *Award) Revoke(by, reason string, now time.Time) error {
	if a.IsRevoked {
		return shared.ErrAlreadyRevoked
	}
	a.IsRevoked = true
	a.RevokedAt = &now
	a.RevokedBy = by
	a.RevokeReason = reason
	a.UpdatedAt = now
	return nil
}

// Reinstate clears the revocation and re-stamps award metadata.
func (a *Award) Reinstate(by string, now time.Time) error {
	if !a.IsRevoked {
		return shared.ErrAlreadyAwarded
	}
	a.IsRevoked = false
	a.RevokedAt = nil
	a.RevokedBy = ""
	a.RevokeReason = ""
	a.AwardedAt = now
	a.AwardedBy = by
	a.UpdatedAt = now
	return nil
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// EventType names an award state change.
type EventType string

const (
	EventAwarded   EventType = "awarded"
	EventReawarded EventType = "reawarded"
	EventRevoked   EventType = "revoked"
)

// Event is an append-only audit record of an award state change.
type Event struct {
	ID         string    `json:"id"`
	AwardID    string    `json:"award_id"`
	StudentID  string    `json:"student_id"`
	BadgeID    string    `json:"badge_id"`
	Type       EventType `json:"type"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	Progress   int       `json:"progress"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILIATION OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// Action describes what reconciliation did for one badge.
type Action string

const (
	// ActionCreated - a new system award was created.
	ActionCreated Action = "created"
	// ActionProgressUpdated - an active award's progress was refreshed.
	ActionProgressUpdated Action = "progress_updated"
	// ActionUnchanged - an active award already matched the score.
	ActionUnchanged Action = "unchanged"
	// ActionNotEarned - no award exists and the badge is not earned.
	ActionNotEarned Action = "not_earned"
	// ActionRevokedSticky - the pair was revoked; nothing was changed.
	ActionRevokedSticky Action = "revoked_sticky"
)

// Outcome is the result of reconciling one score into the ledger.
type Outcome struct {
	StudentID string            `json:"student_id"`
	BadgeID   string            `json:"badge_id"`
	Action    Action            `json:"action"`
	Award     *Award            `json:"award,omitempty"`
	Score     badge.ScoreResult `json:"score"`
}

// Changed reports whether the outcome wrote to the ledger.
func (o Outcome) Changed() bool {
	return o.Action == ActionCreated || o.Action == ActionProgressUpdated
}
