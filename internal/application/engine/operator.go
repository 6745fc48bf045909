package engine

import (
	"context"
	"strings"

	"github.com/stridehub/achievement-engine/internal/domain/award"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
	"github.com/stridehub/achievement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPERATOR ACTIONS
// Explicit coach actions. Unlike reconciliation, ledger errors surface here.
// ══════════════════════════════════════════════════════════════════════════════

// ManualAward grants badgeID to studentID on behalf of coachID, bypassing
// scoring. It also reinstates a previously revoked award.
func (e *Engine) ManualAward(ctx context.Context, studentID, badgeID, coachID string) (*award.Award, error) {
	if err := e.authorize(ctx, coachID, studentID); err != nil {
		return nil, err
	}
	if _, err := e.athletes.SportOf(ctx, studentID); err != nil {
		return nil, err
	}

	b, err := e.catalog.Get(ctx, badgeID)
	if err != nil {
		return nil, err
	}
	if !b.Active {
		return nil, shared.ErrBadgeInactive
	}

	return e.ledger.ManualAward(ctx, studentID, badgeID, coachID)
}

// Revoke revokes an award on behalf of coachID. reason is mandatory.
func (e *Engine) Revoke(ctx context.Context, awardID, coachID, reason string) (*award.Award, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, shared.NewDomainError("award", "Revoke", shared.ErrInvalidInput, "revoke reason is required")
	}

	a, err := e.ledger.Get(ctx, awardID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, coachID, a.StudentID); err != nil {
		return nil, err
	}

	return e.ledger.Revoke(ctx, awardID, coachID, reason)
}

func (e *Engine) authorize(ctx context.Context, coachID, studentID string) error {
	if e.authorizer == nil {
		return nil
	}
	if err := e.authorizer.Authorize(ctx, coachID, studentID); err != nil {
		e.log.Warn("coach action rejected",
			logger.CoachID(coachID),
			logger.StudentID(studentID),
			logger.Err(err),
		)
		return err
	}
	return nil
}
