package award

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
	"github.com/stridehub/achievement-engine/pkg/logger"
	"github.com/stridehub/achievement-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD LEDGER
// State machine for athlete/badge awards:
//
//	(none) ──earned──► active ──revoke──► revoked ──manual award──► active
//	  │                  ▲  │                 │
//	  └──manual award────┘  └─progress─┘      └─reconcile: no-op (sticky)
//
// Every transition runs inside Store.WithinPair, so a pair never has more
// than one active record and no operation is left half applied.
// ══════════════════════════════════════════════════════════════════════════════

// Ledger owns every write to award state.
type Ledger struct {
	store       Store
	now         func() time.Time
	newID       func() string
	log         *logger.Logger
	maxAttempts int
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides award and event ID generation.
func WithIDGenerator(gen func() string) LedgerOption {
	return func(l *Ledger) { l.newID = gen }
}

// WithLogger sets the ledger logger.
func WithLogger(log *logger.Logger) LedgerOption {
	return func(l *Ledger) { l.log = log }
}

// WithMaxAttempts bounds retries of a pair operation that lost a race.
func WithMaxAttempts(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// NewLedger creates a Ledger over store.
func NewLedger(store Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		log:         logger.Nop(),
		maxAttempts: 3,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With(logger.Component("award_ledger"))
	return l
}

// Reconcile folds a fresh score into the pair's award state.
//
//   - no record, earned: a system award is created
//   - no record, not earned: nothing is written
//   - active record: only progress is refreshed, never de-awarded
//   - revoked record: nothing is written; revocation is sticky
//
// Running it twice with the same score leaves the same stored state.
func (l *Ledger) Reconcile(ctx context.Context, studentID string, score badge.ScoreResult) (Outcome, error) {
	var out Outcome

	err := l.inPair(ctx, studentID, score.BadgeID, func(ctx context.Context, tx PairTx) error {
		out = Outcome{StudentID: studentID, BadgeID: score.BadgeID, Score: score}

		current, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		now := l.now()

		switch {
		case current == nil && !score.IsEarned:
			out.Action = ActionNotEarned
			return nil

		case current == nil:
			a := &Award{
				ID:        l.newID(),
				StudentID: studentID,
				BadgeID:   score.BadgeID,
				Progress:  clampProgress(score.ProgressPercent),
				AwardedAt: now,
				AwardedBy: SystemActor,
				UpdatedAt: now,
			}
			if err := tx.Insert(ctx, a); err != nil {
				return err
			}
			if err := tx.AppendEvent(ctx, l.event(a, EventAwarded, SystemActor, "", now)); err != nil {
				return err
			}
			out.Action = ActionCreated
			out.Award = a
			return nil

		case current.IsRevoked:
			out.Action = ActionRevokedSticky
			out.Award = current
			return nil

		default:
			out.Award = current
			if !current.SetProgress(score.ProgressPercent, now) {
				out.Action = ActionUnchanged
				return nil
			}
			if err := tx.Update(ctx, current); err != nil {
				return err
			}
			out.Action = ActionProgressUpdated
			return nil
		}
	})
	if err != nil {
		return Outcome{}, err
	}

	if out.Action == ActionCreated {
		l.log.Info("badge awarded by evaluation",
			logger.StudentID(studentID),
			logger.BadgeID(score.BadgeID),
			logger.AwardID(out.Award.ID),
			logger.Progress(out.Award.Progress),
		)
	}
	return out, nil
}

// ManualAward grants a badge on a coach's behalf, bypassing scoring.
// A revoked pair is reinstated; an active pair fails with ErrAlreadyAwarded.
func (l *Ledger) ManualAward(ctx context.Context, studentID, badgeID, coachID string) (*Award, error) {
	if strings.TrimSpace(coachID) == "" {
		return nil, shared.NewDomainError("award", "ManualAward", shared.ErrInvalidInput, "coach id is required")
	}

	var result *Award
	var reinstated bool

	err := l.inPair(ctx, studentID, badgeID, func(ctx context.Context, tx PairTx) error {
		current, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		now := l.now()

		if current == nil {
			a := &Award{
				ID:        l.newID(),
				StudentID: studentID,
				BadgeID:   badgeID,
				AwardedAt: now,
				AwardedBy: coachID,
				UpdatedAt: now,
			}
			if err := tx.Insert(ctx, a); err != nil {
				return err
			}
			result, reinstated = a, false
			return tx.AppendEvent(ctx, l.event(a, EventAwarded, coachID, "", now))
		}

		if err := current.Reinstate(coachID, now); err != nil {
			return err
		}
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		result, reinstated = current, true
		return tx.AppendEvent(ctx, l.event(current, EventReawarded, coachID, "", now))
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("badge awarded manually",
		logger.StudentID(studentID),
		logger.BadgeID(badgeID),
		logger.CoachID(coachID),
		logger.AwardID(result.ID),
		logger.Bool("reinstated", reinstated),
	)
	return result, nil
}

// Revoke marks an award revoked. The record is kept for audit.
func (l *Ledger) Revoke(ctx context.Context, awardID, coachID, reason string) (*Award, error) {
	existing, err := l.store.Get(ctx, awardID)
	if err != nil {
		return nil, err
	}

	var result *Award
	err = l.inPair(ctx, existing.StudentID, existing.BadgeID, func(ctx context.Context, tx PairTx) error {
		current, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		if current == nil || current.ID != awardID {
			return shared.ErrAwardNotFound
		}

		now := l.now()
		if err := current.Revoke(coachID, reason, now); err != nil {
			return err
		}
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		result = current
		return tx.AppendEvent(ctx, l.event(current, EventRevoked, coachID, reason, now))
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("award revoked",
		logger.AwardID(awardID),
		logger.StudentID(result.StudentID),
		logger.BadgeID(result.BadgeID),
		logger.CoachID(coachID),
	)
	return result, nil
}

// Get returns a single award record.
func (l *Ledger) Get(ctx context.Context, awardID string) (*Award, error) {
	return l.store.Get(ctx, awardID)
}

// Active returns the athlete's non-revoked awards.
func (l *Ledger) Active(ctx context.Context, studentID string) ([]Award, error) {
	return l.store.ListActive(ctx, studentID)
}

// History returns every award record of the athlete with its audit trail.
func (l *Ledger) History(ctx context.Context, studentID string) ([]Award, []Event, error) {
	awards, err := l.store.ListAll(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	events, err := l.store.ListEvents(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	return awards, events, nil
}

func (l *Ledger) inPair(ctx context.Context, studentID, badgeID string, fn func(ctx context.Context, tx PairTx) error) error {
	retrier := retry.LedgerRetrier(l.maxAttempts, shared.IsRetryable)

	return retrier.Do(ctx, func(ctx context.Context) error {
		err := l.store.WithinPair(ctx, studentID, badgeID, func(tx PairTx) error {
			return fn(ctx, tx)
		})
		if errors.Is(err, shared.ErrConcurrentModification) {
			l.log.Warn("pair write lost a race, retrying",
				logger.StudentID(studentID),
				logger.BadgeID(badgeID),
			)
		}
		return err
	})
}

func (l *Ledger) event(a *Award, typ EventType, actor, reason string, at time.Time) Event {
	return Event{
		ID:         l.newID(),
		AwardID:    a.ID,
		StudentID:  a.StudentID,
		BadgeID:    a.BadgeID,
		Type:       typ,
		Actor:      actor,
		Reason:     reason,
		Progress:   a.Progress,
		OccurredAt: at,
	}
}
