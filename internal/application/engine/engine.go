// Package engine is the caller-facing surface of the achievement engine.
// It orchestrates metric snapshots, badge scoring and the award ledger.
package engine

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/stridehub/achievement-engine/internal/domain/award"
	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/internal/domain/metric"
	"github.com/stridehub/achievement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION ORCHESTRATOR
// Flow: Athlete Sport → Active Badges → Metric Snapshot →
//
//	per badge (parallel): Validate → Score → Reconcile
//
// A badge that fails validation or reconciliation is reported and skipped;
// it never blocks the remaining badges.
// ══════════════════════════════════════════════════════════════════════════════

// AthleteDirectory resolves athlete attributes the engine needs.
type AthleteDirectory interface {
	// SportOf returns the athlete's sport. Returns shared.ErrAthleteNotFound.
	SportOf(ctx context.Context, studentID string) (string, error)
}

// Authorizer decides whether a coach may act on an athlete.
// It returns an error wrapping shared.ErrUnauthorized on refusal.
type Authorizer interface {
	Authorize(ctx context.Context, coachID, studentID string) error
}

// BadgeFailure reports a badge skipped during evaluation.
type BadgeFailure struct {
	BadgeID string `json:"badge_id"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

// EvaluationResult is returned by EvaluateAll.
type EvaluationResult struct {
	StudentID   string          `json:"student_id"`
	Outcomes    []award.Outcome `json:"outcomes"`
	Failures    []BadgeFailure  `json:"failures,omitempty"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// NewAwards returns the awards created by this evaluation.
func (r *EvaluationResult) NewAwards() []award.Award {
	var out []award.Award
	for _, o := range r.Outcomes {
		if o.Action == award.ActionCreated && o.Award != nil {
			out = append(out, *o.Award)
		}
	}
	return out
}

// ProgressResult is returned by GetProgress.
type ProgressResult struct {
	StudentID string              `json:"student_id"`
	Scores    []badge.ScoreResult `json:"scores"`
	Failures  []BadgeFailure      `json:"failures,omitempty"`
}

// HistoryResult is the audit view of an athlete's awards.
type HistoryResult struct {
	StudentID string        `json:"student_id"`
	Awards    []award.Award `json:"awards"`
	Events    []award.Event `json:"events"`
}

// Config tunes the engine.
type Config struct {
	// MaxParallelBadges bounds concurrent per-badge work for one athlete.
	MaxParallelBadges int
}

// DefaultConfig returns default engine configuration.
func DefaultConfig() Config {
	return Config{MaxParallelBadges: 4}
}

// Dependencies are the collaborators of the engine.
type Dependencies struct {
	Catalog    badge.Catalog
	Metrics    metric.Source
	Athletes   AthleteDirectory
	Ledger     *award.Ledger
	Scorer     *badge.Scorer
	Authorizer Authorizer
	Logger     *logger.Logger
}

// Engine runs evaluations and operator actions.
type Engine struct {
	catalog     badge.Catalog
	metrics     metric.Source
	athletes    AthleteDirectory
	ledger      *award.Ledger
	scorer      *badge.Scorer
	authorizer  Authorizer
	log         *logger.Logger
	maxParallel int
	now         func() time.Time
}

// New creates an Engine.
func New(deps Dependencies, cfg Config) *Engine {
	if deps.Scorer == nil {
		deps.Scorer = badge.NewScorer(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if cfg.MaxParallelBadges <= 0 {
		cfg.MaxParallelBadges = DefaultConfig().MaxParallelBadges
	}

	return &Engine{
		catalog:     deps.Catalog,
		metrics:     deps.Metrics,
		athletes:    deps.Athletes,
		ledger:      deps.Ledger,
		scorer:      deps.Scorer,
		authorizer:  deps.Authorizer,
		log:         deps.Logger.With(logger.Component("engine")),
		maxParallel: cfg.MaxParallelBadges,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// evaluationInput is what every badge run of one athlete shares.
type evaluationInput struct {
	sport    string
	badges   []badge.Badge
	snapshot metric.Snapshot
}

func (e *Engine) loadInput(ctx context.Context, studentID string) (*evaluationInput, error) {
	sport, err := e.athletes.SportOf(ctx, studentID)
	if err != nil {
		return nil, err
	}

	badges, err := e.catalog.ListActive(ctx, sport)
	if err != nil {
		return nil, err
	}

	applicable := badges[:0:0]
	for _, b := range badges {
		if b.Active && b.AppliesTo(sport) {
			applicable = append(applicable, b)
		}
	}

	snap, err := e.metrics.Snapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return &evaluationInput{sport: sport, badges: applicable, snapshot: snap}, nil
}

type badgeRun struct {
	badgeID string
	score   badge.ScoreResult
	outcome award.Outcome
	err     error
}

// EvaluateAll scores every applicable active badge for the athlete and
// commits the results to the ledger. It is safe to call repeatedly.
func (e *Engine) EvaluateAll(ctx context.Context, studentID string) (*EvaluationResult, error) {
	start := time.Now()
	in, err := e.loadInput(ctx, studentID)
	if err != nil {
		return nil, err
	}

	runs := iter.Mapper[badge.Badge, badgeRun]{MaxGoroutines: e.maxParallel}.Map(in.badges,
		func(b *badge.Badge) badgeRun {
			run := badgeRun{badgeID: b.ID}
			if run.err = badge.Validate(*b); run.err != nil {
				return run
			}
			run.score = e.scorer.Score(*b, in.snapshot)
			run.outcome, run.err = e.ledger.Reconcile(ctx, studentID, run.score)
			return run
		})

	result := &EvaluationResult{
		StudentID:   studentID,
		Outcomes:    make([]award.Outcome, 0, len(runs)),
		EvaluatedAt: e.now(),
	}
	var changed int
	for _, run := range runs {
		if run.err != nil {
			result.Failures = append(result.Failures, e.failure(studentID, run.badgeID, run.err))
			continue
		}
		if run.outcome.Changed() {
			changed++
		}
		result.Outcomes = append(result.Outcomes, run.outcome)
	}

	e.log.Debug("evaluation finished",
		logger.StudentID(studentID),
		logger.Int("badges", len(in.badges)),
		logger.Int("new_awards", len(result.NewAwards())),
		logger.Int("ledger_writes", changed),
		logger.Int("failures", len(result.Failures)),
		logger.Latency(time.Since(start)),
	)
	return result, nil
}

// GetProgress scores every applicable active badge without touching the
// ledger. Intended for frequent reads such as progress bars.
func (e *Engine) GetProgress(ctx context.Context, studentID string) (*ProgressResult, error) {
	in, err := e.loadInput(ctx, studentID)
	if err != nil {
		return nil, err
	}

	result := &ProgressResult{
		StudentID: studentID,
		Scores:    make([]badge.ScoreResult, 0, len(in.badges)),
	}
	for _, b := range in.badges {
		if err := badge.Validate(b); err != nil {
			result.Failures = append(result.Failures, e.failure(studentID, b.ID, err))
			continue
		}
		result.Scores = append(result.Scores, e.scorer.Score(b, in.snapshot))
	}
	return result, nil
}

// GetEarned returns the athlete's active awards without scoring.
func (e *Engine) GetEarned(ctx context.Context, studentID string) ([]award.Award, error) {
	return e.ledger.Active(ctx, studentID)
}

// History returns every award record of the athlete, revoked included,
// with the audit trail.
func (e *Engine) History(ctx context.Context, studentID string) (*HistoryResult, error) {
	awards, events, err := e.ledger.History(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &HistoryResult{StudentID: studentID, Awards: awards, Events: events}, nil
}

func (e *Engine) failure(studentID, badgeID string, err error) BadgeFailure {
	e.log.Warn("badge skipped during evaluation",
		logger.StudentID(studentID),
		logger.BadgeID(badgeID),
		logger.Err(err),
	)
	return BadgeFailure{BadgeID: badgeID, Reason: err.Error(), Err: err}
}
