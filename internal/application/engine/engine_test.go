package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridehub/achievement-engine/internal/application/engine"
	"github.com/stridehub/achievement-engine/internal/domain/award"
	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/internal/domain/metric"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
	"github.com/stridehub/achievement-engine/internal/infrastructure/persistence/memory"
)

type coachRoster map[string]map[string]bool

func (r coachRoster) Authorize(_ context.Context, coachID, studentID string) error {
	if r[coachID][studentID] {
		return nil
	}
	return shared.NewDomainError("coach", "Authorize", shared.ErrUnauthorized, "coach does not train athlete")
}

type harness struct {
	engine   *engine.Engine
	athletes *memory.Athletes
	catalog  *memory.Catalog
	store    *memory.AwardStore
}

func rule(id, field string, op badge.Operator, threshold, weight float64, required bool) badge.Rule {
	return badge.Rule{ID: id, FieldName: field, Operator: op, Threshold: threshold, Weight: weight, Required: required}
}

func runnerBadges() []badge.Badge {
	return []badge.Badge{
		{
			ID: "endurance", Name: "Endurance", Level: badge.LevelSilver, Sport: "running", Active: true,
			Origin: badge.SystemOrigin(),
			Rules: []badge.Rule{
				rule("r1", "speed", badge.OpGreaterOrEqual, 10, 1, true),
				rule("r2", "endurance", badge.OpGreaterOrEqual, 50, 2, false),
			},
		},
		{
			ID: "consistency", Name: "Consistency", Level: badge.LevelBronze, Sport: badge.SportAll, Active: true,
			Origin: badge.SystemOrigin(),
			Rules:  []badge.Rule{rule("c1", "sessions", badge.OpGreaterOrEqual, 12, 1, false)},
		},
		{
			ID: "broken", Name: "Broken", Level: badge.LevelGold, Active: true,
			Origin: badge.SystemOrigin(),
			Rules:  []badge.Rule{rule("x1", "", badge.OpGreaterThan, 1, 1, false)},
		},
		{
			ID: "swim", Name: "Swimmer", Level: badge.LevelBronze, Sport: "swimming", Active: true,
			Origin: badge.SystemOrigin(),
			Rules:  []badge.Rule{rule("s1", "laps", badge.OpGreaterOrEqual, 1, 1, false)},
		},
		{
			ID: "retired", Name: "Retired", Level: badge.LevelBronze, Active: false,
			Origin: badge.SystemOrigin(),
			Rules:  []badge.Rule{rule("t1", "sessions", badge.OpGreaterOrEqual, 1, 1, false)},
		},
	}
}

func newHarness(auth engine.Authorizer) *harness {
	var seq atomic.Int64
	athletes := memory.NewAthletes()
	athletes.Add("athlete-1", "running")
	catalog := memory.NewCatalog(runnerBadges()...)
	store := memory.NewAwardStore()
	ledger := award.NewLedger(store,
		award.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)

	e := engine.New(engine.Dependencies{
		Catalog:    catalog,
		Metrics:    athletes,
		Athletes:   athletes,
		Ledger:     ledger,
		Authorizer: auth,
	}, engine.Config{MaxParallelBadges: 2})

	return &harness{engine: e, athletes: athletes, catalog: catalog, store: store}
}

func outcomeFor(t *testing.T, res *engine.EvaluationResult, badgeID string) award.Outcome {
	t.Helper()
	for _, o := range res.Outcomes {
		if o.BadgeID == badgeID {
			return o
		}
	}
	t.Fatalf("no outcome for badge %s", badgeID)
	return award.Outcome{}
}

func TestEvaluateAll_AwardsEarnedBadgesAndReportsBrokenOnes(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()
	h.athletes.SetMetric("athlete-1", "speed", metric.Number(12))
	h.athletes.SetMetric("athlete-1", "endurance", metric.Number(40))
	h.athletes.SetMetric("athlete-1", "sessions", metric.Number(20))

	res, err := h.engine.EvaluateAll(ctx, "athlete-1")
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	endurance := outcomeFor(t, res, "endurance")
	assert.Equal(t, award.ActionNotEarned, endurance.Action)
	assert.Equal(t, 33, endurance.Score.ProgressPercent)

	consistency := outcomeFor(t, res, "consistency")
	assert.Equal(t, award.ActionCreated, consistency.Action)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "broken", res.Failures[0].BadgeID)
	assert.ErrorIs(t, res.Failures[0].Err, shared.ErrBadgeConfigInvalid)

	require.Len(t, res.NewAwards(), 1)
	assert.Equal(t, "consistency", res.NewAwards()[0].BadgeID)
}

func TestEvaluateAll_IsIdempotent(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()
	h.athletes.SetMetric("athlete-1", "speed", metric.Number(12))
	h.athletes.SetMetric("athlete-1", "endurance", metric.Number(60))

	first, err := h.engine.EvaluateAll(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Equal(t, award.ActionCreated, outcomeFor(t, first, "endurance").Action)

	second, err := h.engine.EvaluateAll(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Equal(t, award.ActionUnchanged, outcomeFor(t, second, "endurance").Action)
	assert.Empty(t, second.NewAwards())

	earned, err := h.engine.GetEarned(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Len(t, earned, 1)
}

func TestEvaluateAll_RegressionKeepsAward(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()
	h.athletes.SetMetric("athlete-1", "speed", metric.Number(12))
	h.athletes.SetMetric("athlete-1", "endurance", metric.Number(60))

	_, err := h.engine.EvaluateAll(ctx, "athlete-1")
	require.NoError(t, err)

	h.athletes.SetMetric("athlete-1", "endurance", metric.Number(10))
	res, err := h.engine.EvaluateAll(ctx, "athlete-1")
	require.NoError(t, err)

	out := outcomeFor(t, res, "endurance")
	assert.Equal(t, award.ActionProgressUpdated, out.Action)
	assert.Equal(t, 33, out.Award.Progress)

	earned, err := h.engine.GetEarned(ctx, "athlete-1")
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, 33, earned[0].Progress)
}

func TestEvaluateAll_UnknownAthlete(t *testing.T) {
	h := newHarness(nil)

	_, err := h.engine.EvaluateAll(context.Background(), "ghost")
	assert.ErrorIs(t, err, shared.ErrAthleteNotFound)
}

func TestGetProgress_NeverWrites(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()
	h.athletes.SetMetric("athlete-1", "speed", metric.Number(12))
	h.athletes.SetMetric("athlete-1", "endurance", metric.Number(60))
	h.athletes.SetMetric("athlete-1", "sessions", metric.Number(3))

	res, err := h.engine.GetProgress(ctx, "athlete-1")
	require.NoError(t, err)
	require.Len(t, res.Scores, 2)
	require.Len(t, res.Failures, 1)

	byID := map[string]badge.ScoreResult{}
	for _, s := range res.Scores {
		byID[s.BadgeID] = s
	}
	assert.True(t, byID["endurance"].IsEarned)
	assert.Equal(t, 100, byID["endurance"].ProgressPercent)
	assert.False(t, byID["consistency"].IsEarned)

	all, err := h.store.ListAll(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestManualAward_ChecksAuthorizationAndCatalog(t *testing.T) {
	roster := coachRoster{"coach-1": {"athlete-1": true}}
	h := newHarness(roster)
	ctx := context.Background()

	_, err := h.engine.ManualAward(ctx, "athlete-1", "endurance", "coach-2")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = h.engine.ManualAward(ctx, "athlete-1", "missing", "coach-1")
	assert.ErrorIs(t, err, shared.ErrBadgeNotFound)

	_, err = h.engine.ManualAward(ctx, "athlete-1", "retired", "coach-1")
	assert.ErrorIs(t, err, shared.ErrBadgeInactive)

	a, err := h.engine.ManualAward(ctx, "athlete-1", "endurance", "coach-1")
	require.NoError(t, err)
	assert.Equal(t, "coach-1", a.AwardedBy)
	assert.Equal(t, 0, a.Progress)

	_, err = h.engine.ManualAward(ctx, "athlete-1", "endurance", "coach-1")
	assert.ErrorIs(t, err, shared.ErrAlreadyAwarded)
}

func TestManualAward_UnknownAthlete(t *testing.T) {
	h := newHarness(nil)

	_, err := h.engine.ManualAward(context.Background(), "ghost", "endurance", "coach-1")
	assert.ErrorIs(t, err, shared.ErrAthleteNotFound)
}

func TestRevoke_IsStickyAcrossEvaluations(t *testing.T) {
	roster := coachRoster{"coach-1": {"athlete-1": true}}
	h := newHarness(roster)
	ctx := context.Background()
	h.athletes.SetMetric("athlete-1", "sessions", metric.Number(30))

	res, err := h.engine.EvaluateAll(ctx, "athlete-1")
	require.NoError(t, err)
	created := outcomeFor(t, res, "consistency")
	require.Equal(t, award.ActionCreated, created.Action)

	_, err = h.engine.Revoke(ctx, created.Award.ID, "coach-1", "  ")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = h.engine.Revoke(ctx, created.Award.ID, "coach-2", "wrong coach")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = h.engine.Revoke(ctx, "missing", "coach-1", "typo")
	assert.ErrorIs(t, err, shared.ErrAwardNotFound)

	revoked, err := h.engine.Revoke(ctx, created.Award.ID, "coach-1", "manual data was wrong")
	require.NoError(t, err)
	assert.True(t, revoked.IsRevoked)

	res, err = h.engine.EvaluateAll(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Equal(t, award.ActionRevokedSticky, outcomeFor(t, res, "consistency").Action)

	earned, err := h.engine.GetEarned(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Empty(t, earned)

	history, err := h.engine.History(ctx, "athlete-1")
	require.NoError(t, err)
	require.Len(t, history.Awards, 1)
	assert.True(t, history.Awards[0].IsRevoked)
	require.Len(t, history.Events, 2)
	assert.Equal(t, award.EventRevoked, history.Events[1].Type)
}

type failingSource struct{}

func (failingSource) Snapshot(context.Context, string) (metric.Snapshot, error) {
	return metric.Snapshot{}, errors.New("metrics backend down")
}

func TestEvaluateAll_MetricSourceFailureAborts(t *testing.T) {
	athletes := memory.NewAthletes()
	athletes.Add("athlete-1", "running")
	e := engine.New(engine.Dependencies{
		Catalog:  memory.NewCatalog(runnerBadges()...),
		Metrics:  failingSource{},
		Athletes: athletes,
		Ledger:   award.NewLedger(memory.NewAwardStore()),
	}, engine.DefaultConfig())

	_, err := e.EvaluateAll(context.Background(), "athlete-1")
	assert.EqualError(t, err, "metrics backend down")
}
