package postgres

import (
	"context"
	"fmt"

	"github.com/stridehub/achievement-engine/internal/domain/metric"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATHLETE REPOSITORY
// Athlete directory, metric source and coach roster in one place since they
// share the athletes table.
// ══════════════════════════════════════════════════════════════════════════════

// AthleteRepository resolves athletes, their metrics and their coaches.
type AthleteRepository struct {
	conn *Connection
}

// NewAthleteRepository creates a new AthleteRepository.
func NewAthleteRepository(conn *Connection) *AthleteRepository {
	return &AthleteRepository{conn: conn}
}

// SportOf returns the athlete's sport.
func (r *AthleteRepository) SportOf(ctx context.Context, studentID string) (string, error) {
	var sport string
	err := r.conn.QueryRow(ctx, `SELECT sport FROM athletes WHERE id = $1`, studentID).Scan(&sport)
	if err != nil {
		if IsNoRows(err) {
			return "", shared.ErrAthleteNotFound
		}
		return "", fmt.Errorf("failed to get athlete sport: %w", err)
	}
	return sport, nil
}

// Snapshot implements metric.Source. An athlete with no metrics gets an
// empty snapshot; every rule then reads as missing.
func (r *AthleteRepository) Snapshot(ctx context.Context, studentID string) (metric.Snapshot, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT name, num_value, bool_value
		FROM athlete_metrics
		WHERE student_id = $1`,
		studentID,
	)
	if err != nil {
		return metric.Snapshot{}, fmt.Errorf("failed to query athlete metrics: %w", err)
	}
	defer rows.Close()

	values := make(map[string]metric.Value)
	for rows.Next() {
		var name string
		var num *float64
		var flag *bool
		if err := rows.Scan(&name, &num, &flag); err != nil {
			return metric.Snapshot{}, fmt.Errorf("failed to scan athlete metric: %w", err)
		}
		switch {
		case num != nil:
			values[name] = metric.Number(*num)
		case flag != nil:
			values[name] = metric.Flag(*flag)
		}
	}
	if err := rows.Err(); err != nil {
		return metric.Snapshot{}, err
	}
	return metric.NewSnapshot(studentID, values), nil
}

// Upsert creates or updates an athlete.
func (r *AthleteRepository) Upsert(ctx context.Context, studentID, displayName, sport string) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO athletes (id, display_name, sport) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, sport = EXCLUDED.sport`,
		studentID, displayName, sport,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert athlete: %w", err)
	}
	return nil
}

// RecordMetric stores the latest value of a metric.
func (r *AthleteRepository) RecordMetric(ctx context.Context, studentID, name string, v metric.Value) error {
	if _, ok := v.Numeric(); !ok {
		return shared.NewDomainError("metric", "Record", shared.ErrInvalidInput,
			fmt.Sprintf("metric %q: value must be a finite number or a boolean", name))
	}

	var num *float64
	var flag *bool
	if v.Kind == metric.KindBool {
		flag = &v.Bool
	} else {
		num = &v.Num
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO athlete_metrics (student_id, name, num_value, bool_value, recorded_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (student_id, name) DO UPDATE SET
			num_value = EXCLUDED.num_value,
			bool_value = EXCLUDED.bool_value,
			recorded_at = EXCLUDED.recorded_at`,
		studentID, name, num, flag,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrAthleteNotFound
		}
		return fmt.Errorf("failed to record athlete metric: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Coach access
// ─────────────────────────────────────────────────────────────────────────────

// CoachAccess authorizes coach actions against the coach_athletes roster.
type CoachAccess struct {
	conn *Connection
}

// NewCoachAccess creates a new CoachAccess.
func NewCoachAccess(conn *Connection) *CoachAccess {
	return &CoachAccess{conn: conn}
}

// Authorize returns shared.ErrUnauthorized unless coachID trains studentID.
func (a *CoachAccess) Authorize(ctx context.Context, coachID, studentID string) error {
	var ok bool
	err := a.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM coach_athletes WHERE coach_id = $1 AND student_id = $2)`,
		coachID, studentID,
	).Scan(&ok)
	if err != nil {
		return fmt.Errorf("failed to check coach roster: %w", err)
	}
	if !ok {
		return shared.NewDomainError("coach", "Authorize", shared.ErrUnauthorized,
			fmt.Sprintf("coach %s does not train athlete %s", coachID, studentID))
	}
	return nil
}

// Assign adds studentID to coachID's roster.
func (a *CoachAccess) Assign(ctx context.Context, coachID, studentID string) error {
	_, err := a.conn.Exec(ctx, `
		INSERT INTO coach_athletes (coach_id, student_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		coachID, studentID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign athlete to coach: %w", err)
	}
	return nil
}
