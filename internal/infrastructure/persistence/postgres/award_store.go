package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stridehub/achievement-engine/internal/domain/award"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD STORE
// Pair operations run in a transaction holding a transaction-scoped advisory
// lock on the (student, badge) key. The uq_student_badge constraint backs it
// up: a lost insert race surfaces as shared.ErrConcurrentModification.
// ══════════════════════════════════════════════════════════════════════════════

const awardColumns = `
	id, student_id, badge_id, progress, awarded_at, awarded_by,
	is_revoked, revoked_at, revoked_by, revoke_reason, updated_at`

// AwardStore implements award.Store for PostgreSQL.
type AwardStore struct {
	conn *Connection
}

// NewAwardStore creates a new AwardStore.
func NewAwardStore(conn *Connection) *AwardStore {
	return &AwardStore{conn: conn}
}

// WithinPair implements award.Store.
func (s *AwardStore) WithinPair(ctx context.Context, studentID, badgeID string, fn func(tx award.PairTx) error) error {
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1 || '/' || $2, 0))`,
			studentID, badgeID,
		); err != nil {
			return fmt.Errorf("failed to lock award pair: %w", err)
		}
		return fn(&pairTx{tx: tx, studentID: studentID, badgeID: badgeID})
	})
	return classifyPairError(err)
}

// classifyPairError maps races on the pair to shared.ErrConcurrentModification
// so the ledger retries them. Other errors pass through unchanged.
func classifyPairError(err error) error {
	if IsUniqueViolation(err) || IsSerializationFailure(err) {
		return shared.WrapError("award", "WithinPair", shared.ErrConcurrentModification,
			"award pair changed concurrently", err)
	}
	return err
}

// Get implements award.Store.
func (s *AwardStore) Get(ctx context.Context, awardID string) (*award.Award, error) {
	query := `SELECT` + awardColumns + ` FROM student_badges WHERE id = $1`

	a, err := scanAward(s.conn.QueryRow(ctx, query, awardID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAwardNotFound
		}
		return nil, fmt.Errorf("failed to get award: %w", err)
	}
	return a, nil
}

// ListActive implements award.Store.
func (s *AwardStore) ListActive(ctx context.Context, studentID string) ([]award.Award, error) {
	query := `SELECT` + awardColumns + `
		FROM student_badges
		WHERE student_id = $1 AND NOT is_revoked
		ORDER BY awarded_at, badge_id`

	return s.queryAwards(ctx, query, studentID)
}

// ListAll implements award.Store.
func (s *AwardStore) ListAll(ctx context.Context, studentID string) ([]award.Award, error) {
	query := `SELECT` + awardColumns + `
		FROM student_badges
		WHERE student_id = $1
		ORDER BY awarded_at, badge_id`

	return s.queryAwards(ctx, query, studentID)
}

// ListEvents implements award.Store.
func (s *AwardStore) ListEvents(ctx context.Context, studentID string) ([]award.Event, error) {
	query := `
		SELECT id, award_id, student_id, badge_id, type, actor, reason, progress, occurred_at
		FROM award_events
		WHERE student_id = $1
		ORDER BY seq`

	rows, err := s.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query award events: %w", err)
	}
	defer rows.Close()

	var events []award.Event
	for rows.Next() {
		var e award.Event
		var typ string
		if err := rows.Scan(&e.ID, &e.AwardID, &e.StudentID, &e.BadgeID, &typ,
			&e.Actor, &e.Reason, &e.Progress, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan award event: %w", err)
		}
		e.Type = award.EventType(typ)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *AwardStore) queryAwards(ctx context.Context, query string, args ...any) ([]award.Award, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query awards: %w", err)
	}
	defer rows.Close()

	var awards []award.Award
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan award: %w", err)
		}
		awards = append(awards, *a)
	}
	return awards, rows.Err()
}

func scanAward(row pgx.Row) (*award.Award, error) {
	var a award.Award
	err := row.Scan(
		&a.ID,
		&a.StudentID,
		&a.BadgeID,
		&a.Progress,
		&a.AwardedAt,
		&a.AwardedBy,
		&a.IsRevoked,
		&a.RevokedAt,
		&a.RevokedBy,
		&a.RevokeReason,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Pair transaction
// ─────────────────────────────────────────────────────────────────────────────

type pairTx struct {
	tx        pgx.Tx
	studentID string
	badgeID   string
}

func (t *pairTx) Load(ctx context.Context) (*award.Award, error) {
	query := `SELECT` + awardColumns + `
		FROM student_badges
		WHERE student_id = $1 AND badge_id = $2
		FOR UPDATE`

	a, err := scanAward(t.tx.QueryRow(ctx, query, t.studentID, t.badgeID))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load award pair: %w", err)
	}
	return a, nil
}

func (t *pairTx) Insert(ctx context.Context, a *award.Award) error {
	query := `
		INSERT INTO student_badges (` + awardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := t.tx.Exec(ctx, query,
		a.ID,
		a.StudentID,
		a.BadgeID,
		a.Progress,
		a.AwardedAt,
		a.AwardedBy,
		a.IsRevoked,
		a.RevokedAt,
		a.RevokedBy,
		a.RevokeReason,
		a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert award: %w", err)
	}
	return nil
}

func (t *pairTx) Update(ctx context.Context, a *award.Award) error {
	query := `
		UPDATE student_badges SET
			progress = $1,
			awarded_at = $2,
			awarded_by = $3,
			is_revoked = $4,
			revoked_at = $5,
			revoked_by = $6,
			revoke_reason = $7,
			updated_at = $8
		WHERE id = $9`

	result, err := t.tx.Exec(ctx, query,
		a.Progress,
		a.AwardedAt,
		a.AwardedBy,
		a.IsRevoked,
		a.RevokedAt,
		a.RevokedBy,
		a.RevokeReason,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update award: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrAwardNotFound
	}
	return nil
}

func (t *pairTx) AppendEvent(ctx context.Context, e award.Event) error {
	query := `
		INSERT INTO award_events (id, award_id, student_id, badge_id, type, actor, reason, progress, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := t.tx.Exec(ctx, query,
		e.ID,
		e.AwardID,
		e.StudentID,
		e.BadgeID,
		string(e.Type),
		e.Actor,
		e.Reason,
		e.Progress,
		e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append award event: %w", err)
	}
	return nil
}
