package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const badgeColumns = `
	b.id, b.name, b.description, COALESCE(b.category_id, ''), b.level, b.sport,
	b.is_active, b.origin, b.coach_id, b.created_at, b.updated_at`

// BadgeCatalog implements badge.Catalog and badge.Editor for PostgreSQL.
type BadgeCatalog struct {
	conn *Connection
}

// NewBadgeCatalog creates a new BadgeCatalog.
func NewBadgeCatalog(conn *Connection) *BadgeCatalog {
	return &BadgeCatalog{conn: conn}
}

// ListActive implements badge.Catalog. Results are ordered by badge ID.
func (c *BadgeCatalog) ListActive(ctx context.Context, sport string) ([]badge.Badge, error) {
	query := `SELECT` + badgeColumns + `
		FROM badges b
		WHERE b.is_active
		  AND (b.sport = '' OR b.sport = $1 OR lower(b.sport) = lower($2))
		ORDER BY b.id`

	rows, err := c.conn.Query(ctx, query, badge.SportAll, sport)
	if err != nil {
		return nil, fmt.Errorf("failed to query active badges: %w", err)
	}
	defer rows.Close()

	var badges []badge.Badge
	index := make(map[string]int)
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		index[b.ID] = len(badges)
		badges = append(badges, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(badges) == 0 {
		return badges, nil
	}

	ids := make([]string, len(badges))
	for i, b := range badges {
		ids[i] = b.ID
	}
	rules, err := c.loadRules(ctx, c.conn, ids)
	if err != nil {
		return nil, err
	}
	for badgeID, rs := range rules {
		badges[index[badgeID]].Rules = rs
	}
	return badges, nil
}

// Get implements badge.Catalog.
func (c *BadgeCatalog) Get(ctx context.Context, id string) (*badge.Badge, error) {
	query := `SELECT` + badgeColumns + ` FROM badges b WHERE b.id = $1`

	b, err := scanBadge(c.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrBadgeNotFound
		}
		return nil, fmt.Errorf("failed to get badge: %w", err)
	}

	rules, err := c.loadRules(ctx, c.conn, []string{id})
	if err != nil {
		return nil, err
	}
	b.Rules = rules[id]
	return b, nil
}

// Save implements badge.Editor. The badge and its full rule set are
// replaced in one transaction.
func (c *BadgeCatalog) Save(ctx context.Context, b badge.Badge) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	var coachID string
	if b.Origin.IsCoachAuthored() {
		coachID = b.Origin.CoachID
	}

	return c.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO badges (id, name, description, category_id, level, sport,
				is_active, origin, coach_id, created_at, updated_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				category_id = EXCLUDED.category_id,
				level = EXCLUDED.level,
				sport = EXCLUDED.sport,
				is_active = EXCLUDED.is_active,
				origin = EXCLUDED.origin,
				coach_id = EXCLUDED.coach_id,
				updated_at = EXCLUDED.updated_at`,
			b.ID,
			b.Name,
			b.Description,
			b.CategoryID,
			string(b.Level),
			b.Sport,
			b.Active,
			string(b.Origin.Kind),
			coachID,
			b.CreatedAt,
			now,
		)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return shared.ErrCategoryNotFound
			}
			return fmt.Errorf("failed to upsert badge: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM badge_rules WHERE badge_id = $1`, b.ID); err != nil {
			return fmt.Errorf("failed to clear badge rules: %w", err)
		}

		batch := &pgx.Batch{}
		for i, r := range b.Rules {
			batch.Queue(`
				INSERT INTO badge_rules (id, badge_id, position, field_name, operator,
					threshold, weight, is_required, disabled)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				r.ID, b.ID, i, r.FieldName, string(r.Operator),
				r.Threshold, r.Weight, r.Required, r.Disabled,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert badge rules: %w", err)
		}
		return nil
	})
}

// SetActive implements badge.Editor.
func (c *BadgeCatalog) SetActive(ctx context.Context, id string, active bool) error {
	result, err := c.conn.Exec(ctx,
		`UPDATE badges SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update badge status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrBadgeNotFound
	}
	return nil
}

// SaveCategory creates or renames a badge category.
func (c *BadgeCatalog) SaveCategory(ctx context.Context, cat badge.Category) error {
	_, err := c.conn.Exec(ctx, `
		INSERT INTO badge_categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		cat.ID, cat.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to save badge category: %w", err)
	}
	return nil
}

func (c *BadgeCatalog) loadRules(ctx context.Context, q Querier, badgeIDs []string) (map[string][]badge.Rule, error) {
	rows, err := q.Query(ctx, `
		SELECT badge_id, id, field_name, operator, threshold, weight, is_required, disabled
		FROM badge_rules
		WHERE badge_id = ANY($1)
		ORDER BY badge_id, position`,
		badgeIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query badge rules: %w", err)
	}
	defer rows.Close()

	rules := make(map[string][]badge.Rule, len(badgeIDs))
	for rows.Next() {
		var badgeID, op string
		var r badge.Rule
		if err := rows.Scan(&badgeID, &r.ID, &r.FieldName, &op,
			&r.Threshold, &r.Weight, &r.Required, &r.Disabled); err != nil {
			return nil, fmt.Errorf("failed to scan badge rule: %w", err)
		}
		r.Operator = badge.Operator(op)
		rules[badgeID] = append(rules[badgeID], r)
	}
	return rules, rows.Err()
}

func scanBadge(row pgx.Row) (*badge.Badge, error) {
	var b badge.Badge
	var level, origin, coachID string
	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.Description,
		&b.CategoryID,
		&level,
		&b.Sport,
		&b.Active,
		&origin,
		&coachID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Level = badge.Level(level)
	b.Origin = badge.Origin{Kind: badge.OriginKind(origin), CoachID: coachID}
	return &b, nil
}
