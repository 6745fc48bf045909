package postgres

// GetMigrations returns all embedded migrations in apply order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_athletes",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_badge_catalog",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_award_ledger",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ATHLETES AND METRICS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS athletes (
    id TEXT PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    sport VARCHAR(50) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_athletes_sport ON athletes(sport);

-- Latest value per (athlete, metric). Exactly one of num_value / bool_value is set.
CREATE TABLE IF NOT EXISTS athlete_metrics (
    student_id TEXT NOT NULL REFERENCES athletes(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    num_value DOUBLE PRECISION,
    bool_value BOOLEAN,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, name),
    CONSTRAINT one_metric_value CHECK ((num_value IS NULL) <> (bool_value IS NULL))
);

CREATE TABLE IF NOT EXISTS coach_athletes (
    coach_id TEXT NOT NULL,
    student_id TEXT NOT NULL REFERENCES athletes(id) ON DELETE CASCADE,
    PRIMARY KEY (coach_id, student_id)
);
`

const migration001Down = `
DROP TABLE IF EXISTS coach_athletes;
DROP TABLE IF EXISTS athlete_metrics;
DROP TABLE IF EXISTS athletes;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: BADGE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS badge_categories (
    id TEXT PRIMARY KEY,
    name VARCHAR(100) NOT NULL
);

CREATE TABLE IF NOT EXISTS badges (
    id TEXT PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category_id TEXT REFERENCES badge_categories(id) ON DELETE SET NULL,
    level VARCHAR(20) NOT NULL,
    sport VARCHAR(50) NOT NULL DEFAULT 'all',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    origin VARCHAR(20) NOT NULL DEFAULT 'system',
    coach_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_level CHECK (level IN ('bronze', 'silver', 'gold', 'platinum')),
    CONSTRAINT valid_origin CHECK (origin IN ('system', 'coach'))
);

CREATE INDEX IF NOT EXISTS idx_badges_active_sport ON badges(sport) WHERE is_active;

CREATE TABLE IF NOT EXISTS badge_rules (
    id TEXT NOT NULL,
    badge_id TEXT NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    field_name VARCHAR(100) NOT NULL,
    operator VARCHAR(3) NOT NULL,
    threshold DOUBLE PRECISION NOT NULL,
    weight DOUBLE PRECISION NOT NULL DEFAULT 1,
    is_required BOOLEAN NOT NULL DEFAULT FALSE,
    disabled BOOLEAN NOT NULL DEFAULT FALSE,

    PRIMARY KEY (badge_id, id)
);
`

const migration002Down = `
DROP TABLE IF EXISTS badge_rules;
DROP TABLE IF EXISTS badges;
DROP TABLE IF EXISTS badge_categories;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: AWARD LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- One record per (athlete, badge). Revocation flips is_revoked in place.
CREATE TABLE IF NOT EXISTS student_badges (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    badge_id TEXT NOT NULL REFERENCES badges(id),
    progress INTEGER NOT NULL DEFAULT 0,
    awarded_at TIMESTAMP WITH TIME ZONE NOT NULL,
    awarded_by TEXT NOT NULL,
    is_revoked BOOLEAN NOT NULL DEFAULT FALSE,
    revoked_at TIMESTAMP WITH TIME ZONE,
    revoked_by TEXT NOT NULL DEFAULT '',
    revoke_reason TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_student_badge UNIQUE (student_id, badge_id),
    CONSTRAINT valid_progress CHECK (progress BETWEEN 0 AND 100)
);

CREATE INDEX IF NOT EXISTS idx_student_badges_active ON student_badges(student_id) WHERE NOT is_revoked;

CREATE TABLE IF NOT EXISTS award_events (
    id TEXT PRIMARY KEY,
    award_id TEXT NOT NULL REFERENCES student_badges(id),
    student_id TEXT NOT NULL,
    badge_id TEXT NOT NULL,
    type VARCHAR(20) NOT NULL,
    actor TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    progress INTEGER NOT NULL DEFAULT 0,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    seq BIGSERIAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_award_events_student ON award_events(student_id, seq);
`

const migration003Down = `
DROP TABLE IF EXISTS award_events;
DROP TABLE IF EXISTS student_badges;
`
