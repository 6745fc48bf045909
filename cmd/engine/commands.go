package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/internal/domain/metric"
	"github.com/stridehub/achievement-engine/internal/infrastructure/persistence/postgres"
	"github.com/stridehub/achievement-engine/pkg/logger"
)

// options holds every flag a command may use.
type options struct {
	sub     string
	student string
	badge   string
	coach   string
	award   string
	reason  string
	file    string
	name    string
	value   string
	sport   string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.student, "student", "", "Athlete ID")
	fs.StringVar(&o.badge, "badge", "", "Badge ID")
	fs.StringVar(&o.coach, "coach", "", "Acting coach ID")
	fs.StringVar(&o.award, "award", "", "Award ID")
	fs.StringVar(&o.reason, "reason", "", "Revocation reason")
	fs.StringVar(&o.file, "file", "", "Path to a JSON file")
	fs.StringVar(&o.name, "name", "", "Metric name, or athlete display name")
	fs.StringVar(&o.value, "value", "", "Metric value: a finite number, true or false")
	fs.StringVar(&o.sport, "sport", "", "Athlete sport")
}

type command struct {
	subcommands []string
	validate    func(o options) error
	run         func(ctx context.Context, app *App, o options) (any, error)
}

func requireFlags(flags map[string]string) error {
	var missing []string
	for name, val := range flags {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	return nil
}

func requireStudent(o options) error {
	return requireFlags(map[string]string{"student": o.student})
}

var commands = map[string]command{
	"migrate": {
		subcommands: []string{"up", "down", "status"},
		run:         runMigrate,
	},
	"athletes": {
		subcommands: []string{"upsert"},
		validate: func(o options) error {
			return requireFlags(map[string]string{"student": o.student, "sport": o.sport})
		},
		run: func(ctx context.Context, app *App, o options) (any, error) {
			name := o.name
			if strings.TrimSpace(name) == "" {
				name = o.student
			}
			if err := app.athletes.Upsert(ctx, o.student, name, o.sport); err != nil {
				return nil, err
			}
			return map[string]string{"student_id": o.student, "display_name": name, "sport": o.sport}, nil
		},
	},
	"coaches": {
		subcommands: []string{"assign"},
		validate: func(o options) error {
			return requireFlags(map[string]string{"coach": o.coach, "student": o.student})
		},
		run: func(ctx context.Context, app *App, o options) (any, error) {
			if err := app.coaches.Assign(ctx, o.coach, o.student); err != nil {
				return nil, err
			}
			return map[string]string{"coach_id": o.coach, "student_id": o.student}, nil
		},
	},
	"evaluate": {
		validate: requireStudent,
		run: func(ctx context.Context, app *App, o options) (any, error) {
			return app.engine.EvaluateAll(ctx, o.student)
		},
	},
	"progress": {
		validate: requireStudent,
		run: func(ctx context.Context, app *App, o options) (any, error) {
			return app.engine.GetProgress(ctx, o.student)
		},
	},
	"earned": {
		validate: requireStudent,
		run: func(ctx context.Context, app *App, o options) (any, error) {
			return app.engine.GetEarned(ctx, o.student)
		},
	},
	"history": {
		validate: requireStudent,
		run: func(ctx context.Context, app *App, o options) (any, error) {
			return app.engine.History(ctx, o.student)
		},
	},
	"award": {
		validate: func(o options) error {
			return requireFlags(map[string]string{"student": o.student, "badge": o.badge, "coach": o.coach})
		},
		run: func(ctx context.Context, app *App, o options) (any, error) {
			return app.engine.ManualAward(ctx, o.student, o.badge, o.coach)
		},
	},
	"revoke": {
		validate: func(o options) error {
			return requireFlags(map[string]string{"award": o.award, "coach": o.coach, "reason": o.reason})
		},
		run: func(ctx context.Context, app *App, o options) (any, error) {
			return app.engine.Revoke(ctx, o.award, o.coach, o.reason)
		},
	},
	"badges": {
		subcommands: []string{"import", "activate", "deactivate"},
		validate: func(o options) error {
			if o.sub == "import" {
				return requireFlags(map[string]string{"file": o.file})
			}
			return requireFlags(map[string]string{"badge": o.badge})
		},
		run: runBadges,
	},
	"metric": {
		subcommands: []string{"set"},
		validate: func(o options) error {
			return requireFlags(map[string]string{"student": o.student, "name": o.name, "value": o.value})
		},
		run: func(ctx context.Context, app *App, o options) (any, error) {
			v, err := parseMetricValue(o.value)
			if err != nil {
				return nil, err
			}
			if err := app.athletes.RecordMetric(ctx, o.student, o.name, v); err != nil {
				return nil, err
			}
			return map[string]any{"student_id": o.student, "name": o.name, "value": v}, nil
		},
	},
}

func runBadges(ctx context.Context, app *App, o options) (any, error) {
	switch o.sub {
	case "activate", "deactivate":
		active := o.sub == "activate"
		if err := app.catalog.SetActive(ctx, o.badge, active); err != nil {
			return nil, err
		}
		return map[string]any{"badge_id": o.badge, "is_active": active}, nil
	}

	file, err := readCatalogFile(o.file)
	if err != nil {
		return nil, err
	}
	if err := file.prepare(app.cfg.Engine.DefaultSportScope); err != nil {
		return nil, err
	}

	// Categories go first so badges can reference them.
	for _, cat := range file.Categories {
		if err := app.catalog.SaveCategory(ctx, cat); err != nil {
			return nil, fmt.Errorf("save category %q: %w", cat.ID, err)
		}
	}

	var errs []error
	imported := make([]string, 0, len(file.Badges))
	for _, b := range file.Badges {
		if err := app.catalog.Save(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("save badge %q: %w", b.ID, err))
			continue
		}
		imported = append(imported, b.ID)
	}

	app.log.Info("badges imported",
		logger.Int("categories", len(file.Categories)),
		logger.Int("count", len(imported)),
		logger.Int("rejected", len(errs)),
	)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return map[string]any{"categories": len(file.Categories), "imported": imported}, nil
}

// catalogFile is the import format. A bare JSON array is read as badges only.
type catalogFile struct {
	Categories []badge.Category `json:"categories"`
	Badges     []badge.Badge    `json:"badges"`
}

func readCatalogFile(path string) (*catalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read badges: %w", err)
	}

	var file catalogFile
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("[")) {
		err = json.Unmarshal(data, &file.Badges)
	} else {
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode badges: %w", err)
	}
	return &file, nil
}

// prepare applies the default sport scope and validates every entry.
// Nothing is written when any entry is invalid.
func (f *catalogFile) prepare(defaultSport string) error {
	var errs []error
	for _, cat := range f.Categories {
		if err := badge.ValidateCategory(cat); err != nil {
			errs = append(errs, err)
		}
	}
	for i := range f.Badges {
		if f.Badges[i].Sport == "" {
			f.Badges[i].Sport = defaultSport
		}
		if err := badge.Validate(f.Badges[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runMigrate(ctx context.Context, app *App, o options) (any, error) {
	migrator := postgres.NewMigrator(app.conn)

	switch o.sub {
	case "down":
		if err := migrator.Rollback(ctx); err != nil {
			return nil, err
		}
		app.log.Info("last migration rolled back")
		return migrationStatus(ctx, migrator)
	case "status":
		return migrationStatus(ctx, migrator)
	}

	applied, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, err
	}
	app.log.Info("migrations applied", logger.Int("count", applied))
	return map[string]int{"applied": applied}, nil
}

type migrationView struct {
	Version   int        `json:"version"`
	Name      string     `json:"name"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

func migrationStatus(ctx context.Context, migrator *postgres.Migrator) ([]migrationView, error) {
	migrations, err := migrator.Status(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]migrationView, 0, len(migrations))
	for _, m := range migrations {
		v := migrationView{Version: m.Version, Name: m.Name, Applied: m.IsApplied}
		if m.IsApplied {
			at := m.AppliedAt
			v.AppliedAt = &at
		}
		views = append(views, v)
	}
	return views, nil
}

func parseMetricValue(s string) (metric.Value, error) {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return metric.Flag(b), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return metric.Value{}, fmt.Errorf("metric value %q is neither a finite number nor true/false", s)
	}
	return metric.Number(f), nil
}
