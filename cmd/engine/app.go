package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stridehub/achievement-engine/config"
	"github.com/stridehub/achievement-engine/internal/application/engine"
	"github.com/stridehub/achievement-engine/internal/domain/award"
	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/internal/infrastructure/persistence/postgres"
	"github.com/stridehub/achievement-engine/internal/infrastructure/persistence/redis"
	"github.com/stridehub/achievement-engine/pkg/logger"
	"github.com/stridehub/achievement-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// Config → Logger → PostgreSQL → (Redis catalog cache) → Ledger → Engine
// ══════════════════════════════════════════════════════════════════════════════

// App holds the wired dependencies of one CLI invocation.
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	conn     *postgres.Connection
	cache    *redis.Cache
	catalog  redis.BackingCatalog
	athletes *postgres.AthleteRepository
	coaches  *postgres.CoachAccess
	engine   *engine.Engine
}

func newApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Output:    os.Stderr,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		c, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, retry.Retryable(err)
		}
		return c, nil
	},
		retry.WithMaxAttempts(5),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithMaxDelay(5*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not reachable, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	app := &App{
		cfg:      cfg,
		log:      log,
		conn:     conn,
		athletes: postgres.NewAthleteRepository(conn),
		coaches:  postgres.NewCoachAccess(conn),
	}

	var catalog redis.BackingCatalog = postgres.NewBadgeCatalog(conn)
	if cfg.Features.IsEnabled(config.FeatureCatalogCache) && !cfg.Redis.Disabled {
		cache, err := app.connectRedis(ctx)
		if err != nil {
			log.Warn("catalog cache disabled", logger.Err(err))
		} else {
			app.cache = cache
			catalog = redis.NewCatalogCache(cache, catalog, cfg.Engine.CatalogCacheTTL, log)
		}
	}
	app.catalog = catalog

	var policy badge.CreditPolicy
	if cfg.Features.IsEnabled(config.FeatureLinearCredit) {
		policy = badge.LinearCredit{}
	}

	var authorizer engine.Authorizer
	if cfg.Features.IsEnabled(config.FeatureCoachAuthorization) {
		authorizer = app.coaches
	}

	ledger := award.NewLedger(postgres.NewAwardStore(conn),
		award.WithLogger(log),
		award.WithMaxAttempts(cfg.Engine.ReconcileMaxAttempts),
	)

	app.engine = engine.New(engine.Dependencies{
		Catalog:    catalog,
		Metrics:    app.athletes,
		Athletes:   app.athletes,
		Ledger:     ledger,
		Scorer:     badge.NewScorer(badge.NewEvaluator(policy)),
		Authorizer: authorizer,
		Logger:     log,
	}, engine.Config{MaxParallelBadges: cfg.Engine.MaxParallelBadges})

	return app, nil
}

func (a *App) connectRedis(ctx context.Context) (*redis.Cache, error) {
	rc := redis.DefaultConfig()
	rc.Addr = a.cfg.Redis.Addr
	rc.Password = a.cfg.Redis.Password
	rc.DB = a.cfg.Redis.DB
	rc.PoolSize = a.cfg.Redis.PoolSize
	rc.DialTimeout = a.cfg.Redis.DialTimeout
	rc.ReadTimeout = a.cfg.Redis.ReadTimeout
	rc.WriteTimeout = a.cfg.Redis.WriteTimeout
	rc.KeyPrefix = a.cfg.Redis.KeyPrefix
	return redis.NewCache(ctx, rc)
}

// Close releases connections and flushes logs.
func (a *App) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	a.conn.Close()
	_ = a.log.Sync()
}
