package commands

import (
	"context"
	"fmt"

	"github.com/wonny/indexmodel/internal/indexconfig"
	"github.com/wonny/indexmodel/internal/levelstore"
	"github.com/wonny/indexmodel/internal/pipeline"
	"github.com/wonny/indexmodel/internal/prices"
	"github.com/wonny/indexmodel/pkg/config"
	"github.com/wonny/indexmodel/pkg/database"
	"github.com/wonny/indexmodel/pkg/logger"
	"github.com/wonny/indexmodel/pkg/redis"
)

// deps holds what every command builds from config and flags
type deps struct {
	cfg       *config.Config
	log       *logger.Logger
	rules     *indexconfig.Config
	rulesYAML []byte

	db    *database.DB  // nil unless a command needs Postgres
	redis *redis.Client // disabled unless REDIS_ENABLED
}

// loadDeps loads config, applies global flags and reads the index rules
func loadDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if rulesFile != "" {
		cfg.Index.RulesFile = rulesFile
	}
	if priceFile != "" {
		cfg.Index.PriceFile = priceFile
	}
	if priceSrc != "" {
		cfg.Index.PriceSource = priceSrc
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	rules, data, err := indexconfig.LoadOrDefault(cfg.Index.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load index rules: %w", err)
	}
	for _, w := range indexconfig.Warn(rules) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	return &deps{cfg: cfg, log: log, rules: rules, rulesYAML: data}, nil
}

// connect opens Postgres when DATABASE_URL is set (or required) and Redis when enabled
func (d *deps) connect(ctx context.Context, requireDB bool) error {
	if d.cfg.Database.URL != "" || requireDB {
		db, err := database.New(ctx, d.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		d.db = db
		d.log.Info("Connected to database")
	}

	client, err := redis.New(ctx, d.cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	d.redis = client
	if client.Enabled() {
		d.log.Info("Connected to redis")
	}

	return nil
}

// close releases connections opened by connect
func (d *deps) close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.log.WithError(err).Warn("Failed to close redis")
		}
	}
}

// loader returns the configured price source, cached in Redis when enabled
func (d *deps) loader() (prices.TableLoader, error) {
	var source prices.TableLoader

	switch d.cfg.Index.PriceSource {
	case config.PriceSourceCSV:
		source = prices.FileLoader{Path: d.cfg.Index.PriceFile}
	case config.PriceSourcePostgres:
		if d.db == nil {
			return nil, database.ErrNoDatabaseURL
		}
		source = prices.NewRepository(d.db.Pool)
	default:
		return nil, fmt.Errorf("unknown price source %q", d.cfg.Index.PriceSource)
	}

	if d.redis == nil || !d.redis.Enabled() {
		return source, nil
	}
	return prices.NewCachedLoader(source, d.cache(), d.cfg.Index.PriceCacheTTL, d.log), nil
}

func (d *deps) cache() *redis.Cache {
	return redis.NewCache(d.redis, "indexmodel")
}

// store returns the level store when Postgres is connected
func (d *deps) store(ctx context.Context) (*levelstore.Repository, error) {
	if d.db == nil {
		return nil, nil
	}
	repo := levelstore.NewRepository(d.db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// orchestrator wires the compute pipeline; publisher may be nil
func (d *deps) orchestrator(ctx context.Context, persist bool, publisher pipeline.Publisher) (*pipeline.Orchestrator, error) {
	loader, err := d.loader()
	if err != nil {
		return nil, err
	}

	var store *levelstore.Repository
	if persist {
		if store, err = d.store(ctx); err != nil {
			return nil, err
		}
		if store == nil {
			d.log.Warn("DATABASE_URL not set, levels will not be persisted")
		}
	}

	return pipeline.NewOrchestrator(d.rules, d.rulesYAML, loader, store, publisher, d.log), nil
}
