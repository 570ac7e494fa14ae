package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mpm/stuplan/internal/catalog"
	"github.com/mpm/stuplan/internal/config"
	"github.com/mpm/stuplan/internal/conversation"
	"github.com/mpm/stuplan/internal/flow"
	"github.com/mpm/stuplan/internal/logging"
	"github.com/mpm/stuplan/internal/metrics"
	"github.com/mpm/stuplan/internal/persistence"
	"github.com/mpm/stuplan/internal/planner"
	"github.com/mpm/stuplan/internal/store"
)

// app holds the wired components shared by commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     conversation.Store
	local     *persistence.LocalStore
	metrics   *metrics.Metrics
	terms     planner.AcademicTerms
	processor *flow.Processor
}

// openApp loads configuration and wires the processor. The caller must
// call the returned cleanup function when done.
func openApp(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	convStore, closeStore, err := openConversationStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeStore)

	kv, closeKV, err := openKeyValueStore(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeKV)

	terms := planner.DefaultAcademicTerms()
	if cfg.TermsFile != "" {
		terms, err = planner.LoadAcademicTerms(cfg.TermsFile)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	directory := catalog.Empty()
	if cfg.CatalogFile != "" {
		directory, err = catalog.Load(cfg.CatalogFile)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	local := persistence.NewLocalStore(kv,
		persistence.WithTTL(cfg.Conversation.TTL),
		persistence.WithMaxEntries(cfg.Conversation.MaxIndexEntries),
		persistence.WithLogger(logger),
	)
	m := metrics.New()

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   convStore,
		local:   local,
		metrics: m,
		terms:   terms,
		processor: flow.NewProcessor(flow.Options{
			Local:     local,
			Store:     convStore,
			Generator: planner.NewGenerator(),
			Directory: directory,
			Terms:     terms,
			Metrics:   m,
			Logger:    logger,
		}),
	}
	return a, cleanup, nil
}

// openConversationStore opens the configured database and migrates it.
func openConversationStore(ctx context.Context, cfg *config.Config) (conversation.Store, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := store.ConnectPostgres(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return conversation.NewPostgresStore(pool), pool.Close, nil

	default:
		db, err := store.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return conversation.NewSQLiteStore(db), func() { db.Close() }, nil
	}
}

// openKeyValueStore builds the substrate for local conversation state.
func openKeyValueStore(ctx context.Context, cfg *config.Config) (persistence.KeyValueStore, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		client, err := persistence.ConnectRedis(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return persistence.NewRedisKV(client, cfg.Storage.KeyPrefix), func() { client.Close() }, nil
	case config.BackendMemory:
		return persistence.NewMemoryKV(), func() {}, nil
	default:
		return persistence.NewFileKV(cfg.Storage.Dir), func() {}, nil
	}
}
