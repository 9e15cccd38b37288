// Package app builds the service graph from configuration. Both binaries use
// it so the server and the CLI always agree on catalog and embedder choice.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"hotelchat/internal/cache"
	"hotelchat/internal/config"
	"hotelchat/internal/embedding"
	"hotelchat/internal/location"
	"hotelchat/internal/repository"
	"hotelchat/internal/service"
)

// App holds the wired components
type App struct {
	Config    *config.Config
	Catalog   repository.Catalog
	Embedder  embedding.Embedder
	Locations *location.CachedSource
	Ranker    *service.Ranker
	Tool      *service.RoomSearchTool
	Loader    *service.CatalogLoader
	Cache     *cache.Cache

	log     zerolog.Logger
	closers []func() error
}

// New opens the catalog, loads the shared embedder and wires the search
// stack. The language model is built separately by Agent since only chat
// needs it.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, log: logger}

	catalog, err := OpenCatalog(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.Catalog = catalog
	a.closers = append(a.closers, catalog.Close)

	e, err := embedding.Shared(ctx, cfg.Embedding)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := c.Ping(ctx); err != nil {
			// the cache is optional; embeddings still work without it
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, embedding cache disabled")
			_ = c.Close()
		} else {
			a.Cache = c
			a.closers = append(a.closers, c.Close)
			e = embedding.WithCache(e, c, cfg.Embedding.CacheTTL, logger)
		}
	}
	a.Embedder = e

	a.Locations = location.NewCachedSource(catalog, cfg.Search.LocationTTL)
	a.Ranker = service.NewRanker(e, catalog, cfg.Search.DefaultK, logger)
	a.Tool = service.NewRoomSearchTool(a.Ranker, a.Locations, logger)
	a.Loader = service.NewCatalogLoader(e, catalog, cfg.Embedding.BatchSize, logger, a.Locations)

	logger.Info().
		Str("catalog", cfg.Database.Driver).
		Str("embedding_model", e.Model()).
		Int("dimension", e.Dimension()).
		Bool("embedding_cache", a.Cache != nil).
		Msg("search stack ready")

	return a, nil
}

// Agent builds the chat agent on the configured language model
func (a *App) Agent(ctx context.Context) (*service.Agent, error) {
	llm, err := service.NewLanguageModel(ctx, a.Config.LLM)
	if err != nil {
		return nil, err
	}
	return service.NewAgent(llm, service.AgentOptions{
		Temperature:   a.Config.LLM.Temperature,
		MaxTokens:     a.Config.LLM.MaxTokens,
		MaxToolRounds: a.Config.LLM.MaxToolRounds,
	}, a.log, a.Tool), nil
}

// Close releases the catalog and cache connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenCatalog opens the store selected by cfg.Driver, creating its schema
func OpenCatalog(ctx context.Context, cfg config.DatabaseConfig) (repository.Catalog, error) {
	switch cfg.Driver {
	case "memory":
		return repository.NewMemoryRepository(), nil
	case "sqlite":
		return repository.NewSQLiteRepository(ctx, cfg.SQLitePath)
	case "postgres":
		dsn := (&config.Config{Database: cfg}).GetPostgreSQLDSN()
		repo, err := repository.NewPostgresRepository(dsn, cfg.MaxConnections, cfg.MaxIdleConnections)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", cfg.Driver)
	}
}
