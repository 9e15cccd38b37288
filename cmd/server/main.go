package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"hotelchat/internal/app"
	"hotelchat/internal/config"
	"hotelchat/internal/handler"
	"hotelchat/internal/observability"
	"hotelchat/internal/seed"
	"hotelchat/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("hotelchat server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise search stack")
	}
	defer a.Close()

	if os.Getenv("SEED_CATALOG") == "true" {
		seedCatalog(ctx, a)
	}

	routes := handler.Routes{
		Search:   handler.NewSearchHandler(a.Tool, a.Locations),
		Rooms:    handler.NewRoomHandler(a.Loader, 0),
		Catalog:  a.Catalog,
		Registry: observability.InitRegistry(),
	}

	// chat is optional so the search API stays usable without model credentials
	if agent, err := a.Agent(ctx); err != nil {
		logger.Warn().Err(err).Str("model", cfg.LLM.Model).Msg("chat disabled")
	} else {
		routes.Chat = handler.NewChatHandler(agent, service.NewSessionStore(time.Hour))
		logger.Info().Str("model", cfg.LLM.Model).Msg("chat enabled")
	}

	gin.SetMode(cfg.Server.GinMode)
	router := handler.NewRouter(cfg.Server, handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, routes, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

// seedCatalog loads the demo rooms into an empty catalog
func seedCatalog(ctx context.Context, a *app.App) {
	locs, err := a.Catalog.KnownLocations(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to check catalog before seeding")
		return
	}
	if len(locs) > 0 {
		return
	}
	rooms, err := seed.Rooms()
	if err != nil {
		log.Error().Err(err).Msg("failed to read seed rooms")
		return
	}
	ids, err := a.Loader.Load(ctx, rooms)
	if err != nil {
		log.Error().Err(err).Msg("failed to seed catalog")
		return
	}
	log.Info().Int("rooms", len(ids)).Msg("seeded catalog")
}
