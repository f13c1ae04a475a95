// Package main is the entry point for the options strategy scanner.
// The scanner pulls option chains from Alpha Vantage, runs multi-leg
// strategy scans over them, and serves results over a REST API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/optionscan/internal/clientdata"
	"github.com/aristath/optionscan/internal/clients/alphavantage"
	"github.com/aristath/optionscan/internal/config"
	"github.com/aristath/optionscan/internal/database"
	"github.com/aristath/optionscan/internal/modules/favorites"
	favoriteshandlers "github.com/aristath/optionscan/internal/modules/favorites/handlers"
	"github.com/aristath/optionscan/internal/modules/filters"
	"github.com/aristath/optionscan/internal/modules/pipeline"
	"github.com/aristath/optionscan/internal/modules/scanhistory"
	"github.com/aristath/optionscan/internal/modules/strategies"
	strategyhandlers "github.com/aristath/optionscan/internal/modules/strategies/handlers"
	"github.com/aristath/optionscan/internal/scheduler"
	"github.com/aristath/optionscan/internal/server"
	"github.com/aristath/optionscan/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New("info", true)
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.DevMode)
	log.Info().Msg("Starting options scanner")

	// Durable scan data (favorites, filters, history)
	scannerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "scanner.db"),
		Profile: database.ProfileStandard,
		Name:    "scanner",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open scanner database")
	}
	defer scannerDB.Close()

	// Ephemeral provider response cache
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	if err := scannerDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate scanner database")
	}
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	cacheRepo := clientdata.NewRepository(cacheDB.Conn())

	avClient := alphavantage.NewClient(alphavantage.Options{
		APIKey:       cfg.AlphaVantageAPIKey,
		BaseURL:      cfg.AlphaVantageBaseURL,
		HTTPTimeout:  cfg.HTTPTimeout,
		ChainTimeout: cfg.ChainTimeout,
		QuoteTTL:     cfg.QuoteCacheTTL,
		ChainTTL:     cfg.ChainCacheTTL,
		RateTTL:      cfg.RateCacheTTL,
	}, cacheRepo, log)

	pipelineStore := pipeline.NewStore()
	registry := strategies.NewPopulatedRegistry(strategies.Deps{
		Provider: avClient,
		Pipeline: pipelineStore,
	}, log)

	historyRepo := scanhistory.NewRepository(scannerDB.Conn(), log)
	filterRepo := filters.NewRepository(scannerDB.Conn(), log)
	favoriteRepo := favorites.NewRepository(scannerDB.Conn(), log)
	favoriteService := favorites.NewService(favoriteRepo, avClient, log)

	srv := server.New(server.Config{
		Log:        log,
		Config:     cfg,
		ScannerDB:  scannerDB,
		CacheDB:    cacheDB,
		Strategies: strategyhandlers.NewHandler(registry, pipelineStore, historyRepo, log),
		Favorites:  favoriteshandlers.NewHandler(favoriteService, log),
		Filters:    filters.NewHandler(filterRepo, log),
	})

	sched := scheduler.New(log)
	if cfg.FavoritesRefresh != "" {
		refreshJob := scheduler.NewRefreshFavoritesJob(favoriteService, log)
		if err := sched.AddJob(cfg.FavoritesRefresh, refreshJob); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.FavoritesRefresh).Msg("Invalid favorites refresh schedule")
		}
	}
	if err := sched.AddJob("@hourly", clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}
	if err := sched.AddJob("@daily", scheduler.NewPruneHistoryJob(historyRepo, 0, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register history prune job")
	}
	sched.Start()

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
