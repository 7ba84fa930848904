package main

import (
	"context"
	"os"
	"time"

	"comet-radar/internal/config"
	"comet-radar/internal/db"
	"comet-radar/internal/logging"
)

// Prunes creators whose stats have gone stale and trend observations
// past their retention window. Intended to run on a daily schedule
// after the pipeline.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_cleanup",
		"stale_creator_days", cfg.StaleCreatorDays,
		"stale_trend_days", cfg.StaleTrendDays,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	store := db.NewStore(dbConn)

	creators, err := store.CleanupStaleCreators(ctx, cfg.StaleCreatorDays)
	if err != nil {
		logger.Error("stale_creator_cleanup_failed", "error", err)
		os.Exit(1)
	}

	trends, err := store.CleanupStaleTrends(ctx, cfg.StaleTrendDays)
	if err != nil {
		logger.Error("stale_trend_cleanup_failed", "error", err)
		os.Exit(1)
	}

	logger.Info("cleanup_finished", "creators_removed", creators, "trends_removed", trends)
}
