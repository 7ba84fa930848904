package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"comet-radar/internal/config"
	"comet-radar/internal/db"
	"comet-radar/internal/logging"
	"comet-radar/internal/redis"
	"comet-radar/internal/storage"
)

// Archives avatars for creators that predate the avatar cache or whose
// archival failed on an earlier run.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_avatar_backfill")

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Hour)
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	store := db.NewStore(dbConn)
	storageClient := newStorageClient(cfg, logger)
	cache := storage.NewAvatarCache(store, storageClient, redisClient, logger)

	count, err := cache.Backfill(ctx, 100, 1*time.Second)
	if err != nil {
		logger.Error("backfill_failed", "processed", count, "error", err)
		os.Exit(1)
	}

	logger.Info("backfill_finished", "processed", count)
}

func newStorageClient(cfg config.Config, logger *slog.Logger) storage.StorageClient {
	if cfg.R2Endpoint != "" && cfg.R2Bucket != "" && cfg.R2KeysRaw != "" {
		var r2Keys map[string]string
		if err := json.Unmarshal([]byte(cfg.R2KeysRaw), &r2Keys); err == nil {
			s3Client, err := storage.NewS3Client(storage.S3Config{
				Endpoint:        cfg.R2Endpoint,
				AccessKeyID:     r2Keys["access_key_id"],
				SecretAccessKey: r2Keys["secret_access_key"],
				Bucket:          cfg.R2Bucket,
				PublicURL:       r2Keys["public_url"],
				Region:          "auto",
			})
			if err == nil {
				logger.Info("using_s3_storage", "endpoint", cfg.R2Endpoint)
				return s3Client
			}
		}
	}

	logger.Info("using_r2_simulator")
	return storage.NewR2Simulator(cfg.R2Bucket, cfg.R2Endpoint)
}
