package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comet-radar/internal/config"
	"comet-radar/internal/db"
	"comet-radar/internal/filter"
	"comet-radar/internal/logging"
	"comet-radar/internal/pipeline"
	"comet-radar/internal/redis"
	"comet-radar/internal/storage"
	"comet-radar/internal/tikhub"
	"comet-radar/internal/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_pipeline", "service", "comet-radar",
		"db", logging.MaskDSN(cfg.DBDSN), "tikhub_key", logging.MaskSecret(cfg.TikHubAPIKey))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Connect to PostgreSQL (with retry)
	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
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
	avatarCache := storage.NewAvatarCache(store, storageClient, redisClient, logger)

	client := tikhub.NewClient(cfg.TikHubBaseURL, cfg.TikHubAPIKey, logger)

	trendChain := tikhub.NewTrendChain(logger)
	trendChain.Register(tikhub.NewAPITrendSource(client, "US"))
	trendChain.Register(tikhub.NewStaticTrendSource(nil))

	// Subject-presence checks only run when a classifier is configured;
	// without one the filter fails open on that layer.
	var probe filter.SubjectSource
	if cfg.FaceClassifierURL != "" {
		classifier := vision.NewHTTPClassifier(cfg.FaceClassifierURL, logger)
		probe = vision.NewSubjectProbe(classifier, logger)
		logger.Info("face_classifier_enabled")
	} else {
		logger.Warn("face_classifier_not_configured", "subject_layer", "fail-open")
	}
	gate := filter.New(probe, cfg.MinFaceAreaRatio, logger)

	ledger := pipeline.NewLedger(store)
	pacer := pipeline.NewRatePacer(cfg.RollCallDelay)

	discovery := pipeline.NewDiscovery(pipeline.DiscoveryConfig{
		TrendLimit:        cfg.TrendLimit,
		PageBudget:        cfg.PageBudget,
		PublishWindowDays: cfg.PublishWindowDays,
		MinFollowers:      cfg.MinFollowers,
		MaxFollowers:      cfg.MaxFollowers,
		MinVideoViews:     cfg.MinVideoViews,
		FetchProfile:      cfg.FetchProfileInDiscovery,
	}, trendChain, client, client, ledger, gate, avatarCache, pacer, logger)

	rollCall := pipeline.NewRollCall(client, ledger, pacer, logger)

	coordinator := pipeline.NewCoordinator(discovery, rollCall, gate, logger)
	report := coordinator.Run(ctx)

	if raw, err := json.MarshalIndent(report, "", "  "); err == nil {
		os.Stdout.Write(append(raw, '\n'))
	}

	if report.RollCall.Aborted {
		os.Exit(1)
	}
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
			logger.Warn("s3_client_init_failed", "error", err)
		}
	}

	logger.Info("using_r2_simulator")
	return storage.NewR2Simulator(cfg.R2Bucket, cfg.R2Endpoint)
}
