package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"comet-radar/internal/db"
	"comet-radar/internal/models"
	"comet-radar/internal/redis"
)

const avatarMemoTTL = 7 * 24 * time.Hour

// ArchiveLedger is the subset of the creator store the avatar cache
// reads and writes.
type ArchiveLedger interface {
	SetArchivedAvatar(ctx context.Context, userID, url string) error
	ListUnarchivedAvatars(ctx context.Context, limit int) ([]models.Creator, error)
}

// memoStore is the subset of the redis client the cache uses to skip
// avatars it already archived.
type memoStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// AvatarCache archives creator avatars into object storage and records
// the durable URL next to the creator row. Every step is best-effort:
// a cache failure never fails a pipeline write.
type AvatarCache struct {
	store      ArchiveLedger
	storage    StorageClient
	memo       memoStore
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAvatarCache(store *db.Store, storageClient StorageClient, redisClient *redis.Client, logger *slog.Logger) *AvatarCache {
	c := &AvatarCache{
		store:      store,
		storage:    storageClient,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	if redisClient != nil {
		c.memo = redisClient
	}
	return c
}

// Archive downloads the avatar and uploads it once per (user, url).
// The redis memo is written only after the durable URL is stored, so a
// failed attempt stays retryable by later runs and by the backfill.
func (c *AvatarCache) Archive(ctx context.Context, userID, avatarURL string) {
	if userID == "" || avatarURL == "" {
		return
	}

	memoKey := "avatar:done:" + userID + ":" + urlHash(avatarURL)

	if c.memo != nil {
		if done, err := c.memo.Get(ctx, memoKey); err == nil && done != "" {
			return
		}
	}

	data, err := downloadAvatar(ctx, c.httpClient, avatarURL)
	if err != nil {
		c.logger.Warn("avatar_download_failed", "user_id", userID, "error", err)
		return
	}

	url, err := c.storage.UploadAvatar(userID, urlHash(avatarURL), data)
	if err != nil {
		c.logger.Warn("avatar_upload_failed", "user_id", userID, "error", err)
		return
	}

	if err := c.store.SetArchivedAvatar(ctx, userID, url); err != nil {
		c.logger.Warn("avatar_url_update_failed", "user_id", userID, "error", err)
		return
	}

	if c.memo != nil {
		_ = c.memo.Set(ctx, memoKey, 1, avatarMemoTTL)
	}

	c.logger.Info("avatar_archived", "user_id", userID)
}

// Backfill archives avatars for creators whose rows predate the cache,
// or whose archival failed on a previous run. Returns how many were
// attempted.
func (c *AvatarCache) Backfill(ctx context.Context, limit int, delay time.Duration) (int, error) {
	creators, err := c.store.ListUnarchivedAvatars(ctx, limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, creator := range creators {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if creator.AvatarURL == "" {
			continue
		}

		c.Archive(ctx, creator.UserID, creator.AvatarURL)
		count++

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return count, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return count, nil
}

func urlHash(avatarURL string) string {
	sum := sha256.Sum256([]byte(avatarURL))
	return hex.EncodeToString(sum[:8])
}
