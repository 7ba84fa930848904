package pipeline

import (
	"context"
	"time"

	"comet-radar/internal/models"
	"comet-radar/internal/tikhub"
)

// TrendSource supplies ranked trending keywords (tikhub.TrendChain).
type TrendSource interface {
	FetchTrending(ctx context.Context, limit int) ([]string, error)
}

// VideoSource searches recent videos for a keyword (tikhub.Client).
type VideoSource interface {
	SearchVideos(ctx context.Context, keyword string, cursor, count, publishDays int) (*tikhub.SearchPage, error)
}

// ProfileSource fetches a fresh profile by handle (tikhub.Client).
type ProfileSource interface {
	FetchProfile(ctx context.Context, handle string) (map[string]any, error)
}

// Ledger is the persistence collaborator. Each phase opens its own
// transaction so one phase's failure cannot revert the other's writes.
type Ledger interface {
	ListRoster(ctx context.Context) ([]models.RosterEntry, error)
	Begin(ctx context.Context) (LedgerTx, error)
}

// LedgerTx is one phase (or per-keyword) transaction. Scoped runs a
// unit of work inside a savepoint with guaranteed rollback-on-error
// that leaves the enclosing transaction intact.
type LedgerTx interface {
	UpsertCreator(ctx context.Context, c models.Creator) error
	UpsertSnapshot(ctx context.Context, s models.DailySnapshot) error
	PriorSnapshot(ctx context.Context, userID string, before time.Time) (*models.DailySnapshot, error)
	RecordTrends(ctx context.Context, trends []models.TrendRecord) error
	Scoped(ctx context.Context, fn func(item LedgerTx) error) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AvatarArchiver copies a creator avatar into durable storage. Purely
// best-effort; implementations log their own failures.
type AvatarArchiver interface {
	Archive(ctx context.Context, userID, avatarURL string)
}
