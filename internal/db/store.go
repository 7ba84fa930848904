package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"comet-radar/internal/models"
)

// Store wraps the pool with the ledger queries the pipeline and the API
// need. Write paths go through Tx so each phase commits independently.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Begin opens a phase-level transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) ListRoster(ctx context.Context) ([]models.RosterEntry, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT user_id, handle FROM creators ORDER BY handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []models.RosterEntry
	for rows.Next() {
		var e models.RosterEntry
		if err := rows.Scan(&e.UserID, &e.Handle); err != nil {
			return nil, err
		}
		roster = append(roster, e)
	}
	return roster, rows.Err()
}

// Tx is a phase transaction. Scoped units of work nest inside it via
// savepoints so one item's failure cannot abort its siblings.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// Scoped runs fn inside a savepoint. On error the savepoint is rolled
// back and the enclosing transaction stays usable.
func (t *Tx) Scoped(ctx context.Context, fn func(item *Tx) error) error {
	inner, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(&Tx{tx: inner}); err != nil {
		_ = inner.Rollback(ctx)
		return err
	}
	return inner.Commit(ctx)
}

// UpsertCreator inserts or refreshes an identity row. The conflict
// branch deliberately leaves discovered_via_trend and breakout_video_id
// alone: the first trend that surfaced a creator keeps the attribution.
func (t *Tx) UpsertCreator(ctx context.Context, c models.Creator) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO creators (user_id, handle, nickname, avatar_url, signature, last_updated_at, discovered_via_trend, breakout_video_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id)
		 DO UPDATE SET
			handle = EXCLUDED.handle,
			nickname = EXCLUDED.nickname,
			avatar_url = EXCLUDED.avatar_url,
			signature = EXCLUDED.signature,
			last_updated_at = EXCLUDED.last_updated_at`,
		c.UserID, c.Handle, c.Nickname, c.AvatarURL, c.Signature,
		c.LastUpdatedAt, c.DiscoveredViaTrend, c.BreakoutVideoID,
	)
	return err
}

// UpsertSnapshot writes the day's growth observation. A second write for
// the same (user_id, recorded_date) replaces the first. source_trend only
// fills in when previously null, matching the creator attribution rule.
func (t *Tx) UpsertSnapshot(ctx context.Context, s models.DailySnapshot) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO creator_stats (user_id, recorded_date, follower_count, heart_count, video_count, daily_growth_followers, daily_growth_percent, source_trend)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, recorded_date)
		 DO UPDATE SET
			follower_count = EXCLUDED.follower_count,
			heart_count = EXCLUDED.heart_count,
			video_count = EXCLUDED.video_count,
			daily_growth_followers = EXCLUDED.daily_growth_followers,
			daily_growth_percent = EXCLUDED.daily_growth_percent,
			source_trend = COALESCE(EXCLUDED.source_trend, creator_stats.source_trend)`,
		s.UserID, s.RecordedDate, s.FollowerCount, s.HeartCount,
		s.VideoCount, s.DailyGrowthFollowers, s.DailyGrowthPercent, s.SourceTrend,
	)
	return err
}

// PriorSnapshot returns the latest snapshot recorded strictly before the
// given date, or nil when the creator has no baseline yet.
func (t *Tx) PriorSnapshot(ctx context.Context, userID string, before time.Time) (*models.DailySnapshot, error) {
	var s models.DailySnapshot
	err := t.tx.QueryRow(ctx,
		`SELECT user_id, recorded_date, follower_count, heart_count, video_count, daily_growth_followers, daily_growth_percent, source_trend
		 FROM creator_stats
		 WHERE user_id = $1 AND recorded_date < $2
		 ORDER BY recorded_date DESC
		 LIMIT 1`,
		userID, before,
	).Scan(&s.UserID, &s.RecordedDate, &s.FollowerCount, &s.HeartCount,
		&s.VideoCount, &s.DailyGrowthFollowers, &s.DailyGrowthPercent, &s.SourceTrend)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RecordTrends batch-inserts the day's keyword/rank pairs. Re-running the
// pipeline on the same day only refreshes ranks.
func (t *Tx) RecordTrends(ctx context.Context, trends []models.TrendRecord) error {
	if len(trends) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, tr := range trends {
		batch.Queue(
			`INSERT INTO daily_trends (trend_keyword, discovered_at, rank)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (trend_keyword, discovered_at)
			 DO UPDATE SET rank = EXCLUDED.rank`,
			tr.Keyword, tr.DiscoveredAt, tr.Rank,
		)
	}

	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for range trends {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("record trend: %w", err)
		}
	}
	return nil
}

// SetArchivedAvatar stores the durable object-storage URL for a creator
// avatar, replacing the short-lived CDN URL for readers.
func (s *Store) SetArchivedAvatar(ctx context.Context, userID, url string) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE creators SET avatar_archive_url = $2 WHERE user_id = $1`,
		userID, url)
	return err
}

// ListUnarchivedAvatars returns creators whose avatar has not been copied
// to object storage yet.
func (s *Store) ListUnarchivedAvatars(ctx context.Context, limit int) ([]models.Creator, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT user_id, handle, avatar_url
		 FROM creators
		 WHERE avatar_archive_url IS NULL
		 AND avatar_url IS NOT NULL AND avatar_url != ''
		 ORDER BY last_updated_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Creator
	for rows.Next() {
		var c models.Creator
		if err := rows.Scan(&c.UserID, &c.Handle, &c.AvatarURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CleanupStaleCreators removes creators with no snapshot in the given
// window, stats first to respect the foreign key. Returns removed count.
func (s *Store) CleanupStaleCreators(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT c.user_id FROM creators c
		 WHERE NOT EXISTS (
			SELECT 1 FROM creator_stats cs
			WHERE cs.user_id = c.user_id AND cs.recorded_date >= $1
		 )`, cutoff)
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(stale) == 0 {
		return 0, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM creator_stats WHERE user_id = ANY($1)`, stale); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM creators WHERE user_id = ANY($1)`, stale); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// CleanupStaleTrends drops trend observations older than the window.
func (s *Store) CleanupStaleTrends(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM daily_trends WHERE discovered_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
