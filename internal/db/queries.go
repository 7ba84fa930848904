package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"comet-radar/internal/models"
)

// CreatorSummary is a creator joined with its latest snapshot, the shape
// the read API serves.
type CreatorSummary struct {
	models.Creator
	AvatarArchiveURL *string               `json:"avatar_archive_url,omitempty"`
	Latest           *models.DailySnapshot `json:"latest_snapshot,omitempty"`
}

// ListCreators returns the roster ordered by latest follower velocity.
func (s *Store) ListCreators(ctx context.Context, limit, offset int) ([]CreatorSummary, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT c.user_id, c.handle, c.nickname, c.avatar_url, c.avatar_archive_url, c.signature,
			c.discovered_via_trend, c.breakout_video_id, c.last_updated_at,
			cs.recorded_date, cs.follower_count, cs.heart_count, cs.video_count,
			cs.daily_growth_followers, cs.daily_growth_percent, cs.source_trend
		 FROM creators c
		 LEFT JOIN LATERAL (
			SELECT * FROM creator_stats
			WHERE user_id = c.user_id
			ORDER BY recorded_date DESC
			LIMIT 1
		 ) cs ON true
		 ORDER BY cs.daily_growth_followers DESC NULLS LAST, c.handle
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CreatorSummary
	for rows.Next() {
		var c CreatorSummary
		var (
			recorded                  *time.Time
			followers, hearts, videos *int
			growth                    *int
			growthPct                 *float64
			sourceTrend               *string
		)
		if err := rows.Scan(&c.UserID, &c.Handle, &c.Nickname, &c.AvatarURL, &c.AvatarArchiveURL,
			&c.Signature, &c.DiscoveredViaTrend, &c.BreakoutVideoID, &c.LastUpdatedAt,
			&recorded, &followers, &hearts, &videos, &growth, &growthPct, &sourceTrend); err != nil {
			return nil, err
		}
		if recorded != nil {
			c.Latest = &models.DailySnapshot{
				UserID:               c.UserID,
				RecordedDate:         *recorded,
				FollowerCount:        *followers,
				HeartCount:           *hearts,
				VideoCount:           *videos,
				DailyGrowthFollowers: *growth,
				DailyGrowthPercent:   *growthPct,
				SourceTrend:          sourceTrend,
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var ErrNotFound = errors.New("not found")

// GetCreator returns one creator with its full snapshot history.
func (s *Store) GetCreator(ctx context.Context, userID string) (*CreatorSummary, []models.DailySnapshot, error) {
	var c CreatorSummary
	err := s.db.Pool.QueryRow(ctx,
		`SELECT user_id, handle, nickname, avatar_url, avatar_archive_url, signature,
			discovered_via_trend, breakout_video_id, last_updated_at
		 FROM creators WHERE user_id = $1`, userID,
	).Scan(&c.UserID, &c.Handle, &c.Nickname, &c.AvatarURL, &c.AvatarArchiveURL,
		&c.Signature, &c.DiscoveredViaTrend, &c.BreakoutVideoID, &c.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT user_id, recorded_date, follower_count, heart_count, video_count,
			daily_growth_followers, daily_growth_percent, source_trend
		 FROM creator_stats
		 WHERE user_id = $1
		 ORDER BY recorded_date DESC
		 LIMIT 365`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var history []models.DailySnapshot
	for rows.Next() {
		var snap models.DailySnapshot
		if err := rows.Scan(&snap.UserID, &snap.RecordedDate, &snap.FollowerCount,
			&snap.HeartCount, &snap.VideoCount, &snap.DailyGrowthFollowers,
			&snap.DailyGrowthPercent, &snap.SourceTrend); err != nil {
			return nil, nil, err
		}
		history = append(history, snap)
	}
	return &c, history, rows.Err()
}

// ListTrends returns trend observations for a day, newest rank first.
func (s *Store) ListTrends(ctx context.Context, day time.Time) ([]models.TrendRecord, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT trend_keyword, discovered_at, rank
		 FROM daily_trends
		 WHERE discovered_at = $1
		 ORDER BY rank`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TrendRecord
	for rows.Next() {
		var tr models.TrendRecord
		if err := rows.Scan(&tr.Keyword, &tr.DiscoveredAt, &tr.Rank); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
