package models

import "time"

// Creator is the identity record for a tracked account. It is created on
// first discovery or roll-call upsert and mutated on every successful
// refresh; the pipeline never deletes it.
type Creator struct {
	UserID             string    `json:"user_id"`
	Handle             string    `json:"handle"`
	Nickname           string    `json:"nickname"`
	AvatarURL          string    `json:"avatar_url"`
	Signature          string    `json:"signature"`
	DiscoveredViaTrend *string   `json:"discovered_via_trend,omitempty"`
	BreakoutVideoID    *string   `json:"breakout_video_id,omitempty"`
	LastUpdatedAt      time.Time `json:"last_updated_at"`
}

// DailySnapshot is one dated growth observation, unique per
// (user_id, recorded_date). A second write for the same day replaces the
// first; rows for earlier dates are never rewritten.
type DailySnapshot struct {
	UserID               string    `json:"user_id"`
	RecordedDate         time.Time `json:"recorded_date"`
	FollowerCount        int       `json:"follower_count"`
	HeartCount           int       `json:"heart_count"`
	VideoCount           int       `json:"video_count"`
	DailyGrowthFollowers int       `json:"daily_growth_followers"`
	DailyGrowthPercent   float64   `json:"daily_growth_percent"`
	SourceTrend          *string   `json:"source_trend,omitempty"`
}

// TrendRecord is one trending keyword observation, unique per
// (trend_keyword, discovered_at).
type TrendRecord struct {
	Keyword      string    `json:"trend_keyword"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Rank         int       `json:"rank"`
}

// RosterEntry is the minimal identity needed for a roll-call pass.
type RosterEntry struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
}

// Stats are normalized counters extracted from a raw profile payload.
type Stats struct {
	Followers int `json:"follower_count"`
	Hearts    int `json:"heart_count"`
	Videos    int `json:"video_count"`
}
