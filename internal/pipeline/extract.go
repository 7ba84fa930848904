package pipeline

import (
	"strconv"
	"strings"
	"time"

	"comet-radar/internal/models"
	"comet-radar/internal/tikhub"
)

// Field candidates per metric, primary first. The upstream API has
// renamed these across versions, so both discovery's embedded author
// block and roll call's profile fetch resolve through the same lists.
var (
	followerFields = []string{"follower_count", "mplatform_followers_count"}
	heartFields    = []string{"total_favorited", "heart_count", "digg_count"}
	videoFields    = []string{"aweme_count", "video_count"}
)

// ExtractStats normalizes a raw profile-like mapping into counters.
// Missing, empty and malformed values degrade to zero; it never fails.
func ExtractStats(raw map[string]any) models.Stats {
	return models.Stats{
		Followers: firstCount(raw, followerFields),
		Hearts:    firstCount(raw, heartFields),
		Videos:    firstCount(raw, videoFields),
	}
}

// firstCount returns the first present, non-empty, integer-coercible,
// non-negative candidate value, else 0.
func firstCount(raw map[string]any, fields []string) int {
	for _, field := range fields {
		v, ok := raw[field]
		if !ok || v == nil {
			continue
		}
		n, ok := coerceCount(v)
		if !ok {
			continue
		}
		return n
	}
	return 0
}

func coerceCount(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		if t < 0 {
			return 0, false
		}
		return t, true
	case int64:
		if t < 0 {
			return 0, false
		}
		return int(t), true
	case float64:
		if t < 0 {
			return 0, false
		}
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// ExtractCreator pulls the identity fields out of a raw author or
// profile block. The stable user id prefers sec_uid over uid.
func ExtractCreator(raw map[string]any, now time.Time) models.Creator {
	userID := rawString(raw, "sec_uid")
	if userID == "" {
		userID = rawString(raw, "uid")
	}
	return models.Creator{
		UserID:        userID,
		Handle:        rawString(raw, "unique_id"),
		Nickname:      rawString(raw, "nickname"),
		AvatarURL:     tikhub.AvatarURL(raw),
		Signature:     rawString(raw, "signature"),
		LastUpdatedAt: now,
	}
}

func rawString(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}
