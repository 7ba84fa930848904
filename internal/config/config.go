package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	// TikHub upstream API
	TikHubAPIKey  string // raw secret kept in-memory only; never log this
	TikHubBaseURL string

	// Comet eligibility band
	MinFollowers  int
	MaxFollowers  int
	MinVideoViews int

	// Discovery
	TrendLimit              int
	PageBudget              int
	PublishWindowDays       int
	FetchProfileInDiscovery bool

	// Roll call pacing between profile fetches
	RollCallDelay time.Duration

	// Subject-presence filter
	FaceClassifierURL string
	MinFaceAreaRatio  float64

	// Avatar archive (R2-compatible object storage)
	R2Endpoint string
	R2Bucket   string
	R2KeysRaw  string // raw secrets kept in-memory only; never log these

	// Maintenance windows
	StaleCreatorDays int
	StaleTrendDays   int

	CORSOrigins []string
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:             os.Getenv("DB_DSN"),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:          getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		TikHubAPIKey:      os.Getenv("TIKHUB_API_KEY"),
		TikHubBaseURL:     getenvDefault("TIKHUB_BASE_URL", "https://api.tikhub.io"),
		FaceClassifierURL: getenvDefault("FACE_CLASSIFIER_URL", ""),
		R2Endpoint:        getenvDefault("R2_ENDPOINT", ""),
		R2Bucket:          getenvDefault("R2_BUCKET", ""),
		R2KeysRaw:         os.Getenv("R2_KEYS"),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	// light validation: ensure secrets are valid json if set
	if cfg.R2KeysRaw != "" {
		var tmp any
		if err := json.Unmarshal([]byte(cfg.R2KeysRaw), &tmp); err != nil {
			return Config{}, errors.New("R2_KEYS must be valid json")
		}
	}

	cfg.MinFollowers = getenvInt("MIN_FOLLOWERS", 10_000)
	cfg.MaxFollowers = getenvInt("MAX_FOLLOWERS", 100_000)
	cfg.MinVideoViews = getenvInt("MIN_VIDEO_VIEWS", 50_000)
	if cfg.MinFollowers >= cfg.MaxFollowers {
		return Config{}, errors.New("MIN_FOLLOWERS must be below MAX_FOLLOWERS")
	}

	cfg.TrendLimit = getenvInt("TREND_LIMIT", 10)
	cfg.PageBudget = getenvInt("PAGE_BUDGET", 10)
	cfg.PublishWindowDays = getenvInt("PUBLISH_WINDOW_DAYS", 7)
	cfg.FetchProfileInDiscovery = getenvBool("FETCH_PROFILE_IN_DISCOVERY", true)

	cfg.RollCallDelay = getenvDuration("ROLL_CALL_DELAY", 1*time.Second)

	cfg.MinFaceAreaRatio = getenvFloat("MIN_FACE_AREA_RATIO", 0.02)
	if cfg.MinFaceAreaRatio < 0 || cfg.MinFaceAreaRatio > 1 {
		return Config{}, errors.New("MIN_FACE_AREA_RATIO must be between 0 and 1")
	}

	cfg.StaleCreatorDays = getenvInt("STALE_CREATOR_DAYS", 14)
	cfg.StaleTrendDays = getenvInt("STALE_TREND_DAYS", 30)

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
