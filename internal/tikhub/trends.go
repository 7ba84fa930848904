package tikhub

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

// TrendSource supplies a ranked list of trending keywords. Sources are
// tried in priority order; the static list at the bottom of the chain
// means discovery never starts empty-handed.
type TrendSource interface {
	Name() string
	Priority() int // lower number wins
	FetchTrending(ctx context.Context, limit int) ([]string, error)
}

// TrendChain tries each registered source in priority order and returns
// the first non-empty result.
type TrendChain struct {
	sources []TrendSource
	logger  *slog.Logger
}

func NewTrendChain(logger *slog.Logger) *TrendChain {
	return &TrendChain{logger: logger}
}

func (tc *TrendChain) Register(source TrendSource) {
	tc.sources = append(tc.sources, source)
	for i := 0; i < len(tc.sources)-1; i++ {
		for j := i + 1; j < len(tc.sources); j++ {
			if tc.sources[i].Priority() > tc.sources[j].Priority() {
				tc.sources[i], tc.sources[j] = tc.sources[j], tc.sources[i]
			}
		}
	}
}

func (tc *TrendChain) FetchTrending(ctx context.Context, limit int) ([]string, error) {
	var lastErr error
	for _, source := range tc.sources {
		keywords, err := source.FetchTrending(ctx, limit)
		if err == nil && len(keywords) > 0 {
			tc.logger.Info("trends_fetched", "source", source.Name(), "count", len(keywords))
			return keywords, nil
		}
		if err != nil {
			tc.logger.Warn("trend_source_failed", "source", source.Name(), "error", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no trend source produced keywords: %w", lastErr)
}

// APITrendSource pulls the day's trending search words from TikHub.
type APITrendSource struct {
	client *Client
	region string
}

func NewAPITrendSource(client *Client, region string) *APITrendSource {
	if region == "" {
		region = "US"
	}
	return &APITrendSource{client: client, region: region}
}

func (s *APITrendSource) Name() string  { return "tikhub" }
func (s *APITrendSource) Priority() int { return 1 }

func (s *APITrendSource) FetchTrending(ctx context.Context, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("region", s.region)
	params.Set("count", strconv.Itoa(limit))

	data, err := s.client.getJSON(ctx, "/api/v1/tiktok/web/fetch_trending_searchwords", params)
	if err != nil {
		return nil, err
	}

	// The word list has moved between fields across API versions.
	var wordList []any
	if inner := mapField(data, "data"); inner != nil {
		for _, field := range []string{"trending_search_words", "word_list", "trending_list"} {
			if l := listField(inner, field); l != nil {
				wordList = l
				break
			}
		}
	} else if l := listField(data, "data"); l != nil {
		wordList = l
	}

	var keywords []string
	for _, item := range wordList {
		if len(keywords) >= limit {
			break
		}
		var keyword string
		switch v := item.(type) {
		case map[string]any:
			for _, field := range []string{"trendingSearchWord", "word", "keyword", "title"} {
				if kw := stringField(v, field); kw != "" {
					keyword = kw
					break
				}
			}
		case string:
			keyword = v
		}
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			keywords = append(keywords, keyword)
		}
	}
	return keywords, nil
}

// StaticTrendSource serves a fixed keyword list, registered at the
// lowest priority as the fallback when the API source is down or empty.
type StaticTrendSource struct {
	keywords []string
}

func NewStaticTrendSource(keywords []string) *StaticTrendSource {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	return &StaticTrendSource{keywords: keywords}
}

var defaultKeywords = []string{
	"grwm", "day in my life", "what i eat in a day", "outfit ideas",
	"morning routine", "storytime", "gymtok", "cleantok", "cooking",
	"room makeover",
}

func (s *StaticTrendSource) Name() string  { return "static" }
func (s *StaticTrendSource) Priority() int { return 10 }

func (s *StaticTrendSource) FetchTrending(_ context.Context, limit int) ([]string, error) {
	if limit > len(s.keywords) {
		limit = len(s.keywords)
	}
	out := make([]string, limit)
	copy(out, s.keywords[:limit])
	return out, nil
}
