package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"comet-radar/internal/filter"
	"comet-radar/internal/models"
	"comet-radar/internal/tikhub"
)

type videoItem = tikhub.SearchItem

type DiscoveryConfig struct {
	RawTrendLimit     int // keywords pulled before normalization
	TrendLimit        int // keywords actually processed
	PageBudget        int // max result pages per keyword
	PageSize          int
	PublishWindowDays int

	// Comet eligibility band
	MinFollowers  int
	MaxFollowers  int
	MinVideoViews int

	// Re-fetch the full profile before snapshotting for richer stats
	// than the video's embedded author block.
	FetchProfile bool
}

func (c DiscoveryConfig) withDefaults() DiscoveryConfig {
	if c.RawTrendLimit <= 0 {
		c.RawTrendLimit = 100
	}
	if c.TrendLimit <= 0 {
		c.TrendLimit = 10
	}
	if c.PageBudget <= 0 {
		c.PageBudget = 10
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.PublishWindowDays <= 0 {
		c.PublishWindowDays = 7
	}
	return c
}

// Discovery is phase 1: walk trending keywords, gate candidate authors,
// and upsert creators plus their day's snapshot with trend attribution.
type Discovery struct {
	cfg      DiscoveryConfig
	trends   TrendSource
	videos   VideoSource
	profiles ProfileSource
	ledger   Ledger
	gate     *filter.Filter
	avatars  AvatarArchiver
	pacer    Pacer
	logger   *slog.Logger
	now      func() time.Time
}

func NewDiscovery(cfg DiscoveryConfig, trends TrendSource, videos VideoSource, profiles ProfileSource,
	ledger Ledger, gate *filter.Filter, avatars AvatarArchiver, pacer Pacer, logger *slog.Logger) *Discovery {
	return &Discovery{
		cfg:      cfg.withDefaults(),
		trends:   trends,
		videos:   videos,
		profiles: profiles,
		ledger:   ledger,
		gate:     gate,
		avatars:  avatars,
		pacer:    pacer,
		logger:   logger,
		now:      time.Now,
	}
}

// DiscoveryResult carries the phase report and the touched-set consumed
// by roll call, passed explicitly rather than shared as process state.
type DiscoveryResult struct {
	Report  models.DiscoveryReport
	Touched map[string]struct{}
}

// Run never aborts on a single keyword: source failures are logged,
// counted and skipped. The returned error is only non-nil when the
// whole phase could not start (no trend source at all, cancellation).
func (d *Discovery) Run(ctx context.Context) (DiscoveryResult, error) {
	run := &discoveryRun{
		d:       d,
		touched: make(map[string]struct{}),
		seen:    make(map[string]struct{}),
		report: models.DiscoveryReport{
			PerTrend: make(map[string]int),
		},
	}

	raw, err := d.trends.FetchTrending(ctx, d.cfg.RawTrendLimit)
	if err != nil {
		return run.result(), fmt.Errorf("fetch trends: %w", err)
	}

	keywords := DropBlacklistedTrends(NormalizeTrends(raw))
	if len(keywords) > d.cfg.TrendLimit {
		keywords = keywords[:d.cfg.TrendLimit]
	}
	d.logger.Info("discovery_keywords", "raw", len(raw), "selected", len(keywords))

	d.recordTrends(ctx, keywords)

	for _, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			return run.result(), err
		}

		count, err := run.processTrend(ctx, keyword)
		run.report.TrendsProcessed++
		run.report.PerTrend[keyword] = count
		run.report.Discovered += count
		if err != nil {
			run.report.Errors++
			d.logger.Error("trend_processing_failed", "keyword", keyword, "error", err)
			continue
		}
		d.logger.Info("trend_processed", "keyword", keyword, "discovered", count)
	}

	return run.result(), nil
}

// recordTrends writes the day's keyword/rank observations in their own
// transaction. Attribution metadata is not worth aborting discovery for.
func (d *Discovery) recordTrends(ctx context.Context, keywords []string) {
	if len(keywords) == 0 {
		return
	}
	day := dateOnly(d.now())
	records := make([]models.TrendRecord, len(keywords))
	for i, kw := range keywords {
		records[i] = models.TrendRecord{Keyword: kw, DiscoveredAt: day, Rank: i + 1}
	}

	tx, err := d.ledger.Begin(ctx)
	if err != nil {
		d.logger.Warn("trend_record_begin_failed", "error", err)
		return
	}
	if err := tx.RecordTrends(ctx, records); err != nil {
		_ = tx.Rollback(ctx)
		d.logger.Warn("trend_record_failed", "error", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		d.logger.Warn("trend_record_commit_failed", "error", err)
	}
}

// discoveryRun is the per-run mutable state: the touched-set, the
// already-evaluated set, and the counters.
type discoveryRun struct {
	d       *Discovery
	touched map[string]struct{}
	seen    map[string]struct{}
	report  models.DiscoveryReport
}

func (r *discoveryRun) result() DiscoveryResult {
	return DiscoveryResult{Report: r.report, Touched: r.touched}
}

// processTrend walks the keyword's result pages inside one transaction;
// each candidate writes under its own savepoint.
func (r *discoveryRun) processTrend(ctx context.Context, keyword string) (int, error) {
	d := r.d

	tx, err := d.ledger.Begin(ctx)
	if err != nil {
		return 0, err
	}

	discovered := 0
	cursor := 0

	for page := 0; page < d.cfg.PageBudget; page++ {
		result, err := d.videos.SearchVideos(ctx, keyword, cursor, d.cfg.PageSize, d.cfg.PublishWindowDays)
		if err != nil {
			if discovered == 0 && page == 0 {
				_ = tx.Rollback(ctx)
				return 0, err
			}
			// Keep what this keyword already produced.
			d.logger.Warn("search_page_failed", "keyword", keyword, "page", page, "error", err)
			break
		}
		if len(result.Items) == 0 {
			break
		}

		for _, item := range result.Items {
			if r.processItem(ctx, tx, keyword, item) {
				discovered++
			}
		}

		if !result.HasMore {
			break
		}
		cursor = result.Cursor
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit keyword %q: %w", keyword, err)
	}
	return discovered, nil
}

func (r *discoveryRun) processItem(ctx context.Context, tx LedgerTx, keyword string, item videoItem) bool {
	d := r.d

	// The gate sees every candidate, band-eligible or not, so its
	// counters cover the whole search stream. Check skips the networked
	// subject probe when the item has no thumbnail.
	verdict := d.gate.Check(ctx, filter.Author{
		Nickname:  rawString(item.Author, "nickname"),
		Handle:    rawString(item.Author, "unique_id"),
		Signature: rawString(item.Author, "signature"),
	}, item.Caption, item.ThumbnailURL)
	if !verdict.OK {
		return false
	}

	if !r.isComet(item) {
		r.report.RejectedComet++
		return false
	}

	now := d.now()
	creator := ExtractCreator(item.Author, now)
	if creator.UserID == "" {
		return false
	}

	// Evaluate each creator once per run; stats still refresh on later
	// hits because the snapshot upsert happens below per hit.
	if _, dup := r.seen[creator.UserID]; dup {
		return r.refreshSnapshot(ctx, tx, keyword, creator, item)
	}
	r.seen[creator.UserID] = struct{}{}

	kw := keyword
	videoID := item.VideoID
	creator.DiscoveredViaTrend = &kw
	if videoID != "" {
		creator.BreakoutVideoID = &videoID
	}

	err := tx.Scoped(ctx, func(unit LedgerTx) error {
		if err := unit.UpsertCreator(ctx, creator); err != nil {
			return err
		}
		return r.writeSnapshot(ctx, unit, keyword, creator, item)
	})
	if err != nil {
		d.logger.Warn("creator_write_failed", "handle", creator.Handle, "error", err)
		return false
	}

	r.touched[creator.UserID] = struct{}{}
	if d.avatars != nil && creator.AvatarURL != "" {
		d.avatars.Archive(ctx, creator.UserID, creator.AvatarURL)
	}

	d.logger.Info("comet_discovered", "handle", creator.Handle, "trend", keyword)
	return true
}

// refreshSnapshot handles the second hit of an already-touched creator
// within the same run: attribution stays put, stats refresh.
func (r *discoveryRun) refreshSnapshot(ctx context.Context, tx LedgerTx, keyword string, creator models.Creator, item videoItem) bool {
	if _, ok := r.touched[creator.UserID]; !ok {
		return false // previously evaluated and rejected
	}
	err := tx.Scoped(ctx, func(unit LedgerTx) error {
		return r.writeSnapshot(ctx, unit, keyword, creator, item)
	})
	if err != nil {
		r.d.logger.Warn("snapshot_refresh_failed", "handle", creator.Handle, "error", err)
	}
	return false
}

func (r *discoveryRun) writeSnapshot(ctx context.Context, unit LedgerTx, keyword string, creator models.Creator, item videoItem) error {
	d := r.d

	raw := item.Author
	if d.cfg.FetchProfile && d.profiles != nil {
		if err := d.pacer.Wait(ctx); err != nil {
			return err
		}
		if profile, err := d.profiles.FetchProfile(ctx, creator.Handle); err == nil {
			raw = profile
		} else {
			d.logger.Debug("profile_refresh_failed", "handle", creator.Handle, "error", err)
		}
	}

	day := dateOnly(d.now())
	stats := ExtractStats(raw)
	prior, err := unit.PriorSnapshot(ctx, creator.UserID, day)
	if err != nil {
		return err
	}
	delta, pct := Growth(stats.Followers, prior)

	kw := keyword
	return unit.UpsertSnapshot(ctx, models.DailySnapshot{
		UserID:               creator.UserID,
		RecordedDate:         day,
		FollowerCount:        stats.Followers,
		HeartCount:           stats.Hearts,
		VideoCount:           stats.Videos,
		DailyGrowthFollowers: delta,
		DailyGrowthPercent:   pct,
		SourceTrend:          &kw,
	})
}

func (r *discoveryRun) isComet(item videoItem) bool {
	followers := firstCount(item.Author, followerFields)
	views := firstCount(item.Statistics, []string{"play_count"})
	cfg := r.d.cfg
	return followers > cfg.MinFollowers && followers < cfg.MaxFollowers && views > cfg.MinVideoViews
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
