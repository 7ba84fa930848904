package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"comet-radar/internal/models"
)

// RollCall is phase 2: re-fetch every stored creator not already
// refreshed by discovery this run and upsert the day's snapshot without
// trend attribution.
type RollCall struct {
	profiles ProfileSource
	ledger   Ledger
	pacer    Pacer
	logger   *slog.Logger
	now      func() time.Time
}

func NewRollCall(profiles ProfileSource, ledger Ledger, pacer Pacer, logger *slog.Logger) *RollCall {
	return &RollCall{
		profiles: profiles,
		ledger:   ledger,
		pacer:    pacer,
		logger:   logger,
		now:      time.Now,
	}
}

// Run reports three mutually exclusive counts summing to the roster
// size. Per-creator failures are counted and skipped; only roster
// listing, cancellation, or commit failures surface as phase errors.
func (rc *RollCall) Run(ctx context.Context, touched map[string]struct{}) (models.RollCallReport, error) {
	var report models.RollCallReport

	roster, err := rc.ledger.ListRoster(ctx)
	if err != nil {
		return report, fmt.Errorf("list roster: %w", err)
	}
	report.RosterSize = len(roster)
	if len(roster) == 0 {
		return report, nil
	}

	tx, err := rc.ledger.Begin(ctx)
	if err != nil {
		return report, err
	}

	rc.logger.Info("roll_call_started", "roster", len(roster), "already_touched", len(touched))

	for idx, entry := range roster {
		if err := ctx.Err(); err != nil {
			_ = tx.Rollback(ctx)
			return report, err
		}

		if _, ok := touched[entry.UserID]; ok {
			report.Skipped++
			continue
		}

		// Pacing applies only when a network call is about to happen.
		if err := rc.pacer.Wait(ctx); err != nil {
			_ = tx.Rollback(ctx)
			return report, err
		}

		profile, err := rc.profiles.FetchProfile(ctx, entry.Handle)
		if err != nil {
			report.Failed++
			rc.logger.Warn("roll_call_fetch_failed", "handle", entry.Handle, "error", err)
			continue
		}

		if err := rc.updateCreator(ctx, tx, entry, profile); err != nil {
			report.Failed++
			rc.logger.Warn("roll_call_update_failed", "handle", entry.Handle, "error", err)
			continue
		}

		report.Updated++
		rc.logger.Debug("roll_call_updated", "handle", entry.Handle, "progress", fmt.Sprintf("%d/%d", idx+1, len(roster)))
	}

	if err := tx.Commit(ctx); err != nil {
		return report, fmt.Errorf("commit roll call: %w", err)
	}

	rc.logger.Info("roll_call_finished",
		"updated", report.Updated, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

func (rc *RollCall) updateCreator(ctx context.Context, tx LedgerTx, entry models.RosterEntry, profile map[string]any) error {
	now := rc.now()
	day := dateOnly(now)

	return tx.Scoped(ctx, func(unit LedgerTx) error {
		creator := ExtractCreator(profile, now)
		// The roster row is the source of truth for identity keys; the
		// profile payload may omit them.
		creator.UserID = entry.UserID
		if creator.Handle == "" {
			creator.Handle = entry.Handle
		}
		if err := unit.UpsertCreator(ctx, creator); err != nil {
			return err
		}

		stats := ExtractStats(profile)
		prior, err := unit.PriorSnapshot(ctx, entry.UserID, day)
		if err != nil {
			return err
		}
		delta, pct := Growth(stats.Followers, prior)

		return unit.UpsertSnapshot(ctx, models.DailySnapshot{
			UserID:               entry.UserID,
			RecordedDate:         day,
			FollowerCount:        stats.Followers,
			HeartCount:           stats.Hearts,
			VideoCount:           stats.Videos,
			DailyGrowthFollowers: delta,
			DailyGrowthPercent:   pct,
		})
	})
}
