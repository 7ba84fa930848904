package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"comet-radar/internal/filter"
	"comet-radar/internal/models"
)

// Coordinator sequences one run: discovery, then roll call, then the
// aggregate report. A roll-call failure of any shape must not erase
// discovery's committed results, so that phase runs behind a recovery
// boundary and the report is produced unconditionally.
type Coordinator struct {
	discovery *Discovery
	rollCall  *RollCall
	gate      *filter.Filter
	logger    *slog.Logger
}

func NewCoordinator(discovery *Discovery, rollCall *RollCall, gate *filter.Filter, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		discovery: discovery,
		rollCall:  rollCall,
		gate:      gate,
		logger:    logger,
	}
}

// Run always returns a report, even when a phase failed.
func (c *Coordinator) Run(ctx context.Context) models.RunReport {
	report := models.RunReport{StartedAt: time.Now()}

	c.logger.Info("pipeline_started")

	result, err := c.discovery.Run(ctx)
	report.Discovery = result.Report
	if err != nil {
		c.logger.Error("discovery_failed", "error", err)
	}

	rcReport, err := c.runRollCall(ctx, result.Touched)
	if err != nil {
		rcReport.Aborted = true
		c.logger.Error("roll_call_failed", "error", err)
	}
	report.RollCall = rcReport

	report.Filter = c.gate.Stats()
	report.FinishedAt = time.Now()

	c.logSummary(report)
	return report
}

// runRollCall confines any unexpected roll-call failure, including a
// panic, to the phase boundary.
func (c *Coordinator) runRollCall(ctx context.Context, touched map[string]struct{}) (report models.RollCallReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("roll call panic: %v", r)
		}
	}()
	return c.rollCall.Run(ctx, touched)
}

func (c *Coordinator) logSummary(report models.RunReport) {
	c.logger.Info("pipeline_finished",
		"duration_s", int(report.FinishedAt.Sub(report.StartedAt).Seconds()),
		"trends_processed", report.Discovery.TrendsProcessed,
		"discovered", report.Discovery.Discovered,
		"trend_errors", report.Discovery.Errors,
		"roll_call_updated", report.RollCall.Updated,
		"roll_call_failed", report.RollCall.Failed,
		"roll_call_skipped", report.RollCall.Skipped,
		"roll_call_aborted", report.RollCall.Aborted,
		"filter_processed", report.Filter.TotalProcessed,
		"filter_rejected_platform", report.Filter.RejectedPlatform,
		"filter_rejected_pronoun", report.Filter.RejectedPronoun,
		"filter_rejected_face", report.Filter.RejectedFace,
		"filter_passed", report.Filter.Passed,
	)
}
