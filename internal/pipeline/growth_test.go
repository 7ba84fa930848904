package pipeline

import (
	"testing"
	"time"

	"comet-radar/internal/models"
)

func snapshotWithFollowers(n int) *models.DailySnapshot {
	return &models.DailySnapshot{
		UserID:        "u1",
		RecordedDate:  time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		FollowerCount: n,
	}
}

func TestGrowth_NoBaseline(t *testing.T) {
	delta, pct := Growth(12345, nil)
	if delta != 0 || pct != 0 {
		t.Errorf("expected (0, 0.00) without baseline, got (%d, %.2f)", delta, pct)
	}
}

func TestGrowth_PositiveVelocity(t *testing.T) {
	delta, pct := Growth(52500, snapshotWithFollowers(50000))
	if delta != 2500 {
		t.Errorf("expected delta 2500, got %d", delta)
	}
	if pct != 5.00 {
		t.Errorf("expected 5.00 percent, got %.2f", pct)
	}
}

func TestGrowth_NegativeVelocity(t *testing.T) {
	delta, pct := Growth(49000, snapshotWithFollowers(50000))
	if delta != -1000 {
		t.Errorf("expected delta -1000, got %d", delta)
	}
	if pct != -2.00 {
		t.Errorf("expected -2.00 percent, got %.2f", pct)
	}
}

func TestGrowth_ZeroBaselineGuardsDivision(t *testing.T) {
	delta, pct := Growth(100, snapshotWithFollowers(0))
	if delta != 100 {
		t.Errorf("expected delta 100, got %d", delta)
	}
	if pct != 0 {
		t.Errorf("expected 0.00 percent with zero baseline, got %.2f", pct)
	}
}

func TestGrowth_RoundsToTwoDecimals(t *testing.T) {
	// 1/3 of one percent -> 0.33
	delta, pct := Growth(30100, snapshotWithFollowers(30000))
	if delta != 100 {
		t.Errorf("expected delta 100, got %d", delta)
	}
	if pct != 0.33 {
		t.Errorf("expected 0.33 percent, got %.2f", pct)
	}
}
