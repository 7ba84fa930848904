package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"comet-radar/internal/filter"
	"comet-radar/internal/tikhub"
)

func discoveryUnderTest(trends TrendSource, videos VideoSource, ledger Ledger) *Discovery {
	gate := filter.New(nil, 0.02, testLogger())
	d := NewDiscovery(DiscoveryConfig{
		MinFollowers:  10_000,
		MaxFollowers:  100_000,
		MinVideoViews: 50_000,
	}, trends, videos, nil, ledger, gate, nil, NopPacer{}, testLogger())
	d.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	return d
}

func TestDiscoveryStoresCometWithAttribution(t *testing.T) {
	ledger := newFakeLedger()
	videos := &fakeVideoSource{pages: map[string][]*tikhub.SearchPage{
		"morning routine": {{Items: []tikhub.SearchItem{
			searchItem("uid-1", "wakeupwithmaya", 45_000, 200_000),
			searchItem("uid-2", "tinyaccount", 2_000, 900_000), // below band
		}}},
	}}
	d := discoveryUnderTest(&fakeTrendSource{keywords: []string{"morning routine"}}, videos, ledger)

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Report.Discovered != 1 {
		t.Errorf("discovered = %d, want 1", result.Report.Discovered)
	}
	if result.Report.RejectedComet != 1 {
		t.Errorf("rejected comet = %d, want 1", result.Report.RejectedComet)
	}
	if _, ok := result.Touched["uid-1"]; !ok {
		t.Error("discovered creator missing from touched set")
	}
	if _, ok := result.Touched["uid-2"]; ok {
		t.Error("rejected creator must not be touched")
	}

	creator, ok := ledger.creators["uid-1"]
	if !ok {
		t.Fatal("creator not persisted")
	}
	if creator.DiscoveredViaTrend == nil || *creator.DiscoveredViaTrend != "morning routine" {
		t.Errorf("DiscoveredViaTrend = %v, want morning routine", creator.DiscoveredViaTrend)
	}
	if creator.BreakoutVideoID == nil || *creator.BreakoutVideoID != "vid-uid-1" {
		t.Errorf("BreakoutVideoID = %v, want vid-uid-1", creator.BreakoutVideoID)
	}

	snap, ok := ledger.snapshots[snapKey("uid-1", d.now())]
	if !ok {
		t.Fatal("snapshot not persisted")
	}
	if snap.FollowerCount != 45_000 {
		t.Errorf("snapshot followers = %d, want 45000", snap.FollowerCount)
	}
	if snap.SourceTrend == nil || *snap.SourceTrend != "morning routine" {
		t.Errorf("snapshot SourceTrend = %v, want morning routine", snap.SourceTrend)
	}
}

func TestDiscoveryFirstTrendWinsAttribution(t *testing.T) {
	ledger := newFakeLedger()
	videos := &fakeVideoSource{pages: map[string][]*tikhub.SearchPage{
		"morning routine": {{Items: []tikhub.SearchItem{searchItem("uid-1", "maya", 45_000, 200_000)}}},
		"study hacks":     {{Items: []tikhub.SearchItem{searchItem("uid-1", "maya", 46_000, 120_000)}}},
	}}
	d := discoveryUnderTest(&fakeTrendSource{keywords: []string{"morning routine", "study hacks"}}, videos, ledger)

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Report.Discovered != 1 {
		t.Errorf("discovered = %d, want 1 (second hit is a refresh, not a discovery)", result.Report.Discovered)
	}

	creator := ledger.creators["uid-1"]
	if creator.DiscoveredViaTrend == nil || *creator.DiscoveredViaTrend != "morning routine" {
		t.Errorf("attribution = %v, want first trend to win", creator.DiscoveredViaTrend)
	}

	// The second hit still refreshed the day's snapshot.
	snap := ledger.snapshots[snapKey("uid-1", d.now())]
	if snap.FollowerCount != 46_000 {
		t.Errorf("snapshot followers = %d, want refreshed 46000", snap.FollowerCount)
	}
}

func TestDiscoveryKeywordFailureDoesNotAbortSiblings(t *testing.T) {
	ledger := newFakeLedger()
	videos := &fakeVideoSource{
		pages: map[string][]*tikhub.SearchPage{
			"study hacks": {{Items: []tikhub.SearchItem{searchItem("uid-9", "notetaker", 30_000, 80_000)}}},
		},
		errFor: map[string]error{"morning routine": errors.New("upstream 500")},
	}
	d := discoveryUnderTest(&fakeTrendSource{keywords: []string{"morning routine", "study hacks"}}, videos, ledger)

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Report.Errors != 1 {
		t.Errorf("errors = %d, want 1", result.Report.Errors)
	}
	if result.Report.TrendsProcessed != 2 {
		t.Errorf("trends processed = %d, want 2", result.Report.TrendsProcessed)
	}
	if _, ok := ledger.creators["uid-9"]; !ok {
		t.Error("healthy keyword's creator must still be persisted")
	}
}

func TestDiscoverySnapshotWriteFailureSkipsCreatorOnly(t *testing.T) {
	ledger := newFakeLedger()
	ledger.failSnapshot["uid-bad"] = true
	videos := &fakeVideoSource{pages: map[string][]*tikhub.SearchPage{
		"morning routine": {{Items: []tikhub.SearchItem{
			searchItem("uid-bad", "cursed", 20_000, 90_000),
			searchItem("uid-ok", "charmed", 20_000, 90_000),
		}}},
	}}
	d := discoveryUnderTest(&fakeTrendSource{keywords: []string{"morning routine"}}, videos, ledger)

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Report.Discovered != 1 {
		t.Errorf("discovered = %d, want 1", result.Report.Discovered)
	}
	// Savepoint rollback: the failed unit leaves no half-written creator.
	if _, ok := ledger.creators["uid-bad"]; ok {
		t.Error("failed unit's creator row must be rolled back")
	}
	if _, ok := ledger.creators["uid-ok"]; !ok {
		t.Error("sibling unit in the same transaction must survive")
	}
	if _, ok := result.Touched["uid-bad"]; ok {
		t.Error("failed creator must not enter touched set")
	}
}

func TestDiscoveryPaginatesUntilNoMore(t *testing.T) {
	ledger := newFakeLedger()
	videos := &fakeVideoSource{pages: map[string][]*tikhub.SearchPage{
		"morning routine": {
			{Items: []tikhub.SearchItem{searchItem("uid-1", "a", 20_000, 90_000)}, HasMore: true, Cursor: 1},
			{Items: []tikhub.SearchItem{searchItem("uid-2", "b", 20_000, 90_000)}},
		},
	}}
	d := discoveryUnderTest(&fakeTrendSource{keywords: []string{"morning routine"}}, videos, ledger)

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Report.Discovered != 2 {
		t.Errorf("discovered = %d, want 2 across pages", result.Report.Discovered)
	}
	if videos.calls != 2 {
		t.Errorf("search calls = %d, want 2", videos.calls)
	}
}

func TestDiscoveryRecordsTrendRanks(t *testing.T) {
	ledger := newFakeLedger()
	videos := &fakeVideoSource{pages: map[string][]*tikhub.SearchPage{}}
	d := discoveryUnderTest(&fakeTrendSource{keywords: []string{"morning routine", "study hacks"}}, videos, ledger)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	day := dateOnly(d.now())
	first, ok := ledger.trends["morning routine|"+day.Format("2006-01-02")]
	if !ok {
		t.Fatal("first trend not recorded")
	}
	if first.Rank != 1 {
		t.Errorf("rank = %d, want 1", first.Rank)
	}
	second := ledger.trends["study hacks|"+day.Format("2006-01-02")]
	if second.Rank != 2 {
		t.Errorf("rank = %d, want 2", second.Rank)
	}
}

func TestDiscoveryTrendSourceFailureIsPhaseError(t *testing.T) {
	d := discoveryUnderTest(&fakeTrendSource{err: errors.New("all sources down")}, &fakeVideoSource{}, newFakeLedger())

	result, err := d.Run(context.Background())
	if err == nil {
		t.Fatal("want phase error when no trends can be fetched")
	}
	if result.Report.TrendsProcessed != 0 {
		t.Errorf("trends processed = %d, want 0", result.Report.TrendsProcessed)
	}
}

func TestDiscoveryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := discoveryUnderTest(&fakeTrendSource{keywords: []string{"morning routine"}}, &fakeVideoSource{}, newFakeLedger())
	if _, err := d.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDiscoveryComputesGrowthFromPriorDay(t *testing.T) {
	ledger := newFakeLedger()
	today := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	yesterday := dateOnly(today.AddDate(0, 0, -1))
	ledger.snapshots[snapKey("uid-1", yesterday)] = snapshotFixture("uid-1", yesterday, 40_000)

	videos := &fakeVideoSource{pages: map[string][]*tikhub.SearchPage{
		"morning routine": {{Items: []tikhub.SearchItem{searchItem("uid-1", "maya", 42_000, 200_000)}}},
	}}
	d := discoveryUnderTest(&fakeTrendSource{keywords: []string{"morning routine"}}, videos, ledger)
	d.now = func() time.Time { return today }

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := ledger.snapshots[snapKey("uid-1", today)]
	if snap.DailyGrowthFollowers != 2_000 {
		t.Errorf("growth = %d, want 2000", snap.DailyGrowthFollowers)
	}
	if snap.DailyGrowthPercent != 5.0 {
		t.Errorf("growth pct = %v, want 5.0", snap.DailyGrowthPercent)
	}
}
