package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"comet-radar/internal/models"
	"comet-radar/internal/tikhub"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeLedger is an in-memory ledger with the same conflict semantics as
// the SQL store: creator attribution sticks, snapshot rows replace.
type fakeLedger struct {
	creators  map[string]models.Creator
	snapshots map[string]models.DailySnapshot // key: userID|date
	trends    map[string]models.TrendRecord   // key: keyword|date
	roster    []models.RosterEntry

	beginErr      error
	listRosterErr error
	failSnapshot  map[string]bool // userID -> fail UpsertSnapshot

	commits   int
	rollbacks int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		creators:     make(map[string]models.Creator),
		snapshots:    make(map[string]models.DailySnapshot),
		trends:       make(map[string]models.TrendRecord),
		failSnapshot: make(map[string]bool),
	}
}

func snapKey(userID string, day time.Time) string {
	return userID + "|" + day.Format("2006-01-02")
}

func (l *fakeLedger) ListRoster(context.Context) ([]models.RosterEntry, error) {
	if l.listRosterErr != nil {
		return nil, l.listRosterErr
	}
	return l.roster, nil
}

func (l *fakeLedger) Begin(context.Context) (LedgerTx, error) {
	if l.beginErr != nil {
		return nil, l.beginErr
	}
	return &fakeTx{l: l}, nil
}

// fakeTx stages ops and flushes them on commit; Scoped truncates the
// staged ops on error, mirroring savepoint rollback.
type fakeTx struct {
	l   *fakeLedger
	ops []func(*fakeLedger)
}

func (t *fakeTx) UpsertCreator(_ context.Context, c models.Creator) error {
	t.ops = append(t.ops, func(l *fakeLedger) {
		if existing, ok := l.creators[c.UserID]; ok {
			// conflict branch: attribution fields keep their first value
			c.DiscoveredViaTrend = existing.DiscoveredViaTrend
			c.BreakoutVideoID = existing.BreakoutVideoID
		}
		l.creators[c.UserID] = c
	})
	return nil
}

func (t *fakeTx) UpsertSnapshot(_ context.Context, s models.DailySnapshot) error {
	if t.l.failSnapshot[s.UserID] {
		return fmt.Errorf("simulated write failure for %s", s.UserID)
	}
	t.ops = append(t.ops, func(l *fakeLedger) {
		key := snapKey(s.UserID, s.RecordedDate)
		if existing, ok := l.snapshots[key]; ok && s.SourceTrend == nil {
			s.SourceTrend = existing.SourceTrend
		}
		l.snapshots[key] = s
	})
	return nil
}

func (t *fakeTx) PriorSnapshot(_ context.Context, userID string, before time.Time) (*models.DailySnapshot, error) {
	var best *models.DailySnapshot
	for _, s := range t.l.snapshots {
		if s.UserID != userID || !s.RecordedDate.Before(before) {
			continue
		}
		if best == nil || s.RecordedDate.After(best.RecordedDate) {
			copied := s
			best = &copied
		}
	}
	return best, nil
}

func (t *fakeTx) RecordTrends(_ context.Context, trends []models.TrendRecord) error {
	t.ops = append(t.ops, func(l *fakeLedger) {
		for _, tr := range trends {
			l.trends[tr.Keyword+"|"+tr.DiscoveredAt.Format("2006-01-02")] = tr
		}
	})
	return nil
}

func (t *fakeTx) Scoped(_ context.Context, fn func(item LedgerTx) error) error {
	mark := len(t.ops)
	if err := fn(t); err != nil {
		t.ops = t.ops[:mark]
		return err
	}
	return nil
}

func (t *fakeTx) Commit(context.Context) error {
	for _, op := range t.ops {
		op(t.l)
	}
	t.ops = nil
	t.l.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.ops = nil
	t.l.rollbacks++
	return nil
}

// fake upstream sources

type fakeTrendSource struct {
	keywords []string
	err      error
}

func (s *fakeTrendSource) FetchTrending(context.Context, int) ([]string, error) {
	return s.keywords, s.err
}

type fakeVideoSource struct {
	pages  map[string][]*tikhub.SearchPage
	errFor map[string]error
	calls  int
}

func (s *fakeVideoSource) SearchVideos(_ context.Context, keyword string, cursor, _, _ int) (*tikhub.SearchPage, error) {
	s.calls++
	if err := s.errFor[keyword]; err != nil {
		return nil, err
	}
	pages := s.pages[keyword]
	if cursor >= len(pages) {
		return &tikhub.SearchPage{}, nil
	}
	return pages[cursor], nil
}

type fakeProfileSource struct {
	profiles map[string]map[string]any
	errFor   map[string]error
	panicFor map[string]bool
	fetched  []string
}

func (s *fakeProfileSource) FetchProfile(_ context.Context, handle string) (map[string]any, error) {
	if s.panicFor[handle] {
		panic("unexpected profile source state: " + handle)
	}
	s.fetched = append(s.fetched, handle)
	if err := s.errFor[handle]; err != nil {
		return nil, err
	}
	p, ok := s.profiles[handle]
	if !ok {
		return nil, errors.New("handle not resolvable: " + handle)
	}
	return p, nil
}

// authorBlock builds a search item author with eligible defaults.
func authorBlock(uid, handle string, followers int) map[string]any {
	return map[string]any{
		"sec_uid":         uid,
		"unique_id":       handle,
		"nickname":        "Creator " + handle,
		"signature":       "hello world",
		"follower_count":  float64(followers),
		"total_favorited": float64(followers * 10),
		"aweme_count":     float64(12),
	}
}

func snapshotFixture(uid string, day time.Time, followers int) models.DailySnapshot {
	return models.DailySnapshot{
		UserID:        uid,
		RecordedDate:  day,
		FollowerCount: followers,
	}
}

func searchItem(uid, handle string, followers, views int) tikhub.SearchItem {
	return tikhub.SearchItem{
		VideoID:    "vid-" + uid,
		Caption:    "my new thing",
		Author:     authorBlock(uid, handle, followers),
		Statistics: map[string]any{"play_count": float64(views)},
	}
}
