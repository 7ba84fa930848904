package pipeline

import (
	"context"
	"time"

	"comet-radar/internal/db"
	"comet-radar/internal/models"
)

// dbLedger adapts the pgx store to the Ledger port.
type dbLedger struct {
	store *db.Store
}

func NewLedger(store *db.Store) Ledger {
	return &dbLedger{store: store}
}

func (l *dbLedger) ListRoster(ctx context.Context) ([]models.RosterEntry, error) {
	return l.store.ListRoster(ctx)
}

func (l *dbLedger) Begin(ctx context.Context) (LedgerTx, error) {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &dbLedgerTx{tx: tx}, nil
}

type dbLedgerTx struct {
	tx *db.Tx
}

func (t *dbLedgerTx) UpsertCreator(ctx context.Context, c models.Creator) error {
	return t.tx.UpsertCreator(ctx, c)
}

func (t *dbLedgerTx) UpsertSnapshot(ctx context.Context, s models.DailySnapshot) error {
	return t.tx.UpsertSnapshot(ctx, s)
}

func (t *dbLedgerTx) PriorSnapshot(ctx context.Context, userID string, before time.Time) (*models.DailySnapshot, error) {
	return t.tx.PriorSnapshot(ctx, userID, before)
}

func (t *dbLedgerTx) RecordTrends(ctx context.Context, trends []models.TrendRecord) error {
	return t.tx.RecordTrends(ctx, trends)
}

func (t *dbLedgerTx) Scoped(ctx context.Context, fn func(item LedgerTx) error) error {
	return t.tx.Scoped(ctx, func(item *db.Tx) error {
		return fn(&dbLedgerTx{tx: item})
	})
}

func (t *dbLedgerTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *dbLedgerTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
