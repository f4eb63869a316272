package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/fx_sequence_trader/internal/domain"
)

// SQLiteJournal persists closed deals and order events. It implements
// domain.TradeJournal; failures here never block trading.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	journal := &SQLiteJournal{db: db}
	if err := journal.initSchema(); err != nil {
		return nil, err
	}

	return journal, nil
}

func (j *SQLiteJournal) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS deals (
			ticket INTEGER PRIMARY KEY,
			symbol TEXT NOT NULL,
			profit REAL NOT NULL,
			volume REAL NOT NULL,
			entry INTEGER NOT NULL,
			magic INTEGER NOT NULL,
			closed_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_deals_symbol ON deals(symbol);`,
		`CREATE TABLE IF NOT EXISTS order_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			action TEXT NOT NULL,
			volume REAL NOT NULL,
			price REAL NOT NULL,
			sequence_id TEXT NOT NULL,
			reason TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_symbol ON order_events(symbol);`,
	}

	for _, q := range queries {
		if _, err := j.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// SaveDeal upserts by ticket so re-folding an overlapping history window is
// harmless.
func (j *SQLiteJournal) SaveDeal(ctx context.Context, deal domain.Deal) error {
	query := `INSERT INTO deals (ticket, symbol, profit, volume, entry, magic, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(ticket) DO NOTHING`
	_, err := j.db.ExecContext(ctx, query,
		deal.Ticket, deal.Symbol, deal.Profit, deal.Volume, int(deal.Entry), deal.Magic, deal.Time)
	return err
}

func (j *SQLiteJournal) SaveOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	query := `INSERT INTO order_events (symbol, side, action, volume, price, sequence_id, reason, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.ExecContext(ctx, query,
		event.Symbol, event.Side, event.Action, event.Volume, event.Price, event.SequenceID, event.Reason, event.CreatedAt)
	return err
}

func (j *SQLiteJournal) ListDeals(ctx context.Context, limit int) ([]domain.Deal, error) {
	query := `SELECT ticket, symbol, profit, volume, entry, magic, closed_at FROM deals ORDER BY closed_at DESC LIMIT ?`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		var d domain.Deal
		var entry int
		if err := rows.Scan(&d.Ticket, &d.Symbol, &d.Profit, &d.Volume, &entry, &d.Magic, &d.Time); err != nil {
			return nil, err
		}
		d.Entry = domain.DealEntry(entry)
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
