// Package store persists the trade journal: signals seen, orders submitted,
// and realized P&L on closes. The journal is append-only history for audit
// and daily summaries; position state itself always comes from the broker.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mirrortrade/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	received_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id              TEXT PRIMARY KEY,
	venue_order_id  TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	side            TEXT NOT NULL,
	kind            TEXT NOT NULL,
	qty             TEXT NOT NULL,
	price           TEXT NOT NULL,
	submitted_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS closes (
	id          TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	qty         TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price  TEXT NOT NULL,
	pnl         TEXT NOT NULL,
	closed_at   TIMESTAMP NOT NULL
);
`

// Journal records trading activity in a SQLite database.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (or creates) the journal database at dbPath and ensures
// the schema exists.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordSignal stores one consumed signal. Re-recording the same signal ID
// is a no-op, matching the source's dedup contract.
func (j *Journal) RecordSignal(ctx context.Context, sig *domain.Signal) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO signals (id, action, symbol, received_at) VALUES (?, ?, ?, ?)`,
		sig.ID, string(sig.Action), sig.Symbol, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording signal %s: %w", sig.ID, err)
	}
	return nil
}

// RecordOrder stores one accepted order confirmation.
func (j *Journal) RecordOrder(ctx context.Context, conf *domain.Confirmation, kind domain.OrderKind) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO orders (id, venue_order_id, symbol, side, kind, qty, price, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), conf.OrderID, conf.Symbol, string(conf.Side), string(kind),
		conf.Qty.String(), conf.Price.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording order %s: %w", conf.OrderID, err)
	}
	return nil
}

// RecordClose stores one realized close with its P&L.
func (j *Journal) RecordClose(ctx context.Context, symbol string, lot domain.Lot, exitPrice, pnl decimal.Decimal) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO closes (id, symbol, qty, entry_price, exit_price, pnl, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), symbol, lot.Qty.String(), lot.EntryPrice.String(),
		exitPrice.String(), pnl.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording close for %s: %w", symbol, err)
	}
	return nil
}

// CloseRecord is one realized close row.
type CloseRecord struct {
	Symbol     string
	Qty        decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	PnL        decimal.Decimal
	ClosedAt   time.Time
}

// RecentCloses returns the most recent realized closes, newest first.
func (j *Journal) RecentCloses(ctx context.Context, limit int) ([]CloseRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT symbol, qty, entry_price, exit_price, pnl, closed_at
		 FROM closes ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying closes: %w", err)
	}
	defer rows.Close()

	var out []CloseRecord
	for rows.Next() {
		var rec CloseRecord
		var qty, entry, exit, pnl string
		if err := rows.Scan(&rec.Symbol, &qty, &entry, &exit, &pnl, &rec.ClosedAt); err != nil {
			return nil, fmt.Errorf("scanning close row: %w", err)
		}
		if rec.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("parsing qty %q: %w", qty, err)
		}
		if rec.EntryPrice, err = decimal.NewFromString(entry); err != nil {
			return nil, fmt.Errorf("parsing entry price %q: %w", entry, err)
		}
		if rec.ExitPrice, err = decimal.NewFromString(exit); err != nil {
			return nil, fmt.Errorf("parsing exit price %q: %w", exit, err)
		}
		if rec.PnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("parsing pnl %q: %w", pnl, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
