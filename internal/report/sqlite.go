package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	source          TEXT NOT NULL,
	created_at      DATETIME NOT NULL,
	raw_records     INTEGER NOT NULL,
	admitted        INTEGER NOT NULL,
	dropped         INTEGER NOT NULL,
	matched_trades  INTEGER NOT NULL,
	open_lots       INTEGER NOT NULL,
	gross_pnl       TEXT NOT NULL,
	net_pnl         TEXT NOT NULL,
	commission      TEXT NOT NULL,
	net_liquidation TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS trade_summaries (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL REFERENCES runs(run_id),
	instrument     TEXT NOT NULL,
	security_type  TEXT NOT NULL,
	open_date      TEXT NOT NULL,
	close_date     TEXT NOT NULL,
	duration_days  INTEGER NOT NULL,
	quantity       TEXT NOT NULL,
	buy_price      TEXT NOT NULL,
	sell_price     TEXT NOT NULL,
	sizing         TEXT NOT NULL,
	commission     TEXT NOT NULL,
	gross_pnl      TEXT NOT NULL,
	net_pnl        TEXT NOT NULL,
	per_trade_pct  TEXT NOT NULL,
	fixed_unit_pct TEXT NOT NULL,
	account_pct    TEXT NOT NULL,
	trade_count    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS open_positions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL REFERENCES runs(run_id),
	instrument    TEXT NOT NULL,
	security_type TEXT NOT NULL,
	open_date     TEXT NOT NULL,
	side          TEXT NOT NULL,
	quantity      TEXT NOT NULL,
	price         TEXT NOT NULL,
	sizing        TEXT NOT NULL,
	lot_count     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS warnings (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL REFERENCES runs(run_id),
	kind      TEXT NOT NULL,
	record    INTEGER NOT NULL,
	label     TEXT NOT NULL,
	field     TEXT,
	message   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_summaries_run ON trade_summaries(run_id);
CREATE INDEX IF NOT EXISTS idx_trade_summaries_instrument ON trade_summaries(instrument);
CREATE INDEX IF NOT EXISTS idx_open_positions_run ON open_positions(run_id);
`

// SQLiteWriter appends every run to a SQLite history database. Values are
// stored at full precision as decimal strings.
type SQLiteWriter struct {
	path string
	db   *sql.DB
	run  Run
}

var _ interfaces.ReportWriter = (*SQLiteWriter)(nil)

// OpenSQLite opens (or creates) the history database and applies the schema.
func OpenSQLite(path string, run Run) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases alive across statements.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteWriter{path: path, db: db, run: run}, nil
}

func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}

func (w *SQLiteWriter) Format() string { return FormatSQLite }

func (w *SQLiteWriter) Write(ctx context.Context, ledger *types.Ledger) (string, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	s := ledger.Stats
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, source, created_at, raw_records, admitted, dropped, matched_trades, open_lots, gross_pnl, net_pnl, commission, net_liquidation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.run.ID, w.run.Source, w.run.At.UTC().Format(time.RFC3339),
		s.RawRecords, s.Admitted, s.Dropped, s.MatchedTrades, s.OpenLots,
		s.GrossPnL.String(), s.NetPnL.String(), s.Commission.String(), s.NetLiquidation.String(),
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, t := range ledger.Trades {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trade_summaries (run_id, instrument, security_type, open_date, close_date, duration_days, quantity, buy_price, sell_price, sizing, commission, gross_pnl, net_pnl, per_trade_pct, fixed_unit_pct, account_pct, trade_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.run.ID, t.InstrumentKey, string(t.SecurityType),
			t.OpenTime.Format(dateLayout), t.CloseTime.Format(dateLayout), t.DurationDays,
			t.Quantity.String(), t.BuyPrice.String(), t.SellPrice.String(), t.Sizing.String(),
			t.TotalCommission.String(), t.GrossPnL.String(), t.NetPnL.String(),
			t.PerTradePct.String(), t.NetTradePct.String(), t.AccountPct.String(), t.TradeCount,
		); err != nil {
			return "", fmt.Errorf("failed to insert trade %s: %w", t.InstrumentKey, err)
		}
	}

	for _, p := range ledger.OpenPositions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO open_positions (run_id, instrument, security_type, open_date, side, quantity, price, sizing, lot_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.run.ID, p.InstrumentKey, string(p.SecurityType), p.OpenTime.Format(dateLayout),
			string(p.Side), p.Quantity.String(), p.Price.String(), p.Sizing.String(), p.LotCount,
		); err != nil {
			return "", fmt.Errorf("failed to insert open position %s: %w", p.InstrumentKey, err)
		}
	}

	for _, wn := range ledger.Warnings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO warnings (run_id, kind, record, label, field, message) VALUES (?, ?, ?, ?, ?, ?)`,
			w.run.ID, string(wn.Kind), wn.Index, wn.Record, wn.Field, wn.Message,
		); err != nil {
			return "", fmt.Errorf("failed to insert warning: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return w.path, nil
}
