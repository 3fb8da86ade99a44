package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists runs, their fills and equity curves to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets report queries read while a scheduled run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			ran_at         INTEGER NOT NULL,
			run_trigger    TEXT,
			symbol         TEXT NOT NULL,
			bar_interval   TEXT NOT NULL,
			range_start    INTEGER,
			range_end      INTEGER,
			status         TEXT NOT NULL,
			error          TEXT,
			start_balance  TEXT,
			end_balance    TEXT,
			net_pl         TEXT,
			total_trades   INTEGER,
			wins           INTEGER,
			win_rate       REAL,
			unpaired_sells INTEGER,
			max_drawdown   TEXT,
			phase          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol_ts ON runs(symbol, ran_at)`,

		`CREATE TABLE IF NOT EXISTS fills (
			run_id TEXT NOT NULL REFERENCES runs(id),
			seq    INTEGER NOT NULL,
			ts     INTEGER NOT NULL,
			side   TEXT NOT NULL,
			price  TEXT NOT NULL,
			size   INTEGER NOT NULL,
			pnl    TEXT,
			PRIMARY KEY (run_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS equity (
			run_id   TEXT NOT NULL REFERENCES runs(id),
			ts       INTEGER NOT NULL,
			cash     TEXT NOT NULL,
			position INTEGER NOT NULL,
			mark     TEXT NOT NULL,
			equity   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, ts)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run row, every fill with its FIFO P&L, and the equity curve in one transaction.
func (r *SQLiteRecorder) RecordRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := run.Result
	req := res.Request
	s := res.Summary

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs
		(id, ran_at, run_trigger, symbol, bar_interval, range_start, range_end, status, error,
		 start_balance, end_balance, net_pl, total_trades, wins, win_rate, unpaired_sells,
		 max_drawdown, phase)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.RanAt.Unix(), run.Trigger, req.Symbol, req.Interval.String(),
		req.Start.Unix(), req.End.Unix(), "ok", "",
		s.StartBalance.String(), s.EndBalance.String(), s.NetPL.String(),
		s.TotalTrades, s.Wins, s.WinRate, s.UnpairedSells,
		s.MaxDrawdown.String(), string(res.Phase),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, t := range res.Trades() {
		if _, err := tx.Exec(`INSERT INTO fills (run_id, seq, ts, side, price, size, pnl) VALUES (?,?,?,?,?,?,?)`,
			run.ID, i, t.Time.Unix(), string(t.Side), t.Price.String(), t.Size, t.PnL.String(),
		); err != nil {
			return fmt.Errorf("insert fill: %w", err)
		}
	}

	stmt, err := tx.Prepare(`INSERT INTO equity (run_id, ts, cash, position, mark, equity) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, pt := range res.EquityCurve {
		if _, err := stmt.Exec(run.ID, pt.Time.Unix(), pt.Cash.String(), pt.Position, pt.Mark.String(), pt.Equity.String()); err != nil {
			return fmt.Errorf("insert equity: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordFailure(f *Failure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs
		(id, ran_at, run_trigger, symbol, bar_interval, range_start, range_end, status, error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		f.ID, f.RanAt.Unix(), f.Trigger, f.Request.Symbol, f.Request.Interval.String(),
		f.Request.Start.Unix(), f.Request.End.Unix(), "error", f.Err,
	)
	return err
}

// Recent returns the latest runs for symbol, newest first. An empty symbol matches every run.
func (r *SQLiteRecorder) Recent(symbol string, limit int) ([]RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT r.id, r.ran_at, r.run_trigger, r.symbol, r.bar_interval, r.status,
			COALESCE(r.error, ''), COALESCE(r.net_pl, ''), COALESCE(r.total_trades, 0),
			COALESCE(r.win_rate, 0), COALESCE(r.phase, ''),
			(SELECT COUNT(*) FROM fills f WHERE f.run_id = r.id)
		FROM runs r
		WHERE ? = '' OR r.symbol = ?
		ORDER BY r.ran_at DESC, r.rowid DESC
		LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var ranAt int64
		if err := rows.Scan(&s.ID, &ranAt, &s.Trigger, &s.Symbol, &s.Interval, &s.Status,
			&s.Error, &s.NetPL, &s.TotalTrades, &s.WinRate, &s.Phase, &s.Fills); err != nil {
			return nil, err
		}
		s.RanAt = time.Unix(ranAt, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// EquityPoints returns the stored equity values of a run in time order.
func (r *SQLiteRecorder) EquityPoints(runID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT equity FROM equity WHERE run_id = ? ORDER BY ts`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
