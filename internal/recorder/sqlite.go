package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"TrendSentinel/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while a run writes.
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
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			total       INTEGER,
			succeeded   INTEGER,
			skipped     INTEGER,
			output_path TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        INTEGER NOT NULL REFERENCES runs(id),
			position      INTEGER NOT NULL,
			ticker        TEXT NOT NULL,
			as_of         INTEGER,
			latest_signal REAL,
			latest_price  REAL,
			fast_ewma     REAL,
			slow_ewma     REAL,
			volatility    REAL,
			observations  INTEGER,
			chart_path    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_run ON signals(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ticker ON signals(ticker, as_of)`,

		`CREATE TABLE IF NOT EXISTS skipped (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id  INTEGER NOT NULL REFERENCES runs(id),
			ticker  TEXT NOT NULL,
			reason  TEXT,
			detail  TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run, its summary rows and its skipped instruments in one transaction.
func (r *SQLiteRecorder) RecordRun(report *model.RunReport) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO runs
		(started_at, finished_at, total, succeeded, skipped, output_path)
		VALUES (?,?,?,?,?,?)`,
		report.StartedAt.Unix(), report.FinishedAt.Unix(),
		report.Total, report.Succeeded(), len(report.Skipped), report.OutputPath,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for i, s := range report.Summaries {
		if _, err := tx.Exec(`INSERT INTO signals
			(run_id, position, ticker, as_of, latest_signal, latest_price,
			 fast_ewma, slow_ewma, volatility, observations, chart_path)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			runID, i, s.Ticker, s.AsOf.Unix(), nullable(s.LatestSignal.Get()), s.LatestPrice,
			nullable(s.FastEWMA.Get()), nullable(s.SlowEWMA.Get()), nullable(s.Volatility.Get()),
			s.Observations, s.ChartPath,
		); err != nil {
			return 0, fmt.Errorf("insert signal %s: %w", s.Ticker, err)
		}
	}
	for _, sk := range report.Skipped {
		if _, err := tx.Exec(`INSERT INTO skipped (run_id, ticker, reason, detail) VALUES (?,?,?,?)`,
			runID, sk.Ticker, string(sk.Reason), sk.Detail,
		); err != nil {
			return 0, fmt.Errorf("insert skipped %s: %w", sk.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// LatestSignals returns the summary rows of the most recent run, in run order.
func (r *SQLiteRecorder) LatestSignals() ([]StoredSignal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT run_id, ticker, latest_signal, as_of, latest_price
		FROM signals
		WHERE run_id = (SELECT MAX(id) FROM runs)
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query latest signals: %w", err)
	}
	defer rows.Close()

	var out []StoredSignal
	for rows.Next() {
		var (
			s     StoredSignal
			sig   sql.NullFloat64
			asOf  int64
			price sql.NullFloat64
		)
		if err := rows.Scan(&s.RunID, &s.Ticker, &sig, &asOf, &price); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if sig.Valid {
			v := sig.Float64
			s.LatestSignal = &v
		}
		s.AsOf = time.Unix(asOf, 0).UTC()
		s.LatestPrice = price.Float64
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

func nullable(v float64, ok bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: ok}
}
