package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"TLISentinel/internal/model"
)

// SQLiteRecorder persists analyses to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id           TEXT PRIMARY KEY,
			timestamp    INTEGER NOT NULL,
			symbol       TEXT NOT NULL,
			sentiment    TEXT NOT NULL,
			confidence   REAL,
			target_price REAL,
			stop_price   REAL,
			notes        TEXT,
			payload      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_ts ON signals(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS price_levels (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id TEXT NOT NULL REFERENCES signals(id),
			kind      TEXT NOT NULL,
			value     REAL NOT NULL,
			label     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_levels_signal ON price_levels(signal_id)`,

		`CREATE TABLE IF NOT EXISTS recommendations (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id          TEXT NOT NULL REFERENCES signals(id),
			timestamp          INTEGER NOT NULL,
			symbol             TEXT NOT NULL,
			score              INTEGER NOT NULL,
			tier               TEXT NOT NULL,
			risk_level         TEXT NOT NULL,
			agreement_pct      REAL,
			flags              TEXT,
			potential_gain_pct REAL,
			potential_loss_pct REAL,
			ratio              REAL,
			price              REAL,
			rsi                REAL,
			macd               TEXT,
			source             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_ts ON recommendations(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordAnalysis stores the signal, its levels and the recommendation in one
// transaction.
func (r *SQLiteRecorder) RecordAnalysis(a *model.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := a.AnalyzedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	sig := a.Signal
	rec := a.Recommendation

	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	flags, err := json.Marshal(rec.Flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.Exec(`INSERT INTO signals
		(id, timestamp, symbol, sentiment, confidence, target_price, stop_price, notes, payload)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		id, ts.UnixNano(), sig.Symbol, string(sig.Sentiment), sig.Confidence,
		nullable(sig.TargetPrice), nullable(sig.StopPrice), sig.Notes, string(payload),
	); err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}

	for _, l := range sig.Levels {
		if _, err := tx.Exec(`INSERT INTO price_levels (signal_id, kind, value, label) VALUES (?,?,?,?)`,
			id, string(l.Kind), l.Value, l.Label,
		); err != nil {
			return fmt.Errorf("insert level: %w", err)
		}
	}

	var gain, loss, ratio interface{}
	if rr := rec.RiskReward; rr != nil {
		gain, loss, ratio = rr.PotentialGainPct, rr.PotentialLossPct, rr.Ratio
	}
	if _, err := tx.Exec(`INSERT INTO recommendations
		(signal_id, timestamp, symbol, score, tier, risk_level, agreement_pct, flags,
		 potential_gain_pct, potential_loss_pct, ratio, price, rsi, macd, source)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, ts.UnixNano(), sig.Symbol, rec.Score, string(rec.Overall), string(rec.RiskLevel),
		rec.AgreementPct, string(flags), gain, loss, ratio,
		nullable(a.Snapshot.Price), nullable(a.Snapshot.RSI), string(a.Snapshot.MACDOrUnknown()), a.Snapshot.Source,
	); err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}

	return tx.Commit()
}

func (r *SQLiteRecorder) LatestSignals(limit int) ([]model.ExtractedSignal, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT s.payload FROM signals s
		WHERE s.rowid = (
			SELECT rowid FROM signals WHERE symbol = s.symbol
			ORDER BY timestamp DESC, rowid DESC LIMIT 1
		)
		ORDER BY s.timestamp DESC, s.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest signals: %w", err)
	}
	defer rows.Close()

	var out []model.ExtractedSignal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sig model.ExtractedSignal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			return nil, fmt.Errorf("decode signal: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
