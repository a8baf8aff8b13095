// Package storage provides a SQLite-backed audit log of dispatched signals.
// The log is write-mostly operational history; the pipeline's quota and
// cooldown state are deliberately in-memory and never read from here.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/quantfold/polyalert/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for dispatch persistence.
type Storage struct {
	db         *sql.DB
	maxRecords int
}

// DispatchRecord is one row of the audit log.
type DispatchRecord struct {
	ID          string
	IdentityKey string
	MarketID    string
	SignalType  string
	Action      string
	Confidence  string
	BetSize     string
	Question    string
	YesPrice    float64
	Score       float64
	SentAt      time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/polyalert/data.db.
func New(maxRecords int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "polyalert", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxRecords: maxRecords}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dispatches (
			id           TEXT PRIMARY KEY,
			identity_key TEXT NOT NULL,
			market_id    TEXT NOT NULL,
			signal_type  TEXT NOT NULL,
			action       TEXT NOT NULL,
			confidence   TEXT NOT NULL,
			bet_size     TEXT NOT NULL,
			question     TEXT,
			yes_price    REAL NOT NULL,
			score        REAL NOT NULL,
			sent_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_sent_at ON dispatches(sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_key ON dispatches(identity_key)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordDispatch appends one delivered signal to the audit log and
// enforces the row cap.
func (s *Storage) RecordDispatch(sig *models.Signal, score float64, sentAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO dispatches
			(id, identity_key, market_id, signal_type, action, confidence,
			 bet_size, question, yes_price, score, sent_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), sig.IdentityKey(), sig.MarketID, string(sig.Type),
		string(sig.Action), string(sig.Confidence), string(sig.BetSize),
		sig.MarketQuestion, sig.YesPrice, score, sentAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch: %w", err)
	}

	if s.maxRecords > 0 {
		if _, err = tx.Exec(`
			DELETE FROM dispatches WHERE id NOT IN (
				SELECT id FROM dispatches ORDER BY sent_at DESC LIMIT ?
			)`, s.maxRecords); err != nil {
			return fmt.Errorf("failed to enforce dispatch cap: %w", err)
		}
	}

	return tx.Commit()
}

// RecentDispatches returns the newest rows, most recent first.
func (s *Storage) RecentDispatches(limit int) ([]DispatchRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, identity_key, market_id, signal_type, action, confidence,
		       bet_size, question, yes_price, score, sent_at
		FROM dispatches ORDER BY sent_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispatches: %w", err)
	}
	defer rows.Close()

	var records []DispatchRecord
	for rows.Next() {
		var r DispatchRecord
		var sentAtNano int64
		if err := rows.Scan(
			&r.ID, &r.IdentityKey, &r.MarketID, &r.SignalType, &r.Action,
			&r.Confidence, &r.BetSize, &r.Question, &r.YesPrice, &r.Score,
			&sentAtNano,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch: %w", err)
		}
		r.SentAt = time.Unix(0, sentAtNano)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountSince reports how many dispatches happened at or after t.
func (s *Storage) CountSince(t time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM dispatches WHERE sent_at >= ?`, t.UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count dispatches: %w", err)
	}
	return n, nil
}
