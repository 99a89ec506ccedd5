package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientCredits is returned when a deduction would take the
	// balance below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// SQLiteStore is the backend's single source of truth: profiles and
// credits, listings, processing jobs, price checks, the encrypted
// key/value store for sessions and the optimisation cache.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
	now           func() time.Time
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
// encryptionKey encrypts key/value payloads at rest.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
		now:           time.Now,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", dbPath).Msg("failed to restrict database permissions")
	}

	return store, nil
}

var schema = []struct {
	name  string
	query string
}{
	{"profiles", `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		subscription_tier TEXT NOT NULL DEFAULT 'free',
		credits_balance INTEGER NOT NULL DEFAULT 0,
		credits_monthly_allowance INTEGER NOT NULL DEFAULT 0,
		first_item_pass_used INTEGER NOT NULL DEFAULT 0,
		has_subscribed INTEGER NOT NULL DEFAULT 0,
		credits_reset_at INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);`},
	{"credit_ledger", `
	CREATE TABLE IF NOT EXISTS credit_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		delta INTEGER NOT NULL,
		operation TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		balance_after INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);`},
	{"listings", `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		brand TEXT NOT NULL,
		category TEXT NOT NULL,
		size TEXT NOT NULL,
		condition TEXT NOT NULL,
		colour TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		photos TEXT NOT NULL,
		hashtags TEXT NOT NULL,
		price REAL,
		suggested_price REAL,
		price_low REAL,
		price_high REAL,
		price_strategy TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`},
	{"vintography_jobs", `
	CREATE TABLE IF NOT EXISTS vintography_jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		status TEXT NOT NULL,
		original_url TEXT NOT NULL,
		result_url TEXT NOT NULL DEFAULT '',
		pipeline_id TEXT NOT NULL DEFAULT '',
		pipeline_step INTEGER NOT NULL DEFAULT 0,
		credits_used INTEGER NOT NULL DEFAULT 0,
		processing_time_ms INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`},
	{"price_checks", `
	CREATE TABLE IF NOT EXISTS price_checks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		brand TEXT NOT NULL,
		title TEXT NOT NULL,
		condition TEXT NOT NULL,
		price_low REAL NOT NULL,
		price_median REAL NOT NULL,
		price_high REAL NOT NULL,
		suggested_price REAL NOT NULL,
		confidence INTEGER NOT NULL,
		comparables INTEGER NOT NULL,
		search_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);`},
	{"kv", `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	);`},
	{"optimise_cache", `
	CREATE TABLE IF NOT EXISTS optimise_cache (
		item_hash TEXT PRIMARY KEY,
		result TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`},
}

func (s *SQLiteStore) init() error {
	for _, t := range schema {
		if _, err := s.db.Exec(t.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_listings_user ON listings(user_id, updated_at)",
		"CREATE INDEX IF NOT EXISTS idx_ledger_user ON credit_ledger(user_id, id)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_user ON vintography_jobs(user_id, created_at)",
	}
	for _, q := range indexes {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
