// Package store provides SQLite persistence for the exchange: user accounts,
// session tokens, and the fill journal. The order books themselves are not
// persisted; only what must survive a restart lives here.
package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS fills (
		id TEXT PRIMARY KEY,
		market_id INTEGER NOT NULL,
		maker_order_id INTEGER NOT NULL,
		taker_order_id INTEGER NOT NULL,
		maker TEXT NOT NULL,
		taker TEXT NOT NULL,
		taker_is_ask INTEGER NOT NULL,
		amount0 INTEGER NOT NULL,
		amount1 INTEGER NOT NULL,
		price INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	CREATE INDEX IF NOT EXISTS idx_fills_market ON fills(market_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_fills_maker ON fills(maker);
	CREATE INDEX IF NOT EXISTS idx_fills_taker ON fills(taker);
	`
	_, err := s.db.Exec(schema)
	return err
}

// User is a registered trader.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
