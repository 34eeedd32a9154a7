// Package sqlite provides SQLite-backed stores over a zombiezen
// connection pool. This is the default backend for single-node deployments.
package sqlite

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a SQLite connection pool.
type Config struct {
	// Path is the filesystem path to the database file. The parent
	// directory must exist. The file is created if it does not exist.
	Path string

	// PoolSize is the number of connections in the pool.
	// Default: max(runtime.NumCPU(), 4)
	PoolSize int
}

// Pool is a fixed-size pool of SQLite connections with the schema applied
// to every connection on first use.
type Pool struct {
	inner *sqlitex.Pool
	path  string
}

// Open creates a new connection pool. Connections are initialised lazily
// on first Take. The caller must call Close when done.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", cfg.Path, err)
	}

	log.Info().Str("path", cfg.Path).Int("pool_size", poolSize).Msg("SQLite pool opened")

	return &Pool{
		inner: inner,
		path:  cfg.Path,
	}, nil
}

// Ping takes a connection, forcing schema creation, and returns it.
func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.take(ctx)
	if err != nil {
		return err
	}
	p.inner.Put(conn)
	return nil
}

// Close closes all connections in the pool.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("sqlite: closing %s: %w", p.path, err)
	}
	log.Info().Str("path", p.path).Msg("SQLite pool closed")
	return nil
}

func (p *Pool) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: take: %w", err)
	}
	return conn, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite: applying schema: %w", err)
	}

	return nil
}

// Timestamps are stored as unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    username       TEXT PRIMARY KEY,
    password_hash  TEXT NOT NULL,
    external_id    TEXT,
    created_at     INTEGER NOT NULL,
    last_login_at  INTEGER
);

CREATE TABLE IF NOT EXISTS items (
    item_id     TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    count       INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS command_logs (
    log_id         TEXT PRIMARY KEY,
    external_id    TEXT NOT NULL,
    command        TEXT NOT NULL,
    parameters     TEXT,
    success        INTEGER NOT NULL DEFAULT 0,
    error_message  TEXT,
    timestamp      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_command_logs_timestamp ON command_logs (timestamp);

CREATE TABLE IF NOT EXISTS user_sessions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id     TEXT NOT NULL UNIQUE,
    external_id    TEXT NOT NULL,
    session_token  TEXT NOT NULL,
    expires_at     INTEGER NOT NULL,
    created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_sessions_lookup ON user_sessions (external_id, created_at DESC, id DESC);
`
