package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5/pgxpool"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const tableName = "documents"

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and configures the storage backend.
type Config struct {
	Backend string
	DSN     string
}

// rowScanner is satisfied by *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// conn abstracts the two drivers behind the minimal surface the store needs.
type conn interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args []any, each func(rowScanner) error) error
	ping(ctx context.Context) error
	close() error
}

// Store is a JSON document store over SQLite or PostgreSQL.
type Store struct {
	conn    conn
	dialect string
	now     func() time.Time
}

// Open connects to the configured backend and creates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("resolve database path: %w", err)
			}
			dsn = p
		}
		return OpenSQLite(ctx, dsn)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// OpenSQLite opens the SQLite database at dsn, applies pragmas and creates
// the schema.
func OpenSQLite(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{conn: &sqlConn{db: db}, dialect: dialect.SQLite, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

// OpenMemory opens a private in-memory SQLite database. Stores opened with
// the same name share data until the last one is closed.
func OpenMemory(ctx context.Context, name string) (*Store, error) {
	name = strings.NewReplacer("/", "_", " ", "_", "?", "_", "#", "_").Replace(name)
	return OpenSQLite(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

// OpenPostgres connects a pgx pool to url and creates the schema.
func OpenPostgres(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres backend requires a connection URL")
	}
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &Store{conn: &pgConn{pool: pool}, dialect: dialect.Postgres, now: time.Now}
	if err := s.conn.ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

// Dialect returns the SQL dialect of the backend.
func (s *Store) Dialect() string {
	return s.dialect
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS documents_collection_created ON documents (collection, created_at)`,
	}
	if s.dialect == dialect.Postgres {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS documents (
				collection TEXT NOT NULL,
				id TEXT NOT NULL,
				data JSONB NOT NULL,
				version BIGINT NOT NULL DEFAULT 1,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (collection, id)
			)`,
			`CREATE INDEX IF NOT EXISTS documents_collection_created ON documents (collection, created_at)`,
			`CREATE INDEX IF NOT EXISTS documents_data ON documents USING GIN (data)`,
		}
	}
	for _, stmt := range stmts {
		if _, err := s.conn.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// applyPragmas configures SQLite for concurrent readers and a single writer.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the SQLite file path in priority order:
// 1. SYNAPSE_DB environment variable
// 2. $XDG_DATA_HOME/synapse/synapse.db
// 3. ~/.local/share/synapse/synapse.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("SYNAPSE_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "synapse", "synapse.db")
	return p, ensureDir(p)
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

type sqlConn struct {
	db *sql.DB
}

func (c *sqlConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *sqlConn) query(ctx context.Context, query string, args []any, each func(rowScanner) error) error {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (c *sqlConn) ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *sqlConn) close() error                   { return c.db.Close() }

type pgConn struct {
	pool *pgxpool.Pool
}

func (c *pgConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgConn) query(ctx context.Context, query string, args []any, each func(rowScanner) error) error {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (c *pgConn) ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *pgConn) close() error {
	c.pool.Close()
	return nil
}
