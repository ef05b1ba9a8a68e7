// Package store is the storage adapter: a thin façade over an embedded
// relational engine (SQLite via mattn/go-sqlite3) exposing prepared-SQL
// execution, transactions, and node/edge CRUD helpers. Nothing above
// this package knows it is SQLite rather than some other engine that
// can execute parameterized SQL and extract JSON.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so generated SQL
// can be run identically inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Config holds database configuration.
type Config struct {
	Path   string        // database file path; ":memory:" for an in-process database
	Logger *slog.Logger  // defaults to slog.Default()
	Busy   time.Duration // SQLite busy timeout; defaults to 5s
}

// Store wraps the SQLite connection pool with the engine's schema.
type Store struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates a database with the given configuration,
// creating the schema (nodes, edges, and their indexes) if it does not
// already exist.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: path cannot be empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", cfg.Path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite allows one writer at a time; keep the pool small so
	// writers serialize through a single connection rather than piling
	// up SQLITE_BUSY errors against each other.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	busy := cfg.Busy
	if busy <= 0 {
		busy = 5 * time.Second
	}

	s := &Store{conn: conn, path: cfg.Path, logger: logger}
	if err := s.initSchema(busy); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(busy time.Duration) error {
	ctx := context.Background()
	statements := []string{
		enableWALMode,
		fmt.Sprintf("PRAGMA busy_timeout=%d;", busy.Milliseconds()),
		enableForeignKeys,
		createMetaTable,
		createNodesTable,
		createEdgesTable,
		createNodesPrimaryLabelIndex,
		createEdgesTypeIndex,
		createEdgesSourceIndex,
		createEdgesTargetIndex,
	}
	for _, stmt := range statements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	s.logger.Debug("schema initialized", "path", s.path, "version", SchemaVersion)
	return s.ensureMeta(ctx)
}

func (s *Store) ensureMeta(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING`, metaKeySchemaVersion, SchemaVersion)
	return err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// DB returns the underlying *sql.DB for read-only, non-transactional
// execution of generated SQL.
func (s *Store) DB() *sql.DB {
	return s.conn
}

// Logger returns the store's logger, for callers that want to log at
// the same level/handler as storage operations.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// Transaction runs fn inside a single SQL transaction; fn's error (or a
// panic) rolls the transaction back, otherwise it is committed. This is
// the boundary every mutating executor plan uses (spec.md §4.3,
// "Transactional scope").
func (s *Store) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// ExecResult mirrors the storage adapter's `execute` contract from
// spec.md §4.4.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Execute runs a non-query statement against q (either the pool or an
// open transaction).
func Execute(ctx context.Context, q Querier, sqlText string, args ...any) (ExecResult, error) {
	res, err := q.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return ExecResult{}, fmt.Errorf("store: execute: %w", err)
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return ExecResult{RowsAffected: affected, LastInsertID: lastID}, nil
}
