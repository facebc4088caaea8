package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the connection pool and runs units of work.
//
// Every write transaction starts with BEGIN IMMEDIATE, so concurrent ledger
// writers are serialised by the database write lock and a waiting writer
// gives up after the busy timeout.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// Options tune the connection. Zero values use the defaults.
type Options struct {
	BusyTimeout time.Duration
}

func (o Options) busyTimeoutMillis() int64 {
	if o.BusyTimeout <= 0 {
		return 5000
	}
	return o.BusyTimeout.Milliseconds()
}

// NewSQLiteRepository opens (creating if needed) the database file at dbPath
// and applies migrations.
func NewSQLiteRepository(dbPath string, opts Options) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	params := connParams(opts)
	params.Add("_pragma", "journal_mode(WAL)")
	return open("file:"+dbPath+"?"+params.Encode(), 0)
}

// NewMemoryRepository opens a named in-memory database shared by all
// connections of this process. It lives until the repository is closed.
func NewMemoryRepository(name string, opts Options) (*SQLiteRepository, error) {
	params := connParams(opts)
	params.Set("mode", "memory")
	params.Set("cache", "shared")
	return open("file:"+name+"?"+params.Encode(), 1)
}

func connParams(opts Options) url.Values {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.busyTimeoutMillis()))
	params.Set("_txlock", "immediate")
	return params
}

func open(dsn string, maxConns int) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Queries returns statements bound to the pool, for reads outside a unit of work.
func (r *SQLiteRepository) Queries() *Queries {
	return r.queries
}

// WithTx runs fn inside one write transaction. fn's error rolls everything
// back and is returned unchanged; commit failures become StoreErrors.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}

	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}
