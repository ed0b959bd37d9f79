package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"deepshield/internal/config"
)

// Store manages user and post persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	busyAttempts   = 5
	busyBackoff    = 10 * time.Millisecond
	busyBackoffMax = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func sqliteCode(err error) (int, bool) {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code(), true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	primary := code & 0xff
	return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
}

func isUniqueViolation(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Connections without extended result codes only report the primary code.
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	}
	return false
}

// retryBusy reruns op with exponential backoff while SQLite reports the
// database busy or locked.
func retryBusy[T any](ctx context.Context, op func() (T, error)) (T, error) {
	delay := busyBackoff
	for attempt := 1; ; attempt++ {
		out, err := op()
		if err == nil || !isSQLiteBusy(err) || attempt == busyAttempts {
			return out, err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
		delay = min(delay*2, busyBackoffMax)
	}
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	return retryBusy(ctx, func() (sql.Result, error) {
		return s.db.ExecContext(ctx, query, args...)
	})
}

// withTx runs fn in a transaction; a busy error restarts the whole transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	_, err := retryBusy(ctx, func() (struct{}, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return struct{}{}, err
		}
		return struct{}{}, tx.Commit()
	})
	return err
}

// Open creates the configured directories and opens (or initializes) the
// database at cfg.DatabasePath().
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	dbPath := cfg.DatabasePath()

	// Pragmas ride on the DSN so every pooled connection gets them.
	query := url.Values{"_pragma": {"journal_mode(WAL)", "foreign_keys(1)", "busy_timeout(5000)"}}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite db %s: %w", dbPath, err)
	}
	st := &Store{db: db, path: dbPath}
	if err := st.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ensureContext(ctx))
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
