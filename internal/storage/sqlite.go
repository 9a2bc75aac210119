// Package storage persists the finance collections in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements store.Store and store.SeedStateStore.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
	logger *log.Logger

	entries     *Collection[core.FinanceEntry]
	shopItems   *Collection[core.ShopItem]
	soldItems   *Collection[core.SoldItem]
	history     *Collection[core.HistoryEntry]
	creditCards *Collection[core.CreditCard]
}

var (
	_ store.Store          = (*SQLiteStore)(nil)
	_ store.SeedStateStore = (*SQLiteStore)(nil)
)

// Open creates the database file if needed, migrates it and returns a store.
func Open(ctx context.Context, dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=busy_timeout(5000)"

	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer; collection locks already serialize per table
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	s := &SQLiteStore{db: db, logger: logger}
	s.entries = newCollection(db, entryCodec, &s.closed, logger)
	s.shopItems = newCollection(db, shopItemCodec, &s.closed, logger)
	s.soldItems = newCollection(db, soldItemCodec, &s.closed, logger)
	s.history = newCollection(db, historyCodec, &s.closed, logger)
	s.creditCards = newCollection(db, creditCardCodec, &s.closed, logger)

	logger.InfoContext(ctx, "SQLite store ready", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) Entries() store.Collection[core.FinanceEntry]   { return s.entries }
func (s *SQLiteStore) ShopItems() store.Collection[core.ShopItem]     { return s.shopItems }
func (s *SQLiteStore) SoldItems() store.Collection[core.SoldItem]     { return s.soldItems }
func (s *SQLiteStore) History() store.Collection[core.HistoryEntry]   { return s.history }
func (s *SQLiteStore) CreditCards() store.Collection[core.CreditCard] { return s.creditCards }

func (s *SQLiteStore) LoadSeedState(ctx context.Context) (core.SeedState, error) {
	if s.closed.Load() {
		return core.SeedState{}, &store.StorageError{Op: "load", Collection: "seed_state", Err: store.ErrClosed}
	}
	var (
		st core.SeedState
		ts int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT seeded, version, seeded_at FROM seed_state WHERE id = 1").
		Scan(&st.Seeded, &st.Version, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SeedState{}, nil
	}
	if err != nil {
		return core.SeedState{}, store.Wrap("load", "seed_state", err)
	}
	st.SeededAt = fromMillis(ts)
	return st, nil
}

func (s *SQLiteStore) SaveSeedState(ctx context.Context, st core.SeedState) error {
	if s.closed.Load() {
		return &store.StorageError{Op: "save", Collection: "seed_state", Err: store.ErrClosed}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO seed_state (id, seeded, version, seeded_at) VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET seeded = excluded.seeded, version = excluded.version, seeded_at = excluded.seeded_at`,
		st.Seeded, st.Version, millis(st.SeededAt))
	return store.Wrap("save", "seed_state", err)
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close ends every subscription and closes the database.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.entries.hub.Close()
	s.shopItems.hub.Close()
	s.soldItems.hub.Close()
	s.history.hub.Close()
	s.creditCards.hub.Close()
	return s.db.Close()
}
