/*
Package sqlite provides a SQLite-backed implementation of the payment storage
interfaces.

INTERFACES IMPLEMENTED:
  payment.Store:         Auction snapshots (versioned upsert)
  payment.SettlementLog: Append-only settle/unsettle history
  payment.Outbox:        Notification idempotency keys

RECORD STORAGE:
  Auctions are stored as their external JSON record (factory package) in
  record_json, next to the few columns queries filter or sort on. Loading
  goes back through the factory, so the store and the API accept exactly
  the same shape, legacy single-bidder records included.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on the settlements table
  - Unsettling is recorded as a new entry
  - idempotency_key is UNIQUE; a replayed key is ErrDuplicateIdempotencyKey

KEY TABLES:
  auctions:      One row per auction (versioned)
  settlements:   Immutable log of unit toggles
  notifications: Outbox keys of notifications already sent

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/arrears.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - payment/store.go: Interface definitions
  - factory/auction.go: Record encoding
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/arrears-engine/factory"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
)

// Store implements payment.Store, payment.SettlementLog and payment.Outbox.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ payment.Store         = (*Store)(nil)
	_ payment.SettlementLog = (*Store)(nil)
	_ payment.Outbox        = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS auctions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		record_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_auctions_name
		ON auctions(name);

	-- Settlement log (append-only)
	CREATE TABLE IF NOT EXISTS settlements (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		auction_id TEXT NOT NULL,
		bidder_id TEXT NOT NULL,
		unit INTEGER NOT NULL,
		action TEXT NOT NULL CHECK (action IN ('settle', 'unsettle')),
		at TEXT NOT NULL,
		actor TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_bidder
		ON settlements(bidder_id, seq);

	-- Notification outbox
	CREATE TABLE IF NOT EXISTS notifications (
		key TEXT PRIMARY KEY,
		sent_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// AUCTION STORE (payment.Store interface)
// =============================================================================

// SaveAuction inserts or replaces an auction, bumping its version.
func (s *Store) SaveAuction(ctx context.Context, a payment.Auction) error {
	record, err := factory.MarshalAuction(a)
	if err != nil {
		return fmt.Errorf("failed to encode auction %s: %w", a.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO auctions (id, name, archived, record_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			archived = excluded.archived,
			record_json = excluded.record_json,
			version = auctions.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, query, a.ID, a.Name, a.Archived, string(record), now, now)
	if err != nil {
		return fmt.Errorf("failed to save auction %s: %w", a.ID, err)
	}
	return nil
}

// GetAuction loads an auction by ID.
func (s *Store) GetAuction(ctx context.Context, id generic.AuctionID) (*payment.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var record string
	err := s.db.QueryRowContext(ctx,
		"SELECT record_json FROM auctions WHERE id = ?", id,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", id, generic.ErrAuctionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load auction %s: %w", id, err)
	}

	a, err := factory.ParseAuction([]byte(record))
	if err != nil {
		return nil, fmt.Errorf("stored auction %s: %w", id, err)
	}
	return &a, nil
}

// ListAuctions returns every auction ordered by name.
func (s *Store) ListAuctions(ctx context.Context) ([]payment.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, record_json FROM auctions ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var auctions []payment.Auction
	for rows.Next() {
		var id, record string
		if err := rows.Scan(&id, &record); err != nil {
			return nil, err
		}
		a, err := factory.ParseAuction([]byte(record))
		if err != nil {
			return nil, fmt.Errorf("stored auction %s: %w", id, err)
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

// DeleteAuction removes an auction. Its settlement history is kept.
func (s *Store) DeleteAuction(ctx context.Context, id generic.AuctionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM auctions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete auction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("auction %s: %w", id, generic.ErrAuctionNotFound)
	}
	return nil
}

// AuctionVersion returns how many times an auction was saved.
func (s *Store) AuctionVersion(ctx context.Context, id generic.AuctionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM auctions WHERE id = ?", id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, generic.ErrAuctionNotFound
	}
	return version, err
}

// =============================================================================
// SETTLEMENT LOG (payment.SettlementLog interface)
// =============================================================================

// AppendSettlement adds an entry to the log.
func (s *Store) AppendSettlement(ctx context.Context, e payment.SettlementEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO settlements
		(id, auction_id, bidder_id, unit, action, at, actor, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.AuctionID,
		e.BidderID,
		e.Unit,
		e.Action,
		e.At.UTC().Format(time.RFC3339Nano),
		nullString(e.Actor),
		nullString(e.IdempotencyKey),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append settlement: %w", err)
	}
	return nil
}

// Settlements returns a bidder's entries in the order they were recorded.
func (s *Store) Settlements(ctx context.Context, bidderID generic.BidderID) ([]payment.SettlementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, auction_id, bidder_id, unit, action, at, actor, idempotency_key
		FROM settlements
		WHERE bidder_id = ?
		ORDER BY seq ASC
	`, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var entries []payment.SettlementEntry
	for rows.Next() {
		var (
			e       payment.SettlementEntry
			at      string
			actor   sql.NullString
			idemKey sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.AuctionID, &e.BidderID, &e.Unit, &e.Action, &at, &actor, &idemKey); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Actor = actor.String
		e.IdempotencyKey = idemKey.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// OUTBOX (payment.Outbox interface)
// =============================================================================

// MarkSent records key and reports whether it was new.
func (s *Store) MarkSent(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO notifications (key, sent_at) VALUES (?, ?)",
		key, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"settlements", "notifications", "auctions"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
