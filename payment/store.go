/*
store.go - Persistence interfaces for auction snapshots

PURPOSE:
  Defines the interface between the engine's collaborators and the
  database. The engine itself never touches a Store: the API loads a
  snapshot, runs the pure computation, and writes progress changes back.

KEY INTERFACES:
  Store:         Auction snapshots (upsert, load, list, delete)
  SettlementLog: Append-only history of settle/unsettle actions
  Outbox:        Idempotency keys for notifications already sent

APPEND-ONLY CONTRACT:
  SettlementLog has no Update or Delete. An unsettle is recorded as a new
  entry, never by removing the settle it reverts.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - store/memory/memory.go: In-memory for testing

SEE ALSO:
  - progress.go: The transitions that produce settlement entries
  - notify/notifier.go: Uses Outbox for once-only notifications
*/
package payment

import (
	"context"
	"time"

	"github.com/warp/arrears-engine/generic"
)

// Store persists auction snapshots.
type Store interface {
	// SaveAuction inserts or replaces an auction.
	SaveAuction(ctx context.Context, a Auction) error

	// GetAuction returns generic.ErrAuctionNotFound when id is unknown.
	GetAuction(ctx context.Context, id generic.AuctionID) (*Auction, error)

	// ListAuctions returns every auction, ordered by name.
	ListAuctions(ctx context.Context) ([]Auction, error)

	DeleteAuction(ctx context.Context, id generic.AuctionID) error
}

// =============================================================================
// SETTLEMENT LOG - Who toggled which unit, when
// =============================================================================

type SettlementAction string

const (
	ActionSettle   SettlementAction = "settle"
	ActionUnsettle SettlementAction = "unsettle"
)

// SettlementEntry is one recorded settle or unsettle.
type SettlementEntry struct {
	ID             string
	AuctionID      generic.AuctionID
	BidderID       generic.BidderID
	Unit           int
	Action         SettlementAction
	At             time.Time
	Actor          string
	IdempotencyKey string
}

// SettlementLog is append-only.
type SettlementLog interface {
	// AppendSettlement returns generic.ErrDuplicateIdempotencyKey when the
	// entry's key was already recorded.
	AppendSettlement(ctx context.Context, e SettlementEntry) error

	// Settlements returns a bidder's entries in the order they were recorded.
	Settlements(ctx context.Context, bidderID generic.BidderID) ([]SettlementEntry, error)
}

// Outbox remembers which notifications were already sent.
type Outbox interface {
	// MarkSent records key and reports whether it was new.
	MarkSent(ctx context.Context, key string) (bool, error)
}
