// Package memory provides in-memory implementations of the payment storage
// interfaces, for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store implements payment.Store, payment.SettlementLog and payment.Outbox.
// Auctions are cloned on the way in and out so callers never share state
// with the store.
type Store struct {
	mu          sync.RWMutex
	auctions    map[generic.AuctionID]payment.Auction
	settlements map[generic.BidderID][]payment.SettlementEntry
	idempotency map[string]bool
	sent        map[string]bool
}

func New() *Store {
	return &Store{
		auctions:    make(map[generic.AuctionID]payment.Auction),
		settlements: make(map[generic.BidderID][]payment.SettlementEntry),
		idempotency: make(map[string]bool),
		sent:        make(map[string]bool),
	}
}

var (
	_ payment.Store         = (*Store)(nil)
	_ payment.SettlementLog = (*Store)(nil)
	_ payment.Outbox        = (*Store)(nil)
)

func (m *Store) SaveAuction(_ context.Context, a payment.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auctions[a.ID] = a.Clone()
	return nil
}

func (m *Store) GetAuction(_ context.Context, id generic.AuctionID) (*payment.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.auctions[id]
	if !ok {
		return nil, generic.ErrAuctionNotFound
	}
	out := a.Clone()
	return &out, nil
}

// ListAuctions returns every auction ordered by name, then ID.
func (m *Store) ListAuctions(_ context.Context) ([]payment.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]payment.Auction, 0, len(m.auctions))
	for _, a := range m.auctions {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) DeleteAuction(_ context.Context, id generic.AuctionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.auctions[id]; !ok {
		return generic.ErrAuctionNotFound
	}
	delete(m.auctions, id)
	return nil
}

// =============================================================================
// SETTLEMENT LOG
// =============================================================================

// AppendSettlement adds an entry. Append-only.
func (m *Store) AppendSettlement(_ context.Context, e payment.SettlementEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.IdempotencyKey != "" {
		if m.idempotency[e.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		m.idempotency[e.IdempotencyKey] = true
	}
	m.settlements[e.BidderID] = append(m.settlements[e.BidderID], e)
	return nil
}

func (m *Store) Settlements(_ context.Context, bidderID generic.BidderID) ([]payment.SettlementEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.settlements[bidderID]
	out := make([]payment.SettlementEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// =============================================================================
// OUTBOX
// =============================================================================

func (m *Store) MarkSent(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sent[key] {
		return false, nil
	}
	m.sent[key] = true
	return true, nil
}

// Reset clears all data.
func (m *Store) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.auctions = make(map[generic.AuctionID]payment.Auction)
	m.settlements = make(map[generic.BidderID][]payment.SettlementEntry)
	m.idempotency = make(map[string]bool)
	m.sent = make(map[string]bool)
	return nil
}
