/*
Package events is a typed, in-process publish/subscribe bus.

PURPOSE:
  Plan edits, settlements and portfolio recomputations are announced on
  typed topics instead of string-named broadcast events. A subscriber gets
  a compile-time checked payload and a cancel function.

DELIVERY:
  Publish calls every subscriber synchronously, in subscription order, on
  the publisher's goroutine. Subscribers that do I/O should hand the work
  off themselves. A panicking subscriber is not recovered.

USAGE:
  bus := events.NewBus()
  cancel := bus.UnitSettled.Subscribe(func(e events.UnitSettled) { ... })
  defer cancel()
  bus.UnitSettled.Publish(events.UnitSettled{...})

SEE ALSO:
  - notify/notifier.go: Subscribes to settlements
  - api/hub.go: Forwards PortfolioChanged to websocket clients
*/
package events

import (
	"sync"
	"time"

	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
	"github.com/warp/arrears-engine/portfolio"
)

// =============================================================================
// TOPIC
// =============================================================================

// Topic delivers values of one type to its subscribers.
// The zero value is ready to use.
type Topic[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (t *Topic[T]) Subscribe(fn func(T)) (cancel func()) {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscription[T]{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, s := range t.subs {
				if s.id == id {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers v to every current subscriber.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	subs := make([]subscription[T], len(t.subs))
	copy(subs, t.subs)
	t.mu.RUnlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Subscribers returns the number of registered subscribers.
func (t *Topic[T]) Subscribers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// =============================================================================
// EVENTS
// =============================================================================

// PlanChanged is published after a plan override was edited. BidderID is
// empty when a replaced auction changed its default or lot plans; Plan is
// then the auction default resolved on its own.
type PlanChanged struct {
	AuctionID generic.AuctionID
	BidderID  generic.BidderID
	Plan      payment.Plan
	At        time.Time
}

// UnitSettled is published once per unit newly marked as settled.
type UnitSettled struct {
	AuctionID  generic.AuctionID
	BidderID   generic.BidderID
	BidderName string
	Email      string
	Unit       int
	Kind       payment.UnitKind
	At         time.Time
}

// UnitUnsettled is published when a settlement is reverted.
type UnitUnsettled struct {
	AuctionID generic.AuctionID
	BidderID  generic.BidderID
	Unit      int
	At        time.Time
}

// BidderSettled is published when a bidder's last unit is settled.
type BidderSettled struct {
	AuctionID  generic.AuctionID
	BidderID   generic.BidderID
	BidderName string
	Email      string
	At         time.Time
}

// PortfolioChanged carries fresh totals after a recomputation.
type PortfolioChanged struct {
	AsOf  time.Time
	Stats portfolio.Stats
}

// =============================================================================
// BUS
// =============================================================================

// Bus groups the topics of the application.
type Bus struct {
	PlanChanged      Topic[PlanChanged]
	UnitSettled      Topic[UnitSettled]
	UnitUnsettled    Topic[UnitUnsettled]
	BidderSettled    Topic[BidderSettled]
	PortfolioChanged Topic[PortfolioChanged]
}

func NewBus() *Bus { return &Bus{} }
