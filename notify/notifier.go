/*
Package notify turns settlement events into outbound notifications.

PURPOSE:
  The dashboard emails a bidder once per unit newly marked as settled and
  once more when the bidder becomes fully settled. This package decides
  when to emit those notifications; delivery is a Publisher's job (AMQP in
  production, the log otherwise).

ONCE-ONLY:
  Every notification carries a key ("<bidder>:unit:<n>" or
  "<bidder>:settled"). The key is recorded in the Outbox before publishing,
  so settling, unsettling and settling the same unit again never notifies
  twice. A publish failure after the key was recorded is logged and not
  retried.

SEE ALSO:
  - events/bus.go: UnitSettled and BidderSettled topics
  - notify/amqp.go: RabbitMQ publisher
  - payment/store.go: Outbox interface
*/
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/warp/arrears-engine/events"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
)

// Kind distinguishes notification types.
type Kind string

const (
	KindUnitSettled   Kind = "unit_settled"
	KindBidderSettled Kind = "bidder_settled"
)

// Notification is the payload handed to a Publisher.
type Notification struct {
	Kind       Kind              `json:"kind"`
	Key        string            `json:"key"`
	AuctionID  generic.AuctionID `json:"auctionId"`
	BidderID   generic.BidderID  `json:"bidderId"`
	BidderName string            `json:"bidderName,omitempty"`
	Email      string            `json:"email,omitempty"`
	Unit       *int              `json:"unit,omitempty"`
	UnitKind   payment.UnitKind  `json:"unitKind,omitempty"`
	At         time.Time         `json:"at"`
}

// Publisher delivers a notification.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// UnitKey is the once-only key of a unit notification.
func UnitKey(bidder generic.BidderID, unit int) string {
	return fmt.Sprintf("%s:unit:%d", bidder, unit)
}

// SettledKey is the once-only key of the fully-settled notification.
func SettledKey(bidder generic.BidderID) string {
	return fmt.Sprintf("%s:settled", bidder)
}

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier emits each notification at most once.
type Notifier struct {
	outbox    payment.Outbox
	publisher Publisher
	logger    *log.Logger
	timeout   time.Duration
}

func New(outbox payment.Outbox, publisher Publisher, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Notifier{
		outbox:    outbox,
		publisher: publisher,
		logger:    logger.WithPrefix("notify"),
		timeout:   5 * time.Second,
	}
}

// Attach subscribes the notifier to the bus. The returned function detaches it.
func (n *Notifier) Attach(bus *events.Bus) (detach func()) {
	cancelUnit := bus.UnitSettled.Subscribe(func(e events.UnitSettled) {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if _, err := n.UnitSettled(ctx, e); err != nil {
			n.logger.Error("unit notification failed", "bidder", e.BidderID, "unit", e.Unit, "err", err)
		}
	})
	cancelBidder := bus.BidderSettled.Subscribe(func(e events.BidderSettled) {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if _, err := n.BidderSettled(ctx, e); err != nil {
			n.logger.Error("settlement notification failed", "bidder", e.BidderID, "err", err)
		}
	})
	return func() {
		cancelUnit()
		cancelBidder()
	}
}

// UnitSettled notifies a newly settled unit. It reports whether a
// notification was published.
func (n *Notifier) UnitSettled(ctx context.Context, e events.UnitSettled) (bool, error) {
	unit := e.Unit
	return n.emit(ctx, Notification{
		Kind:       KindUnitSettled,
		Key:        UnitKey(e.BidderID, e.Unit),
		AuctionID:  e.AuctionID,
		BidderID:   e.BidderID,
		BidderName: e.BidderName,
		Email:      e.Email,
		Unit:       &unit,
		UnitKind:   e.Kind,
		At:         e.At,
	})
}

// BidderSettled notifies a bidder becoming fully settled.
func (n *Notifier) BidderSettled(ctx context.Context, e events.BidderSettled) (bool, error) {
	return n.emit(ctx, Notification{
		Kind:       KindBidderSettled,
		Key:        SettledKey(e.BidderID),
		AuctionID:  e.AuctionID,
		BidderID:   e.BidderID,
		BidderName: e.BidderName,
		Email:      e.Email,
		At:         e.At,
	})
}

func (n *Notifier) emit(ctx context.Context, note Notification) (bool, error) {
	fresh, err := n.outbox.MarkSent(ctx, note.Key)
	if err != nil {
		return false, fmt.Errorf("record notification %s: %w", note.Key, err)
	}
	if !fresh {
		n.logger.Debug("notification already sent", "key", note.Key)
		return false, nil
	}
	if err := n.publisher.Publish(ctx, note); err != nil {
		return false, fmt.Errorf("publish notification %s: %w", note.Key, err)
	}
	n.logger.Info("notification sent", "kind", note.Kind, "key", note.Key)
	return true, nil
}

// =============================================================================
// LOG PUBLISHER
// =============================================================================

// LogPublisher writes notifications to the log. Used when no broker is
// configured.
type LogPublisher struct {
	Logger *log.Logger
}

func (p LogPublisher) Publish(_ context.Context, n Notification) error {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	fields := []interface{}{"kind", n.Kind, "auction", n.AuctionID, "bidder", n.BidderID}
	if n.Unit != nil {
		fields = append(fields, "unit", *n.Unit)
	}
	logger.Info("payment notification", fields...)
	return nil
}
