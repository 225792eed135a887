/*
scheduler.go - Periodic overdue scan

PURPOSE:
  Overdue status depends on the clock, not only on writes: a pending unit
  becomes overdue when its due day ends, and interest grows every 30 days.
  The scanner recomputes the live portfolio on an interval so the gauges
  and the websocket feed follow the clock without any request.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Scans once immediately on start
  - Logs bidders whose status moved to overdue since the previous scan

USAGE:
  scanner := NewOverdueScanner(handler, time.Hour)
  scanner.Start()
  // ... later
  scanner.Stop()

SEE ALSO:
  - handlers.go: RecomputePortfolio
  - hub.go: Receives the PortfolioChanged events
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
)

// OverdueScanner periodically recomputes the portfolio.
type OverdueScanner struct {
	Handler  *Handler
	Interval time.Duration
	Logger   *log.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// overdue holds the bidders found overdue by the previous scan.
	overdue map[generic.BidderID]bool
	lastRun time.Time
}

// NewOverdueScanner creates a scanner. It does nothing until Start.
func NewOverdueScanner(handler *Handler, interval time.Duration) *OverdueScanner {
	return &OverdueScanner{
		Handler:  handler,
		Interval: interval,
		Logger:   handler.Logger.WithPrefix("scanner"),
		overdue:  make(map[generic.BidderID]bool),
	}
}

// Start begins scanning.
func (s *OverdueScanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("started", "interval", s.Interval)
}

// Stop stops scanning and waits for a running scan to finish.
func (s *OverdueScanner) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.Logger.Info("stopped")
}

func (s *OverdueScanner) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.Scan(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Scan(context.Background())
		case <-stop:
			return
		}
	}
}

// Scan recomputes the portfolio once and returns the bidders that became
// overdue since the previous scan.
func (s *OverdueScanner) Scan(ctx context.Context) []generic.BidderID {
	rep, err := s.Handler.RecomputePortfolio(ctx)
	if err != nil {
		s.Logger.Error("scan failed", "err", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[generic.BidderID]bool)
	var newly []generic.BidderID
	for _, r := range rep.Records {
		if r.Status != payment.StatusOverdue {
			continue
		}
		current[r.BidderID] = true
		if !s.overdue[r.BidderID] {
			newly = append(newly, r.BidderID)
			s.Logger.Warn("bidder overdue",
				"auction", r.AuctionID,
				"bidder", r.BidderID,
				"name", r.BidderName,
				"days", r.DaysOverdue,
				"units", len(r.OverdueUnits),
			)
		}
	}
	s.overdue = current
	s.lastRun = rep.AsOf

	s.Logger.Info("scan complete",
		"bidders", rep.Stats.Bidders,
		"overdue", rep.Stats.Overdue,
		"overdue_amount", money(rep.Stats.OverdueAmount),
	)
	return newly
}

// LastRun returns the evaluation instant of the last successful scan.
func (s *OverdueScanner) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
