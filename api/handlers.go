/*
handlers.go - HTTP request handlers for the arrears API

PURPOSE:
  Implements the REST API endpoints. Handlers are thin: they load an
  auction snapshot from the store, run the pure payment/portfolio
  computation with an explicit "now", persist progress changes and publish
  events. No payment rule lives here.

ENDPOINT CATEGORIES:

  Auctions:
    GET    /api/auctions                  - List auctions
    POST   /api/auctions                  - Create or replace from a record
    GET    /api/auctions/{id}             - Full auction record
    DELETE /api/auctions/{id}             - Delete auction

  Bidders:
    GET    /api/auctions/{id}/bidders/{bidderID}                    - Status
    GET    /api/auctions/{id}/bidders/{bidderID}/schedule           - Rows
    PUT    /api/auctions/{id}/bidders/{bidderID}/plan               - Edit plan
    POST   /api/auctions/{id}/bidders/{bidderID}/units/{unit}/settle - Mark paid
    DELETE /api/auctions/{id}/bidders/{bidderID}/units/{unit}/settle - Unmark

  Portfolio:
    GET    /api/portfolio                 - Records and totals

  Scenarios:
    GET    /api/scenarios                 - List demo scenarios
    POST   /api/scenarios/load            - Load a scenario

QUERY PARAMETERS:
  as_of=YYYY-MM-DD   Evaluate at that date instead of now (read endpoints)
  include_archived   Include archived auctions in the portfolio

IDEMPOTENCY:
  Settle and unsettle accept an Idempotency-Key header. A key already in the
  settlement log replays the current state instead of toggling again. The
  log entry is appended only after the progress is saved.

EVENTS:
  Bus events are published after a successful save and are not replayed
  if a subscriber fails. Replacing an auction whose default or lot plans
  changed publishes PlanChanged with an empty BidderID.

ERROR HANDLING:
  - 400 Bad Request: Invalid input (malformed JSON, bad unit, validation)
  - 404 Not Found: Auction or bidder doesn't exist
  - 409 Conflict: Unit toggled out of order, idempotency race
  - 500 Internal Server Error: Store failures

SEE ALSO:
  - server.go: Router setup
  - dto.go: Request/response types
  - payment/progress.go: Settle/Unsettle rules
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/warp/arrears-engine/events"
	"github.com/warp/arrears-engine/factory"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
	"github.com/warp/arrears-engine/portfolio"
	"golang.org/x/sync/singleflight"
)

const maxBodyBytes = 1 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store       payment.Store
	Settlements payment.SettlementLog
	Bus         *events.Bus
	Metrics     *Metrics
	Logger      *log.Logger

	// Now is the clock. Tests replace it.
	Now func() time.Time

	validate *validator.Validate
	reports  singleflight.Group

	// writeMu serializes load-modify-save cycles on auctions.
	writeMu sync.Mutex
}

// NewHandler creates a new handler.
func NewHandler(store payment.Store, settlements payment.SettlementLog, bus *events.Bus, logger *log.Logger) *Handler {
	return &Handler{
		Store:       store,
		Settlements: settlements,
		Bus:         bus,
		Logger:      logger.WithPrefix("api"),
		Now:         time.Now,
		validate:    validator.New(),
	}
}

func (h *Handler) now() time.Time { return h.Now().UTC() }

// =============================================================================
// AUCTION HANDLERS
// =============================================================================

// ListAuctions returns a summary of every auction.
func (h *Handler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.Store.ListAuctions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list auctions", err)
		return
	}

	dtos := make([]AuctionSummaryDTO, 0, len(auctions))
	for _, a := range auctions {
		dtos = append(dtos, toAuctionSummary(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAuction stores an auction record, replacing any auction with the same ID.
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	a, err := factory.ParseAuction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid auction record", err)
		return
	}

	ctx := r.Context()
	h.writeMu.Lock()
	prev, err := h.Store.GetAuction(ctx, a.ID)
	if err != nil && !generic.IsNotFound(err) {
		h.writeMu.Unlock()
		writeError(w, http.StatusInternalServerError, "Failed to get auction", err)
		return
	}
	err = h.Store.SaveAuction(ctx, a)
	h.writeMu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save auction", err)
		return
	}

	h.Logger.Info("auction saved", "auction", a.ID, "bidders", len(a.Bidders))
	if prev != nil && defaultsChanged(prev, &a) {
		now := h.now()
		h.Bus.PlanChanged.Publish(events.PlanChanged{
			AuctionID: a.ID,
			Plan:      payment.Resolve(&a, nil, &payment.Bidder{}, now),
			At:        now,
		})
		h.Logger.Info("plan defaults updated", "auction", a.ID)
	}
	h.publishPortfolio(ctx)
	writeJSON(w, http.StatusCreated, factory.ToRecord(a))
}

// GetAuction returns the full auction record.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAuction(r.Context(), auctionID(r))
	if err != nil {
		writeDomainError(w, "Failed to get auction", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToRecord(*a))
}

// DeleteAuction removes an auction. Its settlement history is kept.
func (h *Handler) DeleteAuction(w http.ResponseWriter, r *http.Request) {
	id := auctionID(r)

	h.writeMu.Lock()
	err := h.Store.DeleteAuction(r.Context(), id)
	h.writeMu.Unlock()
	if err != nil {
		writeDomainError(w, "Failed to delete auction", err)
		return
	}

	h.Logger.Info("auction deleted", "auction", id)
	h.publishPortfolio(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BIDDER HANDLERS
// =============================================================================

// GetBidderStatus returns the status record of one bidder.
func (h *Handler) GetBidderStatus(w http.ResponseWriter, r *http.Request) {
	now, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}

	a, b, err := h.loadBidder(r.Context(), r)
	if err != nil {
		writeDomainError(w, "Failed to get bidder", err)
		return
	}
	writeJSON(w, http.StatusOK, toBidderStatus(portfolio.Evaluate(a, b, now)))
}

// GetSchedule returns one row per payment unit.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	now, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}

	a, b, err := h.loadBidder(r.Context(), r)
	if err != nil {
		writeDomainError(w, "Failed to get bidder", err)
		return
	}

	record := portfolio.Evaluate(a, b, now)
	writeJSON(w, http.StatusOK, map[string]any{
		"bidder": toBidderStatus(record),
		"rows":   toScheduleRows(portfolio.Schedule(record)),
	})
}

// UpdatePlan replaces the bidder's plan override. Auction and lot defaults
// are edited through POST /api/auctions.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlanRequest
	if err := h.decode(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan", err)
		return
	}
	override, err := req.Override()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan date", err)
		return
	}

	ctx := r.Context()
	now := h.now()

	h.writeMu.Lock()
	a, b, err := h.loadBidder(ctx, r)
	if err != nil {
		h.writeMu.Unlock()
		writeDomainError(w, "Failed to get bidder", err)
		return
	}
	b.Plan = override
	err = h.Store.SaveAuction(ctx, *a)
	h.writeMu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}

	plan := payment.ResolveForBidder(a, b, now)
	h.Bus.PlanChanged.Publish(events.PlanChanged{
		AuctionID: a.ID,
		BidderID:  b.ID,
		Plan:      plan,
		At:        now,
	})
	h.Logger.Info("plan updated", "auction", a.ID, "bidder", b.ID, "modality", plan.Modality, "units", payment.UnitCount(plan))
	h.publishPortfolio(ctx)

	writeJSON(w, http.StatusOK, toBidderStatus(portfolio.Evaluate(a, b, now)))
}

// SettleUnit marks the next unsettled unit as paid.
func (h *Handler) SettleUnit(w http.ResponseWriter, r *http.Request) {
	h.toggleUnit(w, r, payment.ActionSettle)
}

// UnsettleUnit reverts the most recently settled unit.
func (h *Handler) UnsettleUnit(w http.ResponseWriter, r *http.Request) {
	h.toggleUnit(w, r, payment.ActionUnsettle)
}

// toggleUnit saves the new progress, then appends the settlement entry, so an
// Idempotency-Key is only recorded once the toggle is stored. Events are
// published after that, fire-and-forget: a failing subscriber or portfolio
// recompute is logged and never replayed. Notifications keep their own
// outbox in the store.
func (h *Handler) toggleUnit(w http.ResponseWriter, r *http.Request, action payment.SettlementAction) {
	ctx := r.Context()

	unit, err := strconv.Atoi(chi.URLParam(r, "unit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit", err)
		return
	}

	var req SettleRequest
	if err := h.decode(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	now := h.now()
	paidAt := now
	if req.PaidAt != "" {
		if paidAt, err = generic.ParseDate(req.PaidAt); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paidAt", err)
			return
		}
	}
	idemKey := r.Header.Get("Idempotency-Key")

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	a, b, err := h.loadBidder(ctx, r)
	if err != nil {
		writeDomainError(w, "Failed to get bidder", err)
		return
	}

	if idemKey != "" {
		replayed, err := h.seenKey(ctx, b.ID, idemKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read settlement log", err)
			return
		}
		if replayed {
			writeJSON(w, http.StatusOK, SettleResponse{
				Action:   action,
				Unit:     unit,
				Replayed: true,
				Bidder:   toBidderStatus(portfolio.Evaluate(a, b, now)),
			})
			return
		}
	}

	plan := payment.ResolveForBidder(a, b, now)
	var (
		next payment.Progress
		tr   payment.Transition
	)
	if action == payment.ActionSettle {
		next, tr, err = payment.Settle(plan, b.Progress, unit, paidAt)
	} else {
		next, tr, err = payment.Unsettle(plan, b.Progress, unit)
	}
	if err != nil {
		writeDomainError(w, fmt.Sprintf("Cannot %s unit", action), err)
		return
	}

	entry := payment.SettlementEntry{
		ID:             uuid.NewString(),
		AuctionID:      a.ID,
		BidderID:       b.ID,
		Unit:           unit,
		Action:         action,
		At:             now,
		Actor:          req.Actor,
		IdempotencyKey: idemKey,
	}
	prev := b.Progress
	b.Progress = next
	if err := h.Store.SaveAuction(ctx, *a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save progress", err)
		return
	}
	if err := h.Settlements.AppendSettlement(ctx, entry); err != nil {
		// The key must not be recorded for a toggle that did not stick.
		b.Progress = prev
		if rbErr := h.Store.SaveAuction(ctx, *a); rbErr != nil {
			h.Logger.Error("failed to restore progress", "auction", a.ID, "bidder", b.ID, "err", rbErr)
		}
		writeDomainError(w, "Failed to record settlement", err)
		return
	}
	h.Metrics.CountSettlement(action)
	h.Logger.Info("unit toggled", "action", action, "auction", a.ID, "bidder", b.ID, "unit", unit)

	kind, _ := payment.UnitKindOf(plan, unit)
	if action == payment.ActionSettle {
		h.Bus.UnitSettled.Publish(events.UnitSettled{
			AuctionID:  a.ID,
			BidderID:   b.ID,
			BidderName: b.Name,
			Email:      b.Email,
			Unit:       unit,
			Kind:       kind,
			At:         paidAt,
		})
		if tr.BecameFullySettled {
			h.Bus.BidderSettled.Publish(events.BidderSettled{
				AuctionID:  a.ID,
				BidderID:   b.ID,
				BidderName: b.Name,
				Email:      b.Email,
				At:         paidAt,
			})
		}
	} else {
		h.Bus.UnitUnsettled.Publish(events.UnitUnsettled{
			AuctionID: a.ID,
			BidderID:  b.ID,
			Unit:      unit,
			At:        now,
		})
	}
	h.publishPortfolio(ctx)

	writeJSON(w, http.StatusOK, SettleResponse{
		Action:             action,
		Unit:               unit,
		BecameFullySettled: tr.BecameFullySettled,
		Bidder:             toBidderStatus(portfolio.Evaluate(a, b, now)),
	})
}

// seenKey reports whether the bidder's settlement log already has key.
func (h *Handler) seenKey(ctx context.Context, bidderID generic.BidderID, key string) (bool, error) {
	entries, err := h.Settlements.Settlements(ctx, bidderID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IdempotencyKey == key {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// PORTFOLIO
// =============================================================================

// GetPortfolio returns every bidder's record in display order plus totals.
// Concurrent identical requests share one computation.
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	now, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}

	var opts portfolio.Options
	if v := r.URL.Query().Get("include_archived"); v != "" {
		if opts.IncludeArchived, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid include_archived", err)
			return
		}
	}

	rep, err := h.sharedReport(r.Context(), now, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute portfolio", err)
		return
	}
	writeJSON(w, http.StatusOK, toPortfolioDTO(rep))
}

func (h *Handler) sharedReport(ctx context.Context, now time.Time, opts portfolio.Options) (portfolio.Report, error) {
	key := fmt.Sprintf("%s|%t", now.Format(time.RFC3339), opts.IncludeArchived)
	ch := h.reports.DoChan(key, func() (any, error) {
		return h.report(context.WithoutCancel(ctx), now, opts)
	})
	select {
	case <-ctx.Done():
		return portfolio.Report{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return portfolio.Report{}, res.Err
		}
		return res.Val.(portfolio.Report), nil
	}
}

func (h *Handler) report(ctx context.Context, now time.Time, opts portfolio.Options) (portfolio.Report, error) {
	auctions, err := h.Store.ListAuctions(ctx)
	if err != nil {
		return portfolio.Report{}, err
	}
	return portfolio.Aggregate(portfolio.EntriesFromAuctions(auctions), now, opts), nil
}

// RecomputePortfolio evaluates the live portfolio, updates the gauges and
// publishes PortfolioChanged.
func (h *Handler) RecomputePortfolio(ctx context.Context) (portfolio.Report, error) {
	rep, err := h.report(ctx, h.now(), portfolio.Options{})
	if err != nil {
		return portfolio.Report{}, err
	}
	h.Metrics.ObservePortfolio(rep.Stats)
	h.Bus.PortfolioChanged.Publish(events.PortfolioChanged{AsOf: rep.AsOf, Stats: rep.Stats})
	return rep, nil
}

// publishPortfolio is RecomputePortfolio for handlers that already
// answered the client: failures are only logged.
func (h *Handler) publishPortfolio(ctx context.Context) {
	if _, err := h.RecomputePortfolio(ctx); err != nil {
		h.Logger.Error("recompute portfolio", "err", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// defaultsChanged reports whether next configures different auction or lot
// plans than prev. A removed lot counts as a change when it had a plan.
func defaultsChanged(prev, next *payment.Auction) bool {
	if !prev.Defaults.Equal(next.Defaults) {
		return true
	}
	plans := make(map[generic.LotID]payment.PlanOverride, len(prev.Lots))
	for _, l := range prev.Lots {
		plans[l.ID] = l.Plan
	}
	for _, l := range next.Lots {
		if !plans[l.ID].Equal(l.Plan) {
			return true
		}
		delete(plans, l.ID)
	}
	for _, p := range plans {
		if !p.IsZero() {
			return true
		}
	}
	return false
}

func auctionID(r *http.Request) generic.AuctionID {
	return generic.AuctionID(chi.URLParam(r, "id"))
}

// loadBidder returns the auction and a pointer to the bidder inside it.
func (h *Handler) loadBidder(ctx context.Context, r *http.Request) (*payment.Auction, *payment.Bidder, error) {
	a, err := h.Store.GetAuction(ctx, auctionID(r))
	if err != nil {
		return nil, nil, err
	}
	bidderID := generic.BidderID(chi.URLParam(r, "bidderID"))
	b, ok := a.Bidder(bidderID)
	if !ok {
		return nil, nil, fmt.Errorf("bidder %s in auction %s: %w", bidderID, a.ID, generic.ErrBidderNotFound)
	}
	return a, b, nil
}

// asOf returns the as_of query parameter as UTC midnight, or now.
func (h *Handler) asOf(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return h.now(), nil
	}
	return generic.ParseDate(v)
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted when optional is set.
func (h *Handler) decode(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			return err
		}
	}
	return h.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the generic error categories to status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case generic.IsNotFound(err):
		status = http.StatusNotFound
	case generic.IsConflict(err):
		status = http.StatusConflict
	case generic.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}
