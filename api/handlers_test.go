/*
handlers_test.go - Tests for the HTTP handlers

Tests for:
- Auction CRUD through the record format
- Bidder status and schedule with an explicit clock and as_of
- Settle/unsettle ordering, idempotency and events
- Plan edits, portfolio totals, scenarios and metrics
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/arrears-engine/events"
	"github.com/warp/arrears-engine/payment"
	"github.com/warp/arrears-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

const auctionRecord = `{
	"id": "a1",
	"nome": "Leilão Teste",
	"arrematantes": [
		{
			"id": "b1", "nome": "Ana",
			"valorPagarNumerico": 1000, "percentualJurosAtraso": 10,
			"tipoPagamento": "a_vista", "dataVencimentoVista": "2024-01-10"
		},
		{
			"id": "b2", "nome": "Bruno",
			"valorPagarNumerico": 1200,
			"tipoPagamento": "parcelamento", "quantidadeParcelas": 3,
			"mesInicioPagamento": "2024-03", "diaVencimentoMensal": 10
		}
	]
}`

type testServer struct {
	handler *Handler
	store   *sqlite.Store
	router  http.Handler
	bus     *events.Bus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus()
	h := NewHandler(store, store, bus, log.New(io.Discard))
	h.Now = func() time.Time { return testNow }
	h.Metrics = NewMetrics()

	return &testServer{
		handler: h,
		store:   store,
		router:  NewRouter(h, nil, h.Metrics, []string{"*"}),
		bus:     bus,
	}
}

// withAuction creates the standard two-bidder auction.
func withAuction(t *testing.T) *testServer {
	t.Helper()
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/auctions", auctionRecord, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v), rec.Body.String())
	return v
}

func settlePath(bidder, unit string) string {
	return "/api/auctions/a1/bidders/" + bidder + "/units/" + unit + "/settle"
}

// =============================================================================
// AUCTION TESTS
// =============================================================================

func TestCreateAndGetAuction(t *testing.T) {
	s := withAuction(t)

	list := decodeBody[[]AuctionSummaryDTO](t, s.do(t, http.MethodGet, "/api/auctions", "", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].ID)
	assert.Equal(t, 2, list[0].Bidders)

	rec := s.do(t, http.MethodGet, "/api/auctions/a1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Leilão Teste", body["nome"])
	assert.Len(t, body["arrematantes"], 2)
}

func TestCreateAuction_RejectsInvalidRecord(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/auctions", `{"nome":"sem id"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/auctions", `{not json`, nil).Code)
}

func TestDeleteAuction(t *testing.T) {
	s := withAuction(t)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/auctions/a1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/auctions/a1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/auctions/a1", "", nil).Code)
}

// =============================================================================
// BIDDER STATUS TESTS
// =============================================================================

func TestGetBidderStatus_OverdueWithInterest(t *testing.T) {
	// GIVEN: 1000 due 2024-01-10 at 10% per month
	// WHEN:  Evaluated on 2024-03-15 (65 days, 2 whole months late)
	// THEN:  1000 * 1.1 * 1.1 is due now

	s := withAuction(t)

	rec := s.do(t, http.MethodGet, "/api/auctions/a1/bidders/b1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[BidderStatusDTO](t, rec)

	assert.Equal(t, payment.StatusOverdue, got.Status)
	assert.Equal(t, 65, got.DaysOverdue)
	assert.Equal(t, 2, got.MonthsOverdue)
	require.NotNil(t, got.AmountDueNow)
	assert.Equal(t, "1210.00", *got.AmountDueNow)
	assert.Equal(t, "1210.00", got.Overdue)
	require.Len(t, got.OverdueUnits, 1)
	assert.Equal(t, "2024-01-10", got.OverdueUnits[0].DueDate)
	assert.Equal(t, payment.ModalityCash, got.Plan.Modality)
}

func TestGetBidderStatus_AsOf(t *testing.T) {
	s := withAuction(t)

	got := decodeBody[BidderStatusDTO](t, s.do(t, http.MethodGet, "/api/auctions/a1/bidders/b1?as_of=2024-01-10", "", nil))

	assert.Equal(t, payment.StatusPending, got.Status)
	assert.Equal(t, 0, got.DaysOverdue)
	require.NotNil(t, got.AmountDueNow)
	assert.Equal(t, "1000.00", *got.AmountDueNow)
	require.NotNil(t, got.NextDueDate)
	assert.Equal(t, "2024-01-10", *got.NextDueDate)
}

func TestGetBidderStatus_Errors(t *testing.T) {
	s := withAuction(t)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/auctions/a1/bidders/nobody", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/auctions/zz/bidders/b1", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/auctions/a1/bidders/b1?as_of=yesterday", "", nil).Code)
}

func TestGetSchedule(t *testing.T) {
	s := withAuction(t)

	rec := s.do(t, http.MethodGet, "/api/auctions/a1/bidders/b2/schedule", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Rows []ScheduleRowDTO `json:"rows"`
	}](t, rec)

	require.Len(t, body.Rows, 3)
	assert.Equal(t, payment.UnitOverdue, body.Rows[0].State)
	assert.Equal(t, "2024-03-10", *body.Rows[0].DueDate)
	assert.Equal(t, "400.00", *body.Rows[0].Owed)
	assert.Equal(t, payment.UnitPending, body.Rows[1].State)
	assert.Equal(t, "2024-04-10", *body.Rows[1].DueDate)
}

// =============================================================================
// SETTLE / UNSETTLE TESTS
// =============================================================================

func TestSettle_OutOfOrderIsConflict(t *testing.T) {
	s := withAuction(t)

	rec := s.do(t, http.MethodPost, settlePath("b2", "1"), "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "only unit 0")
}

func TestSettle_BadUnit(t *testing.T) {
	s := withAuction(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, settlePath("b2", "x"), "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, settlePath("b2", "9"), "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, settlePath("b2", "0"), `{"paidAt":"ontem"}`, nil).Code)
}

func TestSettle_InOrderPublishesEvents(t *testing.T) {
	// GIVEN: A three-installment bidder and subscribers on the bus
	// WHEN:  Units 0, 1 and 2 are settled in order
	// THEN:  One UnitSettled per unit, one BidderSettled at the end

	s := withAuction(t)

	var (
		mu      sync.Mutex
		units   []int
		settled []events.BidderSettled
	)
	s.bus.UnitSettled.Subscribe(func(e events.UnitSettled) {
		mu.Lock()
		defer mu.Unlock()
		units = append(units, e.Unit)
	})
	s.bus.BidderSettled.Subscribe(func(e events.BidderSettled) {
		mu.Lock()
		defer mu.Unlock()
		settled = append(settled, e)
	})

	var last SettleResponse
	for _, unit := range []string{"0", "1", "2"} {
		rec := s.do(t, http.MethodPost, settlePath("b2", unit), `{"actor":"operador"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		last = decodeBody[SettleResponse](t, rec)
	}

	assert.True(t, last.BecameFullySettled)
	assert.Equal(t, payment.StatusSettled, last.Bidder.Status)
	assert.Equal(t, 3, last.Bidder.UnitsSettled)
	assert.Equal(t, []int{0, 1, 2}, units)
	require.Len(t, settled, 1)
	assert.Equal(t, "Bruno", settled[0].BidderName)

	entries, err := s.store.Settlements(context.Background(), "b2")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "operador", entries[0].Actor)
}

func TestSettle_LatePaymentAddsInterest(t *testing.T) {
	// GIVEN: The cash bidder, 2 months late at 10%
	// WHEN:  Settled with the payment instant of today
	// THEN:  Received includes the interest paid

	s := withAuction(t)

	rec := s.do(t, http.MethodPost, settlePath("b1", "0"), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[SettleResponse](t, rec)

	assert.Equal(t, payment.StatusSettled, got.Bidder.Status)
	assert.Equal(t, "1210.00", got.Bidder.Received)
	assert.Equal(t, "0.00", got.Bidder.Overdue)
}

func TestSettle_IdempotencyKeyReplays(t *testing.T) {
	s := withAuction(t)
	header := map[string]string{"Idempotency-Key": "k-1"}

	first := s.do(t, http.MethodPost, settlePath("b2", "0"), "", header)
	require.Equal(t, http.StatusOK, first.Code)
	second := s.do(t, http.MethodPost, settlePath("b2", "0"), "", header)
	require.Equal(t, http.StatusOK, second.Code)

	got := decodeBody[SettleResponse](t, second)
	assert.True(t, got.Replayed)
	assert.Equal(t, 1, got.Bidder.UnitsSettled)

	entries, err := s.store.Settlements(context.Background(), "b2")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// flakyStore fails SaveAuction while failSave is set.
type flakyStore struct {
	payment.Store
	failSave *bool
}

func (f flakyStore) SaveAuction(ctx context.Context, a payment.Auction) error {
	if *f.failSave {
		return errors.New("disk full")
	}
	return f.Store.SaveAuction(ctx, a)
}

// flakyLog fails AppendSettlement while failAppend is set.
type flakyLog struct {
	payment.SettlementLog
	failAppend *bool
}

func (f flakyLog) AppendSettlement(ctx context.Context, e payment.SettlementEntry) error {
	if *f.failAppend {
		return errors.New("log unavailable")
	}
	return f.SettlementLog.AppendSettlement(ctx, e)
}

func TestSettle_FailedSaveDoesNotRecordKey(t *testing.T) {
	// GIVEN: A store whose next save fails
	// WHEN:  A keyed settle fails, then is retried with the same key
	// THEN:  The retry settles the unit instead of replaying

	s := withAuction(t)
	failSave := true
	h := NewHandler(flakyStore{Store: s.store, failSave: &failSave}, s.store, s.bus, log.New(io.Discard))
	h.Now = s.handler.Now
	s.router = NewRouter(h, nil, nil, []string{"*"})
	header := map[string]string{"Idempotency-Key": "k-retry"}

	rec := s.do(t, http.MethodPost, settlePath("b2", "0"), "", header)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	entries, err := s.store.Settlements(context.Background(), "b2")
	require.NoError(t, err)
	assert.Empty(t, entries)

	failSave = false
	rec = s.do(t, http.MethodPost, settlePath("b2", "0"), "", header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[SettleResponse](t, rec)
	assert.False(t, got.Replayed)
	assert.Equal(t, 1, got.Bidder.UnitsSettled)
}

func TestSettle_FailedAppendRestoresProgress(t *testing.T) {
	s := withAuction(t)
	failAppend := true
	h := NewHandler(s.store, flakyLog{SettlementLog: s.store, failAppend: &failAppend}, s.bus, log.New(io.Discard))
	h.Now = s.handler.Now
	s.router = NewRouter(h, nil, nil, []string{"*"})

	var settled int
	s.bus.UnitSettled.Subscribe(func(events.UnitSettled) { settled++ })

	rec := s.do(t, http.MethodPost, settlePath("b2", "0"), "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, settled)

	got := decodeBody[BidderStatusDTO](t, s.do(t, http.MethodGet, "/api/auctions/a1/bidders/b2", "", nil))
	assert.Equal(t, 0, got.UnitsSettled)
}

func TestUnsettle(t *testing.T) {
	s := withAuction(t)

	var reverted []int
	s.bus.UnitUnsettled.Subscribe(func(e events.UnitUnsettled) { reverted = append(reverted, e.Unit) })

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, settlePath("b2", "0"), "", nil).Code)

	rec := s.do(t, http.MethodDelete, settlePath("b2", "0"), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[SettleResponse](t, rec)
	assert.Equal(t, 0, got.Bidder.UnitsSettled)
	assert.Equal(t, payment.StatusOverdue, got.Bidder.Status)
	assert.Equal(t, []int{0}, reverted)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodDelete, settlePath("b2", "0"), "", nil).Code)

	entries, err := s.store.Settlements(context.Background(), "b2")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, payment.ActionUnsettle, entries[1].Action)
}

// =============================================================================
// PLAN TESTS
// =============================================================================

func TestUpdatePlan(t *testing.T) {
	s := withAuction(t)

	var changed []events.PlanChanged
	s.bus.PlanChanged.Subscribe(func(e events.PlanChanged) { changed = append(changed, e) })

	rec := s.do(t, http.MethodPut, "/api/auctions/a1/bidders/b2/plan",
		`{"tipoPagamento":"a_vista","dataVencimentoVista":"2024-04-01"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[BidderStatusDTO](t, rec)

	assert.Equal(t, payment.StatusPending, got.Status)
	assert.Equal(t, payment.ModalityCash, got.Plan.Modality)
	assert.Equal(t, payment.LayerBidder, got.Plan.Source)
	assert.Equal(t, 1, got.Plan.Units)
	require.NotNil(t, got.AmountDueNow)
	assert.Equal(t, "1200.00", *got.AmountDueNow)

	require.Len(t, changed, 1)
	assert.Equal(t, payment.ModalityCash, changed[0].Plan.Modality)

	// Persisted
	again := decodeBody[BidderStatusDTO](t, s.do(t, http.MethodGet, "/api/auctions/a1/bidders/b2", "", nil))
	assert.Equal(t, payment.ModalityCash, again.Plan.Modality)
}

func TestCreateAuction_DefaultsChangePublishesPlanChanged(t *testing.T) {
	// GIVEN: An existing auction without defaults
	// WHEN:  It is replaced once unchanged, then with a cash default
	// THEN:  Only the second replace publishes an auction-level PlanChanged

	s := withAuction(t)

	var changed []events.PlanChanged
	s.bus.PlanChanged.Subscribe(func(e events.PlanChanged) { changed = append(changed, e) })

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/auctions", auctionRecord, nil).Code)
	assert.Empty(t, changed)

	withDefaults := strings.Replace(auctionRecord, `"nome": "Leilão Teste",`,
		`"nome": "Leilão Teste", "tipoPagamento": "a_vista", "dataVencimentoVista": "2024-05-01",`, 1)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/auctions", withDefaults, nil).Code)

	require.Len(t, changed, 1)
	assert.Equal(t, "a1", string(changed[0].AuctionID))
	assert.Empty(t, changed[0].BidderID)
	assert.Equal(t, payment.ModalityCash, changed[0].Plan.Modality)
	assert.Equal(t, testNow, changed[0].At)
}

func TestCreateAuction_NewAuctionDoesNotPublishPlanChanged(t *testing.T) {
	s := newTestServer(t)

	var changed int
	s.bus.PlanChanged.Subscribe(func(events.PlanChanged) { changed++ })

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/auctions", auctionRecord, nil).Code)
	assert.Zero(t, changed)
}

func TestDefaultsChanged(t *testing.T) {
	due := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	cash := payment.PlanOverride{Modality: payment.ModalityCash, CashDueDate: &due}
	prev := &payment.Auction{Lots: []payment.Lot{{ID: "l1", Plan: cash}, {ID: "l2"}}}

	same := &payment.Auction{Lots: []payment.Lot{{ID: "l2"}, {ID: "l1", Plan: cash}}}
	assert.False(t, defaultsChanged(prev, same))

	dropped := &payment.Auction{Lots: []payment.Lot{{ID: "l1", Plan: cash}}}
	assert.False(t, defaultsChanged(prev, dropped), "removed lot had no plan")

	planless := &payment.Auction{Lots: []payment.Lot{{ID: "l2"}}}
	assert.True(t, defaultsChanged(prev, planless))

	edited := &payment.Auction{Defaults: cash, Lots: prev.Lots}
	assert.True(t, defaultsChanged(prev, edited))
}

func TestUpdatePlan_Validation(t *testing.T) {
	s := withAuction(t)
	path := "/api/auctions/a1/bidders/b2/plan"

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, path, `{"diaVencimentoMensal":40}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, path, `{"tipoPagamento":"boleto"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, path, `{"dataEntrada":"31/02"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, path, "", nil).Code)
}

// =============================================================================
// PORTFOLIO TESTS
// =============================================================================

func TestGetPortfolio(t *testing.T) {
	s := withAuction(t)

	rec := s.do(t, http.MethodGet, "/api/portfolio", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[PortfolioDTO](t, rec)

	assert.Equal(t, 2, got.Stats.Bidders)
	assert.Equal(t, 2, got.Stats.Overdue)
	assert.Equal(t, "2200.00", got.Stats.TotalContracted)
	assert.Equal(t, "1610.00", got.Stats.OverdueAmount)
	assert.Equal(t, "800.00", got.Stats.PendingAmount)
	assert.Equal(t, "100.00", got.Stats.DelinquencyRate)
	require.Len(t, got.Bidders, 2)
	// Earliest due date first among overdue bidders.
	assert.Equal(t, "b1", got.Bidders[0].BidderID)
}

func TestGetPortfolio_InvalidParams(t *testing.T) {
	s := withAuction(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/portfolio?include_archived=maybe", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/portfolio?as_of=2024-13-01", "", nil).Code)
}

func TestWritesPublishPortfolioChanged(t *testing.T) {
	s := newTestServer(t)

	var got []events.PortfolioChanged
	s.bus.PortfolioChanged.Subscribe(func(e events.PortfolioChanged) { got = append(got, e) })

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/auctions", auctionRecord, nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, settlePath("b1", "0"), "", nil).Code)

	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Stats.Overdue)
	assert.Equal(t, 1, got[1].Stats.Overdue)
	assert.Equal(t, testNow, got[1].AsOf)
}

// =============================================================================
// SCENARIO AND METRICS TESTS
// =============================================================================

func TestScenarios(t *testing.T) {
	s := withAuction(t)

	list := decodeBody[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", "", nil))
	assert.Len(t, list, len(scenarios))

	for _, sc := range scenarios {
		rec := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"`+sc.ID+`"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, sc.ID+": "+rec.Body.String())
	}

	// The last scenario replaced everything loaded before it.
	auctions := decodeBody[[]AuctionSummaryDTO](t, s.do(t, http.MethodGet, "/api/auctions", "", nil))
	assert.Len(t, auctions, 2)

	live := decodeBody[PortfolioDTO](t, s.do(t, http.MethodGet, "/api/portfolio", "", nil))
	all := decodeBody[PortfolioDTO](t, s.do(t, http.MethodGet, "/api/portfolio?include_archived=true", "", nil))
	assert.Equal(t, live.Stats.Bidders+1, all.Stats.Bidders)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"nope"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/scenarios/load", `{}`, nil).Code)
}

func TestLegacyScenarioParsesCurrency(t *testing.T) {
	auctions, err := legacyRecord(testNow)
	require.NoError(t, err)
	require.Len(t, auctions, 1)
	require.Len(t, auctions[0].Bidders, 1)

	b := auctions[0].Bidders[0]
	assert.Equal(t, "12000.00", money(b.Total()))
	assert.Equal(t, 1, b.Progress.UnitsSettled)
	assert.NotEmpty(t, b.ID)
}

func TestMetricsEndpoint(t *testing.T) {
	s := withAuction(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, settlePath("b2", "0"), "", nil).Code)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, `arrears_http_requests_total{code="201",route="/api/auctions"} 1`)
	assert.Contains(t, body, `arrears_settlements_total{action="settle"} 1`)
	assert.Contains(t, body, `arrears_portfolio_bidders{status="atrasado"} 1`)
}
