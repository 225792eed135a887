/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract. Money is rendered as a
  string with two decimals so clients never round binary floats.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Auctions:
    AuctionSummaryDTO (full auctions use factory.AuctionRecord)

  Bidder status:
    BidderStatusDTO, PlanDTO, OverdueUnitDTO, ScheduleRowDTO

  Progress:
    UpdatePlanRequest, SettleRequest, SettleResponse

  Portfolio:
    PortfolioDTO, StatsDTO, PortfolioUpdateDTO, PlanUpdateDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry validator/v10 struct tags, checked by the handler
  before anything is decoded further.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/auction.go: AuctionRecord and PlanRecord
*/
package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/arrears-engine/factory"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
	"github.com/warp/arrears-engine/portfolio"
)

// =============================================================================
// AUCTIONS
// =============================================================================

// AuctionSummaryDTO is one row of the auction list.
type AuctionSummaryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate,omitempty"`
	Archived  bool   `json:"archived"`
	Lots      int    `json:"lots"`
	Bidders   int    `json:"bidders"`
}

func toAuctionSummary(a payment.Auction) AuctionSummaryDTO {
	dto := AuctionSummaryDTO{
		ID:       string(a.ID),
		Name:     a.Name,
		Archived: a.Archived,
		Lots:     len(a.Lots),
		Bidders:  len(a.Bidders),
	}
	if a.StartDate != nil {
		dto.StartDate = generic.FormatDate(*a.StartDate)
	}
	return dto
}

// =============================================================================
// BIDDER STATUS
// =============================================================================

// PlanDTO is a resolved plan.
type PlanDTO struct {
	Modality           payment.Modality `json:"modality"`
	Source             payment.Layer    `json:"source"`
	CashDueDate        *string          `json:"cashDueDate,omitempty"`
	StartMonth         string           `json:"startMonth,omitempty"`
	DueDay             int              `json:"dueDay"`
	Installments       int              `json:"installments"`
	DownPaymentDueDate *string          `json:"downPaymentDueDate,omitempty"`
	DownPaymentAmount  *string          `json:"downPaymentAmount,omitempty"`
	Units              int              `json:"units"`
}

// OverdueUnitDTO is one overdue unit, most urgent first.
type OverdueUnitDTO struct {
	Unit          int              `json:"unit"`
	Kind          payment.UnitKind `json:"kind"`
	DueDate       string           `json:"dueDate"`
	DaysOverdue   int              `json:"daysOverdue"`
	MonthsOverdue int              `json:"monthsOverdue"`
	Amount        *string          `json:"amount"`
	WithInterest  *string          `json:"withInterest"`
}

// BidderStatusDTO is the status record of one bidder.
type BidderStatusDTO struct {
	AuctionID   string `json:"auctionId"`
	AuctionName string `json:"auctionName"`
	Archived    bool   `json:"archived,omitempty"`
	BidderID    string `json:"bidderId"`
	BidderName  string `json:"bidderName"`
	LotID       string `json:"lotId,omitempty"`

	Status payment.Status `json:"status"`
	Plan   PlanDTO        `json:"plan"`

	UnitsSettled  int     `json:"unitsSettled"`
	NextDueUnit   *int    `json:"nextDueUnit"`
	NextDueDate   *string `json:"nextDueDate"`
	DaysOverdue   int     `json:"daysOverdue"`
	MonthsOverdue int     `json:"monthsOverdue"`

	InterestPct  string  `json:"interestPct"`
	Total        string  `json:"total"`
	AmountDueNow *string `json:"amountDueNow"`
	Received     string  `json:"received"`
	Pending      string  `json:"pending"`
	Overdue      string  `json:"overdue"`

	OverdueUnits []OverdueUnitDTO `json:"overdueUnits"`
}

// ScheduleRowDTO is one unit of the amortization schedule.
type ScheduleRowDTO struct {
	Unit        int               `json:"unit"`
	Kind        payment.UnitKind  `json:"kind"`
	Installment int               `json:"installment,omitempty"`
	State       payment.UnitState `json:"state"`
	DueDate     *string           `json:"dueDate"`
	PaidAt      *string           `json:"paidAt,omitempty"`
	Amount      *string           `json:"amount"`
	Interest    *string           `json:"interest"`
	Owed        *string           `json:"owed"`
	DaysOverdue int               `json:"daysOverdue,omitempty"`
}

func toPlanDTO(p payment.Plan) PlanDTO {
	dto := PlanDTO{
		Modality:           p.Modality,
		Source:             p.Source,
		CashDueDate:        datePtr(p.CashDueDate),
		DueDay:             p.DueDay,
		Installments:       p.Installments,
		DownPaymentDueDate: datePtr(p.DownPaymentDueDate),
		Units:              payment.UnitCount(p),
	}
	if p.StartMonth != 0 {
		dto.StartMonth = generic.FormatYearMonth(p.StartYear, p.StartMonth)
	}
	if p.DownPaymentAmount != nil {
		s := money(*p.DownPaymentAmount)
		dto.DownPaymentAmount = &s
	}
	return dto
}

func toBidderStatus(r portfolio.Record) BidderStatusDTO {
	c := r.Classification
	dto := BidderStatusDTO{
		AuctionID:     string(r.AuctionID),
		AuctionName:   r.AuctionName,
		Archived:      r.Archived,
		BidderID:      string(r.BidderID),
		BidderName:    r.BidderName,
		LotID:         string(r.LotID),
		Status:        r.Status,
		Plan:          toPlanDTO(r.Plan),
		UnitsSettled:  c.Settled,
		NextDueDate:   datePtr(r.NextDueDate),
		DaysOverdue:   r.DaysOverdue,
		MonthsOverdue: r.MonthsOverdue,
		InterestPct:   r.InterestPct.String(),
		Total:         money(r.Total),
		AmountDueNow:  knownMoney(r.AmountDueNow, r.AmountDueNowKnown),
		Received:      money(r.Received),
		Pending:       money(r.Pending),
		Overdue:       money(r.Overdue),
		OverdueUnits:  make([]OverdueUnitDTO, 0, len(r.OverdueUnits)),
	}
	if c.NextDue >= 0 {
		next := c.NextDue
		dto.NextDueUnit = &next
	}
	for _, ou := range r.OverdueUnits {
		dto.OverdueUnits = append(dto.OverdueUnits, OverdueUnitDTO{
			Unit:          ou.Index,
			Kind:          ou.Kind,
			DueDate:       generic.FormatDate(ou.DueDate),
			DaysOverdue:   ou.DaysOverdue,
			MonthsOverdue: ou.MonthsOverdue,
			Amount:        knownMoney(ou.Base, ou.AmountKnown),
			WithInterest:  knownMoney(ou.WithInterest, ou.AmountKnown),
		})
	}
	return dto
}

func toScheduleRows(rows []portfolio.Row) []ScheduleRowDTO {
	out := make([]ScheduleRowDTO, 0, len(rows))
	for _, row := range rows {
		dto := ScheduleRowDTO{
			Unit:        row.Index,
			Kind:        row.Kind,
			Installment: row.Installment,
			State:       row.State,
			DueDate:     datePtr(row.DueDate),
			Amount:      knownMoney(row.Amount, row.Known),
			Interest:    knownMoney(row.Interest, row.Known),
			Owed:        knownMoney(row.Owed, row.Known),
			DaysOverdue: row.DaysOverdue,
		}
		if row.PaidAt != nil {
			s := row.PaidAt.UTC().Format(time.RFC3339)
			dto.PaidAt = &s
		}
		out = append(out, dto)
	}
	return out
}

// =============================================================================
// PROGRESS REQUESTS
// =============================================================================

// UpdatePlanRequest replaces a bidder's plan override. Fields use the record
// names so a client can send back what GET /api/auctions/{id} returned.
type UpdatePlanRequest struct {
	PaymentType       string          `json:"tipoPagamento" validate:"omitempty,oneof=a_vista parcelamento entrada_parcelamento cash installments down_payment"`
	CashDueDate       string          `json:"dataVencimentoVista" validate:"omitempty,max=40"`
	StartMonth        string          `json:"mesInicioPagamento" validate:"omitempty,max=10"`
	DueDay            int             `json:"diaVencimentoMensal" validate:"omitempty,min=1,max=31"`
	Installments      int             `json:"quantidadeParcelas" validate:"omitempty,min=1,max=600"`
	DownPaymentDate   string          `json:"dataEntrada" validate:"omitempty,max=40"`
	DownPaymentAmount *factory.Amount `json:"valorEntrada" validate:"-"`
}

// Override converts the request into a plan override. Dates must parse;
// anything else an operator typed is kept and resolved leniently.
func (req UpdatePlanRequest) Override() (payment.PlanOverride, error) {
	for _, s := range []string{req.CashDueDate, req.DownPaymentDate} {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if _, err := generic.ParseDate(s); err != nil {
			return payment.PlanOverride{}, err
		}
	}
	rec := factory.PlanRecord{
		PaymentType:       req.PaymentType,
		CashDueDate:       req.CashDueDate,
		StartMonth:        req.StartMonth,
		DueDay:            factory.Count(req.DueDay),
		Installments:      factory.Count(req.Installments),
		DownPaymentDate:   req.DownPaymentDate,
		DownPaymentAmount: req.DownPaymentAmount,
	}
	return rec.Override(), nil
}

// SettleRequest is the optional body of a settle or unsettle call.
type SettleRequest struct {
	// PaidAt defaults to now. "YYYY-MM-DD" or RFC3339.
	PaidAt string `json:"paidAt" validate:"omitempty,max=40"`
	Actor  string `json:"actor" validate:"omitempty,max=120"`
}

// SettleResponse is returned by settle and unsettle.
type SettleResponse struct {
	Action             payment.SettlementAction `json:"action"`
	Unit               int                      `json:"unit"`
	BecameFullySettled bool                     `json:"becameFullySettled,omitempty"`
	Replayed           bool                     `json:"replayed,omitempty"`
	Bidder             BidderStatusDTO          `json:"bidder"`
}

// =============================================================================
// PORTFOLIO
// =============================================================================

// StatsDTO are portfolio totals.
type StatsDTO struct {
	Bidders         int    `json:"bidders"`
	Settled         int    `json:"settled"`
	Pending         int    `json:"pending"`
	Overdue         int    `json:"overdue"`
	OverdueUnits    int    `json:"overdueUnits"`
	TotalContracted string `json:"totalContracted"`
	Received        string `json:"received"`
	PendingAmount   string `json:"pendingAmount"`
	OverdueAmount   string `json:"overdueAmount"`
	AverageTicket   string `json:"averageTicket"`
	AverageOverdue  string `json:"averageOverdue"`
	DelinquencyRate string `json:"delinquencyRate"`
}

// PortfolioDTO is the full portfolio report.
type PortfolioDTO struct {
	AsOf    string            `json:"asOf"`
	Stats   StatsDTO          `json:"stats"`
	Bidders []BidderStatusDTO `json:"bidders"`
}

// PortfolioUpdateDTO is pushed to websocket clients.
type PortfolioUpdateDTO struct {
	Type  string   `json:"type"`
	AsOf  string   `json:"asOf"`
	Stats StatsDTO `json:"stats"`
}

// PlanUpdateDTO is pushed to websocket clients when a plan was edited.
// BidderID is empty for auction and lot defaults.
type PlanUpdateDTO struct {
	Type      string  `json:"type"`
	AuctionID string  `json:"auctionId"`
	BidderID  string  `json:"bidderId,omitempty"`
	At        string  `json:"at"`
	Plan      PlanDTO `json:"plan"`
}

func toStatsDTO(s portfolio.Stats) StatsDTO {
	return StatsDTO{
		Bidders:         s.Bidders,
		Settled:         s.Settled,
		Pending:         s.Pending,
		Overdue:         s.Overdue,
		OverdueUnits:    s.OverdueUnits,
		TotalContracted: money(s.TotalContracted),
		Received:        money(s.Received),
		PendingAmount:   money(s.PendingAmount),
		OverdueAmount:   money(s.OverdueAmount),
		AverageTicket:   money(s.AverageTicket),
		AverageOverdue:  money(s.AverageOverdue),
		DelinquencyRate: money(s.DelinquencyRate),
	}
}

func toPortfolioDTO(rep portfolio.Report) PortfolioDTO {
	dto := PortfolioDTO{
		AsOf:    rep.AsOf.UTC().Format(time.RFC3339),
		Stats:   toStatsDTO(rep.Stats),
		Bidders: make([]BidderStatusDTO, 0, len(rep.Records)),
	}
	for _, r := range rep.Records {
		dto.Bidders = append(dto.Bidders, toBidderStatus(r))
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// FORMATTING
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(generic.CentPlaces) }

func knownMoney(d decimal.Decimal, known bool) *string {
	if !known {
		return nil
	}
	s := money(d)
	return &s
}

func datePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := generic.FormatDate(*t)
	return &s
}
