/*
Package factory converts external auction records into the payment domain.

PURPOSE:
  Auction records arrive as JSON documents written by the dashboard. Their
  field names, optional fields and loose typing (amounts as numbers or as
  "R$ 1.234,56" strings) are an interface concern. This package is the one
  place that knows the record shape; everything past it works on
  payment.Auction.

JSON SCHEMA:
  {
    "id": "leilao-2024-01",
    "nome": "Leilão Fazenda Boa Vista",
    "dataInicio": "2024-01-05",
    "tipoPagamento": "parcelamento",
    "mesInicioPagamento": "2024-02",
    "diaVencimentoMensal": 10,
    "quantidadeParcelas": 12,
    "lotes": [{"id": "l1", "numero": "1", "tipoPagamento": "a_vista",
               "dataVencimentoVista": "2024-01-20"}],
    "arrematantes": [{"id": "b1", "nome": "Ana", "loteId": "l1",
                      "valorPagar": "R$ 12.500,00", "parcelasPagas": 0,
                      "percentualJurosAtraso": 2}]
  }

LEGACY SHAPE:
  Older records carry a single "arrematante" object instead of the
  "arrematantes" list. Both are accepted on input; when both are present
  the list wins and the single bidder is appended only if its ID is not
  already listed. Output always uses the list.

LENIENCY:
  Malformed dates, unknown payment types and unparseable amounts degrade
  to "not configured" (or zero), never to an error. Only undecodable JSON
  and a missing auction ID are rejected.

SEE ALSO:
  - payment/types.go: The domain model produced here
  - generic/types.go: ParseCurrency
  - store/sqlite/sqlite.go: Stores records in this shape
*/
package factory

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
)

// =============================================================================
// RECORD SCHEMA TYPES
// =============================================================================

// PlanRecord holds the plan fields shared by auctions, lots and bidders.
type PlanRecord struct {
	PaymentType       string  `json:"tipoPagamento,omitempty"` // a_vista, parcelamento, entrada_parcelamento
	CashDueDate       string  `json:"dataVencimentoVista,omitempty"`
	StartMonth        string  `json:"mesInicioPagamento,omitempty"`
	DueDay            Count   `json:"diaVencimentoMensal,omitempty"`
	Installments      Count   `json:"quantidadeParcelas,omitempty"`
	DownPaymentDate   string  `json:"dataEntrada,omitempty"`
	DownPaymentAmount *Amount `json:"valorEntrada,omitempty"`
}

// AuctionRecord is the stored and exchanged form of an auction.
type AuctionRecord struct {
	ID        string `json:"id"`
	Name      string `json:"nome"`
	StartDate string `json:"dataInicio,omitempty"`
	Archived  bool   `json:"arquivado,omitempty"`
	PlanRecord

	Lots    []LotRecord    `json:"lotes,omitempty"`
	Bidders []BidderRecord `json:"arrematantes,omitempty"`

	// LegacyBidder is read but never written.
	LegacyBidder *BidderRecord `json:"arrematante,omitempty"`
}

type LotRecord struct {
	ID          string `json:"id"`
	Number      string `json:"numero,omitempty"`
	Description string `json:"descricao,omitempty"`
	PlanRecord
}

type BidderRecord struct {
	ID       string `json:"id"`
	Name     string `json:"nome"`
	Document string `json:"documento,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"telefone,omitempty"`
	LotID    string `json:"loteId,omitempty"`

	AmountText    string  `json:"valorPagar,omitempty"`
	AmountNumeric *Amount `json:"valorPagarNumerico,omitempty"`

	UseMultiplier bool    `json:"usaFatorMultiplicador,omitempty"`
	BidValue      *Amount `json:"valorLance,omitempty"`
	Factor        *Amount `json:"fatorMultiplicador,omitempty"`

	LateInterestPct *Amount `json:"percentualJurosAtraso,omitempty"`

	UnitsSettled Count          `json:"parcelasPagas,omitempty"`
	FullySettled bool           `json:"pago,omitempty"`
	PaymentDates map[int]string `json:"datasPagamento,omitempty"`

	PlanRecord
}

// =============================================================================
// LOOSE SCALARS
// =============================================================================

// Amount decodes a JSON number or a currency string.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) *Amount { return &Amount{Decimal: d} }

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		a.Decimal = generic.ParseCurrency(unquoted)
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		a.Decimal = decimal.Zero
		return nil
	}
	a.Decimal = d
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Count decodes a JSON number or a numeric string. Fractions are truncated
// and values are clamped to the int32 range. Anything else, NaN and
// infinities included, is zero.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*c = 0
		return nil
	}
	*c = Count(math.Max(math.MinInt32, math.Min(math.MaxInt32, math.Trunc(f))))
	return nil
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

var modalityByType = map[string]payment.Modality{
	"a_vista":              payment.ModalityCash,
	"parcelamento":         payment.ModalityInstallments,
	"entrada_parcelamento": payment.ModalityDownPayment,
}

// ParseModality maps a record payment type to a modality. The domain names
// ("cash", "installments", "down_payment") are accepted as well.
func ParseModality(s string) (payment.Modality, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if m, ok := modalityByType[s]; ok {
		return m, true
	}
	if m := payment.Modality(s); m.Valid() {
		return m, true
	}
	return "", false
}

// PaymentType is the inverse of ParseModality.
func PaymentType(m payment.Modality) string {
	for k, v := range modalityByType {
		if v == m {
			return k
		}
	}
	return ""
}

// =============================================================================
// RECORD -> DOMAIN
// =============================================================================

// ParseAuction decodes a JSON auction record.
func ParseAuction(data []byte) (payment.Auction, error) {
	var rec AuctionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return payment.Auction{}, fmt.Errorf("decode auction record: %v: %w", err, generic.ErrInvalidRecord)
	}
	return FromRecord(rec)
}

// FromRecord converts a decoded record into the domain model.
func FromRecord(rec AuctionRecord) (payment.Auction, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return payment.Auction{}, fmt.Errorf("auction record without id: %w", generic.ErrInvalidRecord)
	}

	a := payment.Auction{
		ID:        generic.AuctionID(rec.ID),
		Name:      rec.Name,
		StartDate: parseDate(rec.StartDate),
		Archived:  rec.Archived,
		Defaults:  rec.PlanRecord.Override(),
	}

	for _, lr := range rec.Lots {
		a.Lots = append(a.Lots, payment.Lot{
			ID:          generic.LotID(lr.ID),
			Number:      lr.Number,
			Description: lr.Description,
			Plan:        lr.PlanRecord.Override(),
		})
	}

	seen := make(map[generic.BidderID]bool)
	for i, br := range rec.Bidders {
		b := br.toBidder(a.ID, i)
		seen[b.ID] = true
		a.Bidders = append(a.Bidders, b)
	}
	if rec.LegacyBidder != nil {
		b := rec.LegacyBidder.toBidder(a.ID, len(rec.Bidders))
		if rec.LegacyBidder.ID == "" {
			b.ID = legacyBidderID(a.ID)
		}
		if !seen[b.ID] {
			a.Bidders = append(a.Bidders, b)
		}
	}

	return a, nil
}

// Override converts the record fields into a plan override. Unknown payment
// types leave the modality unset.
func (p PlanRecord) Override() payment.PlanOverride {
	o := payment.PlanOverride{
		CashDueDate:        parseDate(p.CashDueDate),
		StartMonth:         strings.TrimSpace(p.StartMonth),
		DueDay:             int(p.DueDay),
		Installments:       int(p.Installments),
		DownPaymentDueDate: parseDate(p.DownPaymentDate),
	}
	if m, ok := ParseModality(p.PaymentType); ok {
		o.Modality = m
	}
	if p.DownPaymentAmount != nil {
		d := p.DownPaymentAmount.Decimal
		o.DownPaymentAmount = &d
	}
	return o
}

func (br BidderRecord) toBidder(auctionID generic.AuctionID, position int) payment.Bidder {
	b := payment.Bidder{
		ID:            generic.BidderID(br.ID),
		Name:          br.Name,
		Document:      br.Document,
		Email:         br.Email,
		Phone:         br.Phone,
		LotID:         generic.LotID(br.LotID),
		AmountDueText: br.AmountText,
		Plan:          br.PlanRecord.Override(),
		Progress: payment.Progress{
			UnitsSettled: int(br.UnitsSettled),
			FullySettled: br.FullySettled,
		},
	}
	if b.ID == "" {
		b.ID = generatedBidderID(auctionID, position)
	}
	if br.AmountNumeric != nil {
		b.AmountDue = br.AmountNumeric.Decimal
	}
	if br.UseMultiplier || br.BidValue != nil || br.Factor != nil {
		b.Pricing.UseMultiplier = br.UseMultiplier
		if br.BidValue != nil {
			b.Pricing.BidValue = br.BidValue.Decimal
		}
		if br.Factor != nil {
			b.Pricing.Factor = br.Factor.Decimal
		}
	}
	if br.LateInterestPct != nil {
		d := br.LateInterestPct.Decimal
		b.LateInterestPct = &d
	}
	for unit, s := range br.PaymentDates {
		t, err := generic.ParseDate(s)
		if err != nil || unit < 0 {
			continue
		}
		if b.Progress.SettledAt == nil {
			b.Progress.SettledAt = make(map[int]time.Time)
		}
		b.Progress.SettledAt[unit] = t
	}
	return b
}

// generatedBidderID is stable for a given auction and list position, so the
// same record always yields the same IDs.
func generatedBidderID(auctionID generic.AuctionID, position int) generic.BidderID {
	name := fmt.Sprintf("%s/bidder/%d", auctionID, position)
	return generic.BidderID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String())
}

func legacyBidderID(auctionID generic.AuctionID) generic.BidderID {
	name := fmt.Sprintf("%s/bidder/legacy", auctionID)
	return generic.BidderID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String())
}

func parseDate(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := generic.ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

// =============================================================================
// DOMAIN -> RECORD
// =============================================================================

// MarshalAuction encodes an auction in the record shape.
func MarshalAuction(a payment.Auction) ([]byte, error) {
	return json.Marshal(ToRecord(a))
}

// ToRecord converts an auction into its record form.
func ToRecord(a payment.Auction) AuctionRecord {
	rec := AuctionRecord{
		ID:         string(a.ID),
		Name:       a.Name,
		StartDate:  formatDate(a.StartDate),
		Archived:   a.Archived,
		PlanRecord: NewPlanRecord(a.Defaults),
	}
	for _, l := range a.Lots {
		rec.Lots = append(rec.Lots, LotRecord{
			ID:          string(l.ID),
			Number:      l.Number,
			Description: l.Description,
			PlanRecord:  NewPlanRecord(l.Plan),
		})
	}
	for _, b := range a.Bidders {
		rec.Bidders = append(rec.Bidders, bidderRecord(b))
	}
	return rec
}

// NewPlanRecord is the inverse of PlanRecord.Override.
func NewPlanRecord(o payment.PlanOverride) PlanRecord {
	p := PlanRecord{
		PaymentType:     PaymentType(o.Modality),
		CashDueDate:     formatDate(o.CashDueDate),
		StartMonth:      o.StartMonth,
		DueDay:          Count(o.DueDay),
		Installments:    Count(o.Installments),
		DownPaymentDate: formatDate(o.DownPaymentDueDate),
	}
	if o.DownPaymentAmount != nil {
		p.DownPaymentAmount = NewAmount(*o.DownPaymentAmount)
	}
	return p
}

func bidderRecord(b payment.Bidder) BidderRecord {
	br := BidderRecord{
		ID:            string(b.ID),
		Name:          b.Name,
		Document:      b.Document,
		Email:         b.Email,
		Phone:         b.Phone,
		LotID:         string(b.LotID),
		AmountText:    b.AmountDueText,
		AmountNumeric: NewAmount(b.AmountDue),
		UseMultiplier: b.Pricing.UseMultiplier,
		UnitsSettled:  Count(b.Progress.UnitsSettled),
		FullySettled:  b.Progress.FullySettled,
		PlanRecord:    NewPlanRecord(b.Plan),
	}
	if b.Pricing.UseMultiplier || !b.Pricing.BidValue.IsZero() || !b.Pricing.Factor.IsZero() {
		br.BidValue = NewAmount(b.Pricing.BidValue)
		br.Factor = NewAmount(b.Pricing.Factor)
	}
	if b.LateInterestPct != nil {
		br.LateInterestPct = NewAmount(*b.LateInterestPct)
	}
	if len(b.Progress.SettledAt) > 0 {
		br.PaymentDates = make(map[int]string, len(b.Progress.SettledAt))
		for u, at := range b.Progress.SettledAt {
			br.PaymentDates[u] = at.UTC().Format(time.RFC3339)
		}
	}
	return br
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return generic.FormatDate(*t)
}
