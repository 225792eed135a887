/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	auctions. Dates are relative to the handler's clock, so an overdue
	bidder is overdue whenever the scenario is loaded.

AVAILABLE SCENARIOS:

	mixed-portfolio:    Cash, installments and down payment bidders in all states
	late-down-payment:  Down payment configured after its due date passed
	legacy-record:      Old single-bidder record with currency strings
	archived-auction:   An archived auction next to an active one

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Build the auctions for the current date
 3. Save them and recompute the portfolio

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mixed-portfolio"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Portfolio recomputation
  - factory/auction.go: Record format used by legacy-record
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/arrears-engine/factory"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	build func(now time.Time) ([]payment.Auction, error)
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "mixed-portfolio",
			Name:        "Mixed Portfolio",
			Description: "Cash, installment and down payment bidders: settled, pending and overdue",
		},
		build: mixedPortfolio,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "late-down-payment",
			Name:        "Late Down Payment",
			Description: "Down payment and first installment both overdue",
		},
		build: lateDownPayment,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "legacy-record",
			Name:        "Legacy Record",
			Description: "Single-bidder record with currency strings",
		},
		build: legacyRecord,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "archived-auction",
			Name:        "Archived Auction",
			Description: "Archived auctions are left out of the live portfolio",
		},
		build: archivedAuction,
	},
}

// resetter is implemented by stores that can be cleared.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		dtos = append(dtos, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario resets the store and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	var chosen *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			chosen = &scenarios[i]
		}
	}
	if chosen == nil {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}

	auctions, err := chosen.build(h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build scenario", err)
		return
	}

	ctx := r.Context()
	h.writeMu.Lock()
	err = h.replaceAll(ctx, auctions)
	h.writeMu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.Logger.Info("scenario loaded", "scenario", chosen.ID, "auctions", len(auctions))
	h.publishPortfolio(ctx)

	ids := make([]string, 0, len(auctions))
	for _, a := range auctions {
		ids = append(ids, string(a.ID))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "loaded",
		"scenario_id": chosen.ID,
		"auctions":    ids,
	})
}

func (h *Handler) replaceAll(ctx context.Context, auctions []payment.Auction) error {
	if rs, ok := h.Store.(resetter); ok {
		if err := rs.Reset(ctx); err != nil {
			return err
		}
	} else {
		existing, err := h.Store.ListAuctions(ctx)
		if err != nil {
			return err
		}
		for _, a := range existing {
			if err := h.Store.DeleteAuction(ctx, a.ID); err != nil {
				return err
			}
		}
	}

	for _, a := range auctions {
		if err := h.Store.SaveAuction(ctx, a); err != nil {
			return fmt.Errorf("save %s: %w", a.ID, err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

func daysFrom(now time.Time, days int) *time.Time {
	d := generic.DateOnly(now).AddDate(0, 0, days)
	return &d
}

func monthsFrom(now time.Time, months int) string {
	t := generic.Date(now.Year(), now.Month(), 1).AddDate(0, months, 0)
	return generic.FormatYearMonth(t.Year(), t.Month())
}

func rate(pct int64) *decimal.Decimal {
	d := decimal.NewFromInt(pct)
	return &d
}

func mixedPortfolio(now time.Time) ([]payment.Auction, error) {
	dueDay := generic.DateOnly(now).Day()
	if dueDay > 28 {
		dueDay = 28
	}
	entry := decimal.NewFromInt(10000)

	a := payment.Auction{
		ID:        "leilao-boa-vista",
		Name:      "Leilão Fazenda Boa Vista",
		StartDate: daysFrom(now, -120),
		Defaults: payment.PlanOverride{
			Modality:     payment.ModalityInstallments,
			StartMonth:   monthsFrom(now, -3),
			DueDay:       dueDay,
			Installments: 12,
		},
		Lots: []payment.Lot{
			{ID: "lote-1", Number: "1", Description: "Touro Nelore PO"},
			{ID: "lote-2", Number: "2", Description: "Lote de 20 novilhas", Plan: payment.PlanOverride{
				Modality:    payment.ModalityCash,
				CashDueDate: daysFrom(now, -40),
			}},
			{ID: "lote-3", Number: "3", Description: "Matriz Gir", Plan: payment.PlanOverride{
				Modality:           payment.ModalityDownPayment,
				DownPaymentDueDate: daysFrom(now, -100),
				DownPaymentAmount:  &entry,
				Installments:       4,
				StartMonth:         monthsFrom(now, -3),
			}},
		},
		Bidders: []payment.Bidder{
			{
				ID:              "arr-ana",
				Name:            "Ana Souza",
				Email:           "ana@example.com",
				LotID:           "lote-1",
				AmountDue:       decimal.NewFromInt(36000),
				LateInterestPct: rate(2),
				// Three installments paid; the fourth falls due today.
				Progress: payment.Progress{UnitsSettled: 3},
			},
			{
				ID:              "arr-bruno",
				Name:            "Bruno Lima",
				Email:           "bruno@example.com",
				LotID:           "lote-2",
				AmountDue:       decimal.NewFromInt(15000),
				LateInterestPct: rate(1),
			},
			{
				ID:        "arr-carla",
				Name:      "Carla Dias",
				Email:     "carla@example.com",
				LotID:     "lote-3",
				AmountDue: decimal.NewFromInt(50000),
				Progress:  payment.Progress{UnitsSettled: 5, FullySettled: true},
			},
			{
				ID:              "arr-davi",
				Name:            "Davi Rocha",
				Email:           "davi@example.com",
				LotID:           "lote-1",
				AmountDue:       decimal.NewFromInt(24000),
				LateInterestPct: rate(2),
				// Only the first installment paid.
				Progress: payment.Progress{UnitsSettled: 1},
			},
		},
	}
	return []payment.Auction{a}, nil
}

func lateDownPayment(now time.Time) ([]payment.Auction, error) {
	entry := decimal.NewFromInt(4000)
	a := payment.Auction{
		ID:   "leilao-santa-fe",
		Name: "Leilão Santa Fé",
		Bidders: []payment.Bidder{{
			ID:              "arr-elisa",
			Name:            "Elisa Prado",
			Email:           "elisa@example.com",
			AmountDue:       decimal.NewFromInt(16000),
			LateInterestPct: rate(2),
			Plan: payment.PlanOverride{
				Modality:           payment.ModalityDownPayment,
				DownPaymentDueDate: daysFrom(now, -20),
				DownPaymentAmount:  &entry,
				Installments:       3,
				StartMonth:         monthsFrom(now, -2),
				DueDay:             10,
			},
		}},
	}
	return []payment.Auction{a}, nil
}

func legacyRecord(now time.Time) ([]payment.Auction, error) {
	record := fmt.Sprintf(`{
		"id": "leilao-legado",
		"nome": "Leilão Legado",
		"dataInicio": %q,
		"arrematante": {
			"nome": "Fábio Nunes",
			"email": "fabio@example.com",
			"valorPagar": "R$ 12.000,00",
			"tipoPagamento": "parcelamento",
			"mesInicioPagamento": %q,
			"diaVencimentoMensal": "10",
			"quantidadeParcelas": 6,
			"parcelasPagas": 1,
			"percentualJurosAtraso": 1.5
		}
	}`, generic.FormatDate(*daysFrom(now, -90)), monthsFrom(now, -2))

	a, err := factory.ParseAuction([]byte(record))
	if err != nil {
		return nil, err
	}
	return []payment.Auction{a}, nil
}

func archivedAuction(now time.Time) ([]payment.Auction, error) {
	active, err := mixedPortfolio(now)
	if err != nil {
		return nil, err
	}
	archived := payment.Auction{
		ID:       "leilao-2023",
		Name:     "Leilão de Outono 2023",
		Archived: true,
		Bidders: []payment.Bidder{{
			ID:              "arr-gustavo",
			Name:            "Gustavo Reis",
			AmountDue:       decimal.NewFromInt(8000),
			LateInterestPct: rate(2),
			Plan: payment.PlanOverride{
				Modality:    payment.ModalityCash,
				CashDueDate: daysFrom(now, -400),
			},
		}},
	}
	return append(active, archived), nil
}
