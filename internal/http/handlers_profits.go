package http

import (
	"net/http"
	"strings"

	"financecalc/internal/core"
	"financecalc/internal/log"
)

type profitRequest struct {
	Name   string `json:"name"`
	Profit string `json:"profit"`
	Month  int    `json:"month"`
	Year   int    `json:"year"`
}

type profitsResponse struct {
	Items              []core.SoldItem      `json:"items"`
	Monthly            []core.MonthlyProfit `json:"monthly"`
	CurrentMonthProfit string               `json:"currentMonthProfit"`
}

func (s *Server) handleListProfits(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.summaries.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "summary not computed yet"})
		return
	}
	resp := profitsResponse{
		Items:              sum.SoldItems,
		Monthly:            sum.MonthlyProfits,
		CurrentMonthProfit: core.FormatAmount(sum.CurrentMonthProfit),
	}
	if resp.Items == nil {
		resp.Items = []core.SoldItem{}
	}
	if resp.Monthly == nil {
		resp.Monthly = []core.MonthlyProfit{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddProfit books a profit by hand. The name defaults to
// core.ManualProfitName.
func (s *Server) handleAddProfit(w http.ResponseWriter, r *http.Request) {
	var req profitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	profit, err := parseProfitField("profit", req.Profit)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	id, err := s.finance.ManualAddProfit(r.Context(), profit, req.Month, req.Year, sanitizeInput(req.Name))
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.finance.SoldItem(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateProfit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	var req profitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	profit, err := parseProfitField("profit", req.Profit)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	it, err := s.finance.SoldItem(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	if name := sanitizeInput(req.Name); strings.TrimSpace(name) != "" {
		it.Name = name
	}
	it.Profit = profit
	it.Month = req.Month
	it.Year = req.Year
	if err := s.finance.UpdateSoldItem(r.Context(), it); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDeleteProfit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.finance.DeleteSoldItem(r.Context(), core.SoldItem{ID: id}); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetProfits deletes the whole sold history. On a partial failure
// the body still reports how many records are gone.
func (s *Server) handleResetProfits(w http.ResponseWriter, r *http.Request) {
	n, err := s.finance.ResetSoldHistory(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Sold history reset incomplete",
			log.NewFields().WithOperation(log.OpReset).WithError(err).ToSlice()...)
		writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "deleted": n})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}
