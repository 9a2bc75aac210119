package http

import (
	"net/http"
	"strconv"

	"financecalc/internal/core"
	"financecalc/internal/log"
)

type subEntryRequest struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type entryRequest struct {
	Name              string            `json:"name"`
	Amount            string            `json:"amount"`
	Type              string            `json:"type"`
	Category          string            `json:"category"`
	IsAutoCalculated  bool              `json:"isAutoCalculated"`
	SubEntries        []subEntryRequest `json:"subEntries"`
	ExcludedFromTotal bool              `json:"excludedFromTotal"`
	OrderIndex        int               `json:"orderIndex"`
}

// toEntry parses the request. The amount may be left empty for a split
// booking, whose amount is the sum of its parts.
func (req entryRequest) toEntry() (core.FinanceEntry, error) {
	t, err := core.ParseEntryType(req.Type)
	if err != nil {
		return core.FinanceEntry{}, err
	}
	amount, err := parseAmountField("amount", req.Amount, len(req.SubEntries) > 0)
	if err != nil {
		return core.FinanceEntry{}, err
	}

	e := core.FinanceEntry{
		Name:              sanitizeInput(req.Name),
		Amount:            amount,
		Type:              t,
		Category:          sanitizeInput(req.Category),
		IsAutoCalculated:  req.IsAutoCalculated,
		ExcludedFromTotal: req.ExcludedFromTotal,
		OrderIndex:        req.OrderIndex,
	}
	for i, sub := range req.SubEntries {
		a, err := parseAmountField("subEntries["+strconv.Itoa(i)+"].amount", sub.Amount, false)
		if err != nil {
			return core.FinanceEntry{}, err
		}
		e.SubEntries = append(e.SubEntries, core.SubEntry{Name: sanitizeInput(sub.Name), Amount: a})
	}
	return e, nil
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	e, err := req.toEntry()
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	id, err := s.finance.AddEntry(r.Context(), e)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.finance.Entry(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateEntry replaces an entry. A changed amount is recorded in the
// entry's history.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	e, err := req.toEntry()
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	old, err := s.finance.Entry(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	e.ID = id
	e.Timestamp = old.Timestamp
	if err := s.finance.UpdateEntry(r.Context(), e, &old); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.finance.Entry(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.finance.DeleteEntry(r.Context(), core.FinanceEntry{ID: id}); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEntryHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	lines, err := s.finance.EntryHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	if lines == nil {
		lines = []core.HistoryLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}
