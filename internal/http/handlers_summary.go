package http

import (
	"bytes"
	"net/http"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/report"
	"financecalc/internal/store"
)

// entryView adds the amount as shown to the user. Entries in a summary are
// already normalized, so Amount is the shown value.
type entryView struct {
	core.FinanceEntry
	DisplayAmount string `json:"displayAmount"`
}

type summaryResponse struct {
	core.Summary
	IncomeEntries  []entryView `json:"incomeEntries"`
	ExpenseEntries []entryView `json:"expenseEntries"`
	DebtEntries    []entryView `json:"debtEntries"`
	BalanceDisplay string      `json:"balanceDisplay"`
}

func viewEntries(entries []core.FinanceEntry) []entryView {
	out := make([]entryView, len(entries))
	for i, e := range entries {
		out[i] = entryView{FinanceEntry: e, DisplayAmount: core.FormatAmount(e.Amount)}
	}
	return out
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.summaries.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "summary not computed yet"})
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:        sum,
		IncomeEntries:  viewEntries(sum.IncomeEntries),
		ExpenseEntries: viewEntries(sum.ExpenseEntries),
		DebtEntries:    viewEntries(sum.DebtEntries),
		BalanceDisplay: core.FormatAmount(sum.Balance),
	})
}

// handleExport streams the report as CSV, built from the stored records.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entries, err := store.First(r.Context(), s.store.Entries())
	if err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}
	items, err := store.First(r.Context(), s.store.ShopItems())
	if err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Build(entries, items).WriteCSV(&buf); err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="financecalc-export.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
