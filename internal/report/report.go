// Package report renders the flat export table of entries and stock.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"financecalc/internal/core"
)

const ShopSection = "SHOP ITEMS"

var Header = []string{"Type", "Name", "Amount", "Category"}

// Report is the export table. Entry amounts are the stored amounts; the
// auto-calculated placeholder is exported as stored, not as displayed.
type Report struct {
	Entries   []core.FinanceEntry
	ShopItems []core.ShopItem
}

// Build orders entries and shop items the way they are displayed.
func Build(entries []core.FinanceEntry, items []core.ShopItem) Report {
	return Report{
		Entries:   core.SortEntries(entries),
		ShopItems: core.SortShopItems(items),
	}
}

// Rows returns the table: header, one row per entry, a blank row, the
// SHOP ITEMS marker and one row per shop item.
func (r Report) Rows() [][]string {
	rows := make([][]string, 0, len(r.Entries)+len(r.ShopItems)+3)
	rows = append(rows, Header)
	for _, e := range r.Entries {
		rows = append(rows, []string{
			string(e.Type),
			e.Name,
			core.FormatAmount(e.EffectiveAmount()),
			e.Category,
		})
	}
	rows = append(rows, []string{}, []string{ShopSection})
	for _, it := range r.ShopItems {
		rows = append(rows, []string{
			"Item",
			it.Name,
			strconv.Itoa(it.Count),
			core.FormatAmount(it.PricePerUnit),
			core.FormatAmount(it.Total()),
		})
	}
	return rows
}

// WriteCSV writes Rows as CSV. Names containing commas or quotes are quoted.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(r.Rows()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
