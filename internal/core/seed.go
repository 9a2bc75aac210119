package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedVersion identifies the starter dataset below.
const SeedVersion = "v3"

// SeedState records whether the starter dataset was written for an install.
type SeedState struct {
	Seeded   bool      `json:"seeded"`
	Version  string    `json:"version"`
	SeededAt time.Time `json:"seededAt"`
}

// SeedData is the starter dataset written on first run.
type SeedData struct {
	Entries   []FinanceEntry
	ShopItems []ShopItem
	SoldItems []SoldItem
}

// StarterData returns the starter dataset stamped with now.
func StarterData(now time.Time) SeedData {
	var data SeedData

	entry := func(name, amount string, t EntryType, category string, order int) FinanceEntry {
		return FinanceEntry{
			Name:       name,
			Amount:     decimal.RequireFromString(amount),
			Type:       t,
			Category:   category,
			OrderIndex: order,
			Timestamp:  now,
		}
	}

	i := 0
	next := func() int { i++; return i - 1 }
	data.Entries = append(data.Entries,
		entry("Sparkasse", "1634", Income, "Account", next()),
		entry("DKB", "106", Income, "Account", next()),
		entry("Revolut", "0", Income, "Account", next()),
		entry("Bar 1", "520", Income, "Cash", next()),
		entry("Bar 2", "1080", Income, "Cash", next()),
		entry("Shop T (Cash)", "2045", Income, ShopCategory, next()),
		entry("PayPal", "310", Income, "Account", next()),
		entry("In Safe", "1020", Income, "Safe", next()),
		entry("GIB", "2952", Income, "Bank", next()),
		entry("PS", "10", Income, "Account", next()),
	)
	placeholder := entry("Shop T Calculated", "0", Income, ShopCategory, next())
	placeholder.IsAutoCalculated = true
	placeholder.ExcludedFromTotal = true
	data.Entries = append(data.Entries, placeholder)

	i = 0
	data.Entries = append(data.Entries,
		entry("Temu", "196", Debt, "Shopping", next()),
		entry("Debt", "95", Debt, "General", next()),
		entry("Amazon", "700", Debt, "Shopping", next()),
		entry("Mama", "710", Debt, "Family", next()),
		entry("Mama (p)", "350", Debt, "Family", next()),
		entry("Mona", "56", Debt, "Family", next()),
		entry("Mo", "100", Debt, "Family", next()),
	)

	i = 0
	data.Entries = append(data.Entries,
		entry("Car", "190", Expense, "Transport", next()),
		entry("Save", "305", Expense, "Savings", next()),
		entry("Baba", "4166", Expense, "Family", next()),
		entry("Ola", "1500", Expense, "Other", next()),
	)
	for _, name := range []struct{ n, a string }{{"gm", "160"}, {"gold", "245"}} {
		e := entry(name.n, name.a, Expense, "Excluded", next())
		e.ExcludedFromTotal = true
		data.Entries = append(data.Entries, e)
	}

	items := []struct {
		name     string
		count    int
		price    string
		category string
	}{
		{"xss", 1, "105", "Xbox"},
		{"xsx", 1, "210", "Xbox"},
		{"xsx", 1, "275", "Xbox"},
		{"xc", 3, "60", "Xbox"},
		{"ps5", 1, "290", "Playstation"},
		{"ps5", 1, "290", "Playstation"},
		{"ps5", 1, "295", "Playstation"},
		{"ps5", 1, "300", "Playstation"},
		{"nin", 1, "100", "Nintendo"},
		{"nin", 1, "120", "Nintendo"},
	}
	for n, it := range items {
		data.ShopItems = append(data.ShopItems, ShopItem{
			Name:          it.name,
			Count:         it.count,
			PricePerUnit:  decimal.Zero,
			PurchasePrice: decimal.RequireFromString(it.price),
			OrderIndex:    n,
			Category:      it.category,
		})
	}

	legacy := []struct {
		month, year int
		profit      string
	}{
		{12, 2024, "330"},
		{1, 2025, "632"},
		{2, 2025, "350"},
		{3, 2025, "135"},
		{4, 2025, "60"},
		{5, 2025, "765"},
		{6, 2025, "70"},
		{7, 2025, "510"},
		{8, 2025, "10"},
		{9, 2025, "840"},
		{10, 2025, "607"},
		{11, 2025, "850"},
	}
	for _, l := range legacy {
		data.SoldItems = append(data.SoldItems, SoldItem{
			Name:      "Legacy Sale",
			Profit:    decimal.RequireFromString(l.profit),
			Timestamp: now,
			Month:     l.month,
			Year:      l.year,
		})
	}

	return data
}
