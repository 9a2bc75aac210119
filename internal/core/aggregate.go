package core

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Every function in this file is pure. Sums accumulate left to right over
// the list they are given so results only depend on the input order.

// InventoryValue values the remaining stock at purchase price.
func InventoryValue(items []ShopItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.CostValue())
	}
	return sum
}

// IncomeEntries returns the income entries in display order. The
// auto-calculated shop entry shows the inventory value instead of its stored
// amount; nothing is written back.
func IncomeEntries(entries []FinanceEntry, inventory decimal.Decimal) []FinanceEntry {
	out := filterType(entries, Income)
	for i, e := range out {
		if e.IsAutoCalculated && e.Category == ShopCategory {
			out[i].Amount = inventory
		}
	}
	return out
}

func ExpenseEntries(entries []FinanceEntry) []FinanceEntry {
	return filterType(entries, Expense)
}

func DebtEntries(entries []FinanceEntry) []FinanceEntry {
	return filterType(entries, Debt)
}

func filterType(entries []FinanceEntry, t EntryType) []FinanceEntry {
	out := make([]FinanceEntry, 0, len(entries))
	for _, e := range SortEntries(entries) {
		if e.Type == t {
			out = append(out, e.Normalized())
		}
	}
	return out
}

// TotalIncome skips excluded entries and the auto-calculated placeholder,
// whose displayed value is already counted as inventory.
func TotalIncome(income []FinanceEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range income {
		if e.ExcludedFromTotal || e.IsAutoCalculated {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum
}

func TotalExpense(expenses []FinanceEntry) decimal.Decimal {
	return sumIncluded(expenses)
}

func TotalDebt(debts []FinanceEntry) decimal.Decimal {
	return sumIncluded(debts)
}

func sumIncluded(entries []FinanceEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		if e.ExcludedFromTotal {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum
}

// CurrentMonthProfit sums the profit booked for the calendar month of now.
func CurrentMonthProfit(sold []SoldItem, now time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range sold {
		if s.InMonth(now) {
			sum = sum.Add(s.Profit)
		}
	}
	return sum
}

// Balance = income + debt - expense - current month profit + inventory.
func Balance(income, debt, expense, monthProfit, inventory decimal.Decimal) decimal.Decimal {
	return income.Add(debt).Sub(expense).Sub(monthProfit).Add(inventory)
}

// MonthlyProfits groups sold items by month, newest month first.
func MonthlyProfits(sold []SoldItem) []MonthlyProfit {
	type key struct{ year, month int }
	idx := make(map[key]int)
	var out []MonthlyProfit
	for _, s := range sold {
		k := key{s.Year, s.Month}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, MonthlyProfit{Month: s.Month, Year: s.Year, Profit: decimal.Zero})
		}
		out[i].Profit = out[i].Profit.Add(s.Profit)
	}
	slices.SortFunc(out, func(a, b MonthlyProfit) int {
		if c := cmp.Compare(b.Year, a.Year); c != 0 {
			return c
		}
		return cmp.Compare(b.Month, a.Month)
	})
	return out
}

// SortEntries returns a copy ordered by OrderIndex. Ties keep input order.
func SortEntries(entries []FinanceEntry) []FinanceEntry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b FinanceEntry) int {
		return cmp.Compare(a.OrderIndex, b.OrderIndex)
	})
	return out
}

func SortShopItems(items []ShopItem) []ShopItem {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b ShopItem) int {
		return cmp.Compare(a.OrderIndex, b.OrderIndex)
	})
	return out
}

// SortSoldItems returns the sales newest first.
func SortSoldItems(items []SoldItem) []SoldItem {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b SoldItem) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// Summarize derives every aggregate from one snapshot.
func Summarize(s Snapshot, now time.Time) Summary {
	inventory := InventoryValue(s.ShopItems)
	income := IncomeEntries(s.Entries, inventory)
	expenses := ExpenseEntries(s.Entries)
	debts := DebtEntries(s.Entries)

	totalIncome := TotalIncome(income)
	totalExpense := TotalExpense(expenses)
	totalDebt := TotalDebt(debts)
	monthProfit := CurrentMonthProfit(s.SoldItems, now)

	return Summary{
		IncomeEntries:      income,
		ExpenseEntries:     expenses,
		DebtEntries:        debts,
		ShopItems:          SortShopItems(s.ShopItems),
		SoldItems:          SortSoldItems(s.SoldItems),
		InventoryValue:     inventory,
		TotalIncome:        totalIncome,
		TotalExpense:       totalExpense,
		TotalDebt:          totalDebt,
		CurrentMonthProfit: monthProfit,
		Balance:            Balance(totalIncome, totalDebt, totalExpense, monthProfit, inventory),
		MonthlyProfits:     MonthlyProfits(s.SoldItems),
		ComputedAt:         now,
	}
}
