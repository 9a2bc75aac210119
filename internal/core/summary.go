package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyProfit is the realized profit of one calendar month.
type MonthlyProfit struct {
	Month  int             `json:"month"` // 1-12
	Year   int             `json:"year"`
	Profit decimal.Decimal `json:"profit"`
}

// Snapshot is one consistent view over the collections the aggregates
// depend on.
type Snapshot struct {
	Entries   []FinanceEntry
	ShopItems []ShopItem
	SoldItems []SoldItem
}

// Summary holds every derived value for a snapshot.
type Summary struct {
	IncomeEntries  []FinanceEntry `json:"incomeEntries"`
	ExpenseEntries []FinanceEntry `json:"expenseEntries"`
	DebtEntries    []FinanceEntry `json:"debtEntries"`
	ShopItems      []ShopItem     `json:"shopItems"`
	SoldItems      []SoldItem     `json:"soldItems"`

	InventoryValue     decimal.Decimal `json:"inventoryValue"`
	TotalIncome        decimal.Decimal `json:"totalIncome"`
	TotalExpense       decimal.Decimal `json:"totalExpense"`
	TotalDebt          decimal.Decimal `json:"totalDebt"`
	CurrentMonthProfit decimal.Decimal `json:"currentMonthProfit"`
	Balance            decimal.Decimal `json:"balance"`

	MonthlyProfits []MonthlyProfit `json:"monthlyProfits"`
	ComputedAt     time.Time       `json:"computedAt"`
}
