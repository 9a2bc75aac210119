package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  EntryType = "INCOME"
	Expense EntryType = "EXPENSE"
	Debt    EntryType = "DEBT"
)

const (
	// ShopCategory marks the income entry whose amount mirrors the inventory value.
	ShopCategory = "Shop"

	DefaultShopCategory = "General"
	DefaultCardType     = "VISA"
	ManualProfitName    = "Manual Entry"
)

type (
	EntryType string

	// SubEntry is one line of a split booking.
	SubEntry struct {
		Name   string          `json:"name"`
		Amount decimal.Decimal `json:"amount"`
	}

	FinanceEntry struct {
		ID                int64           `json:"id"`
		Name              string          `json:"name"`
		Amount            decimal.Decimal `json:"amount"`
		Type              EntryType       `json:"type"`
		Category          string          `json:"category"`
		IsAutoCalculated  bool            `json:"isAutoCalculated"`
		SubEntries        []SubEntry      `json:"subEntries"`
		ExcludedFromTotal bool            `json:"excludedFromTotal"`
		OrderIndex        int             `json:"orderIndex"`
		Timestamp         time.Time       `json:"dateTimestamp"`
	}

	ShopItem struct {
		ID            int64           `json:"id"`
		Name          string          `json:"name"`
		Count         int             `json:"count"`
		PricePerUnit  decimal.Decimal `json:"pricePerUnit"`
		PurchasePrice decimal.Decimal `json:"purchasePrice"`
		OrderIndex    int             `json:"orderIndex"`
		Category      string          `json:"category"`
	}

	SoldItem struct {
		ID        int64           `json:"id"`
		Name      string          `json:"name"`
		Profit    decimal.Decimal `json:"profit"`
		Timestamp time.Time       `json:"dateTimestamp"`
		Month     int             `json:"month"` // 1-12
		Year      int             `json:"year"`
	}

	HistoryEntry struct {
		ID        int64           `json:"id"`
		EntryID   int64           `json:"entryId"` // weak reference, may point at a deleted entry
		OldAmount decimal.Decimal `json:"oldAmount"`
		NewAmount decimal.Decimal `json:"newAmount"`
		Timestamp time.Time       `json:"dateTimestamp"`
	}

	CreditCard struct {
		ID         int64           `json:"id"`
		HolderName string          `json:"holderName"`
		CardNumber string          `json:"cardNumber"` // last 4 digits, display only
		ExpiryDate string          `json:"expiryDate"`
		Balance    decimal.Decimal `json:"balance"` // informational, never aggregated
		CardType   string          `json:"cardType"`
		ColorTheme int             `json:"colorTheme"`
	}
)

// Record is implemented by every persisted entity. WithKey returns a
// detached copy carrying the given id.
type Record[T any] interface {
	Key() int64
	WithKey(id int64) T
}

var (
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidEntryType = errors.New("invalid entry type")
	ErrInvalidCount     = errors.New("invalid count")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidSellPrice = errors.New("invalid sell price")
)

// ValidationError reports which field of a record was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (t EntryType) Valid() bool {
	switch t {
	case Income, Expense, Debt:
		return true
	}
	return false
}

// ParseEntryType accepts the type name in any case.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", invalid("type", ErrInvalidEntryType)
	}
	return t, nil
}

func (e FinanceEntry) Key() int64 { return e.ID }

func (e FinanceEntry) WithKey(id int64) FinanceEntry {
	e.ID = id
	e.SubEntries = slices.Clone(e.SubEntries)
	return e
}

// EffectiveAmount is the sum of the sub entries for a split booking and the
// stored amount otherwise.
func (e FinanceEntry) EffectiveAmount() decimal.Decimal {
	if len(e.SubEntries) == 0 {
		return e.Amount
	}
	sum := decimal.Zero
	for _, s := range e.SubEntries {
		sum = sum.Add(s.Amount)
	}
	return sum
}

// Normalized returns a copy whose Amount equals EffectiveAmount.
func (e FinanceEntry) Normalized() FinanceEntry {
	n := e.WithKey(e.ID)
	n.Amount = e.EffectiveAmount()
	return n
}

func (e FinanceEntry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if len(e.Name) > 200 {
		return invalid("name", errors.New("name too long (max 200 characters)"))
	}
	if !e.Type.Valid() {
		return invalid("type", ErrInvalidEntryType)
	}
	if e.Amount.IsNegative() {
		return invalid("amount", ErrInvalidAmount)
	}
	for i, s := range e.SubEntries {
		if s.Amount.IsNegative() {
			return invalid(fmt.Sprintf("subEntries[%d].amount", i), ErrInvalidAmount)
		}
	}
	return nil
}

func (s ShopItem) Key() int64 { return s.ID }

func (s ShopItem) WithKey(id int64) ShopItem {
	s.ID = id
	return s
}

// Total is the stock valued at the (legacy) selling price.
func (s ShopItem) Total() decimal.Decimal {
	return s.PricePerUnit.Mul(decimal.NewFromInt(int64(s.Count)))
}

func (s ShopItem) TotalProfit() decimal.Decimal {
	return s.PricePerUnit.Sub(s.PurchasePrice).Mul(decimal.NewFromInt(int64(s.Count)))
}

// CostValue is the stock valued at purchase price.
func (s ShopItem) CostValue() decimal.Decimal {
	return s.PurchasePrice.Mul(decimal.NewFromInt(int64(s.Count)))
}

func (s ShopItem) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if s.Count < 0 {
		return invalid("count", ErrInvalidCount)
	}
	if s.PurchasePrice.IsNegative() {
		return invalid("purchasePrice", ErrInvalidAmount)
	}
	if s.PricePerUnit.IsNegative() {
		return invalid("pricePerUnit", ErrInvalidAmount)
	}
	return nil
}

func (s SoldItem) Key() int64 { return s.ID }

func (s SoldItem) WithKey(id int64) SoldItem {
	s.ID = id
	return s
}

// InMonth reports whether the sale is booked for the calendar month of t.
func (s SoldItem) InMonth(t time.Time) bool {
	return s.Month == int(t.Month()) && s.Year == t.Year()
}

func (s SoldItem) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if s.Month < 1 || s.Month > 12 {
		return invalid("month", ErrInvalidMonth)
	}
	if s.Year < 1970 || s.Year > 9999 {
		return invalid("year", ErrInvalidYear)
	}
	return nil
}

func (h HistoryEntry) Key() int64 { return h.ID }

func (h HistoryEntry) WithKey(id int64) HistoryEntry {
	h.ID = id
	return h
}

// Delta is the signed change recorded by this entry.
func (h HistoryEntry) Delta() decimal.Decimal {
	return h.NewAmount.Sub(h.OldAmount)
}

func (c CreditCard) Key() int64 { return c.ID }

func (c CreditCard) WithKey(id int64) CreditCard {
	c.ID = id
	return c
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.HolderName) == "" {
		return invalid("holderName", ErrEmptyName)
	}
	if len(c.CardNumber) > 4 {
		return invalid("cardNumber", errors.New("only the last 4 digits are stored"))
	}
	return nil
}
