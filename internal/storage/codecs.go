package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"financecalc/internal/core"
	"financecalc/internal/store"
)

// Amounts are stored as decimal TEXT, timestamps as unix milliseconds.

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

var entryCodec = codec[core.FinanceEntry]{
	table: store.EntriesCollection,
	columns: []string{
		"name", "amount", "type", "category", "is_auto_calculated",
		"sub_entries", "excluded_from_total", "order_index", "date_timestamp",
	},
	args: func(e core.FinanceEntry) ([]any, error) {
		subs := e.SubEntries
		if subs == nil {
			subs = []core.SubEntry{}
		}
		raw, err := json.Marshal(subs)
		if err != nil {
			return nil, fmt.Errorf("encode sub entries: %w", err)
		}
		return []any{
			e.Name, e.Amount, string(e.Type), e.Category, e.IsAutoCalculated,
			string(raw), e.ExcludedFromTotal, e.OrderIndex, millis(e.Timestamp),
		}, nil
	},
	scan: func(r rowScanner) (core.FinanceEntry, error) {
		var (
			e    core.FinanceEntry
			typ  string
			subs string
			ts   int64
		)
		if err := r.Scan(&e.ID, &e.Name, &e.Amount, &typ, &e.Category, &e.IsAutoCalculated,
			&subs, &e.ExcludedFromTotal, &e.OrderIndex, &ts); err != nil {
			return e, err
		}
		e.Type = core.EntryType(typ)
		e.Timestamp = fromMillis(ts)
		if err := json.Unmarshal([]byte(subs), &e.SubEntries); err != nil {
			return e, fmt.Errorf("decode sub entries of entry %d: %w", e.ID, err)
		}
		if len(e.SubEntries) == 0 {
			e.SubEntries = nil
		}
		return e, nil
	},
}

var shopItemCodec = codec[core.ShopItem]{
	table:   store.ShopItemsCollection,
	columns: []string{"name", "count", "price_per_unit", "purchase_price", "order_index", "category"},
	args: func(s core.ShopItem) ([]any, error) {
		return []any{s.Name, s.Count, s.PricePerUnit, s.PurchasePrice, s.OrderIndex, s.Category}, nil
	},
	scan: func(r rowScanner) (core.ShopItem, error) {
		var s core.ShopItem
		err := r.Scan(&s.ID, &s.Name, &s.Count, &s.PricePerUnit, &s.PurchasePrice, &s.OrderIndex, &s.Category)
		return s, err
	},
}

var soldItemCodec = codec[core.SoldItem]{
	table:   store.SoldItemsCollection,
	columns: []string{"name", "profit", "date_timestamp", "month", "year"},
	args: func(s core.SoldItem) ([]any, error) {
		return []any{s.Name, s.Profit, millis(s.Timestamp), s.Month, s.Year}, nil
	},
	scan: func(r rowScanner) (core.SoldItem, error) {
		var (
			s  core.SoldItem
			ts int64
		)
		err := r.Scan(&s.ID, &s.Name, &s.Profit, &ts, &s.Month, &s.Year)
		s.Timestamp = fromMillis(ts)
		return s, err
	},
}

var historyCodec = codec[core.HistoryEntry]{
	table:   store.HistoryCollection,
	columns: []string{"entry_id", "old_amount", "new_amount", "date_timestamp"},
	args: func(h core.HistoryEntry) ([]any, error) {
		return []any{h.EntryID, h.OldAmount, h.NewAmount, millis(h.Timestamp)}, nil
	},
	scan: func(r rowScanner) (core.HistoryEntry, error) {
		var (
			h  core.HistoryEntry
			ts int64
		)
		err := r.Scan(&h.ID, &h.EntryID, &h.OldAmount, &h.NewAmount, &ts)
		h.Timestamp = fromMillis(ts)
		return h, err
	},
}

var creditCardCodec = codec[core.CreditCard]{
	table:   store.CreditCardsCollection,
	columns: []string{"holder_name", "card_number", "expiry_date", "balance", "card_type", "color_theme"},
	args: func(c core.CreditCard) ([]any, error) {
		return []any{c.HolderName, c.CardNumber, c.ExpiryDate, c.Balance, c.CardType, c.ColorTheme}, nil
	},
	scan: func(r rowScanner) (core.CreditCard, error) {
		var c core.CreditCard
		err := r.Scan(&c.ID, &c.HolderName, &c.CardNumber, &c.ExpiryDate, &c.Balance, &c.CardType, &c.ColorTheme)
		return c, err
	},
}
