package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/store"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T) (*FinanceService, *testStore, *recordingPublisher) {
	t.Helper()
	st := newTestStore()
	pub := &recordingPublisher{}
	return NewFinanceService(st, pub, nil, func() time.Time { return fixedNow }), st, pub
}

func all[T any](t *testing.T, c store.Collection[T]) []T {
	t.Helper()
	v, err := store.First(context.Background(), c)
	if err != nil {
		t.Fatalf("read collection: %v", err)
	}
	return v
}

func TestAddEntryStoresSplitSum(t *testing.T) {
	svc, st, pub := newService(t)
	ctx := context.Background()

	id, err := svc.AddEntry(ctx, core.FinanceEntry{
		Name: "Groceries",
		Type: core.Expense,
		SubEntries: []core.SubEntry{
			{Name: "a", Amount: dec("30")},
			{Name: "b", Amount: dec("20")},
		},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := svc.Entry(ctx, id)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if !got.Amount.Equal(dec("50")) {
		t.Errorf("amount=%s, want 50", got.Amount)
	}
	if !got.Timestamp.Equal(fixedNow) {
		t.Errorf("timestamp=%v, want %v", got.Timestamp, fixedNow)
	}
	if pub.count() != 1 {
		t.Errorf("published %d changes, want 1", pub.count())
	}
	if len(all(t, st.Entries())) != 1 {
		t.Errorf("expected one stored entry")
	}
}

func TestAddEntryRejectsInvalid(t *testing.T) {
	svc, st, _ := newService(t)
	tests := []struct {
		name  string
		entry core.FinanceEntry
	}{
		{"blank name", core.FinanceEntry{Name: "  ", Type: core.Income}},
		{"bad type", core.FinanceEntry{Name: "x", Type: "SAVINGS"}},
		{"negative amount", core.FinanceEntry{Name: "x", Type: core.Income, Amount: dec("-1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddEntry(context.Background(), tt.entry)
			if !core.IsValidation(err) {
				t.Fatalf("err=%v, want validation error", err)
			}
		})
	}
	if n := len(all(t, st.Entries())); n != 0 {
		t.Fatalf("invalid entries reached the store: %d", n)
	}
}

func TestUpdateEntryHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("amount changed", func(t *testing.T) {
		svc, st, _ := newService(t)
		id, _ := svc.AddEntry(ctx, core.FinanceEntry{Name: "Car", Type: core.Expense, Amount: dec("10")})
		old, _ := svc.Entry(ctx, id)
		updated := old
		updated.Amount = dec("25")

		if err := svc.UpdateEntry(ctx, updated, &old); err != nil {
			t.Fatalf("update: %v", err)
		}
		hist := all(t, st.History())
		if len(hist) != 1 {
			t.Fatalf("history len=%d, want 1", len(hist))
		}
		h := hist[0]
		if h.EntryID != id || !h.OldAmount.Equal(dec("10")) || !h.NewAmount.Equal(dec("25")) || !h.Timestamp.Equal(fixedNow) {
			t.Fatalf("unexpected history: %+v", h)
		}
	})

	t.Run("no old entry", func(t *testing.T) {
		svc, st, _ := newService(t)
		id, _ := svc.AddEntry(ctx, core.FinanceEntry{Name: "Car", Type: core.Expense, Amount: dec("10")})
		if err := svc.UpdateEntry(ctx, core.FinanceEntry{ID: id, Name: "Car", Type: core.Expense, Amount: dec("25")}, nil); err != nil {
			t.Fatalf("update: %v", err)
		}
		if n := len(all(t, st.History())); n != 0 {
			t.Fatalf("history len=%d, want 0", n)
		}
	})

	t.Run("amount unchanged", func(t *testing.T) {
		svc, st, _ := newService(t)
		id, _ := svc.AddEntry(ctx, core.FinanceEntry{Name: "Car", Type: core.Expense, Amount: dec("10")})
		old, _ := svc.Entry(ctx, id)
		renamed := old
		renamed.Name = "Auto"
		if err := svc.UpdateEntry(ctx, renamed, &old); err != nil {
			t.Fatalf("update: %v", err)
		}
		if n := len(all(t, st.History())); n != 0 {
			t.Fatalf("history len=%d, want 0", n)
		}
		got, _ := svc.Entry(ctx, id)
		if got.Name != "Auto" {
			t.Fatalf("name=%q, want Auto", got.Name)
		}
	})
}

func TestUpdateEntryWritesHistoryFirst(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.AddEntry(ctx, core.FinanceEntry{Name: "Car", Type: core.Expense, Amount: dec("10")})
	old, _ := svc.Entry(ctx, id)

	st.entries.failUpdate = true
	updated := old
	updated.Amount = dec("12")
	err := svc.UpdateEntry(ctx, updated, &old)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err=%v, want storage failure", err)
	}
	if n := len(all(t, st.History())); n != 1 {
		t.Fatalf("history must be written before the update, len=%d", n)
	}
}

func TestUpdateEntryRecomputesSplitSum(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.AddEntry(ctx, core.FinanceEntry{
		Name: "Split", Type: core.Expense,
		SubEntries: []core.SubEntry{{Name: "a", Amount: dec("30")}, {Name: "b", Amount: dec("20")}},
	})
	e, _ := svc.Entry(ctx, id)
	e.SubEntries[1].Amount = dec("5")
	// stale amount is ignored in favor of the sub entry sum
	if err := svc.UpdateEntry(ctx, e, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := svc.Entry(ctx, id)
	if !got.Amount.Equal(dec("35")) {
		t.Fatalf("amount=%s, want 35", got.Amount)
	}
}

func TestUpdateMissingEntry(t *testing.T) {
	svc, _, _ := newService(t)
	err := svc.UpdateEntry(context.Background(), core.FinanceEntry{ID: 99, Name: "x", Type: core.Income}, nil)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestSellItem(t *testing.T) {
	ctx := context.Background()

	t.Run("last unit", func(t *testing.T) {
		svc, st, _ := newService(t)
		id, _ := svc.AddShopItem(ctx, core.ShopItem{Name: "ps5", Count: 1, PurchasePrice: dec("100")})
		it, _ := svc.ShopItem(ctx, id)

		sold, err := svc.SellItem(ctx, it, dec("150"))
		if err != nil {
			t.Fatalf("sell: %v", err)
		}
		if !sold.Profit.Equal(dec("50")) || sold.Month != 3 || sold.Year != 2025 || sold.Name != "ps5" {
			t.Fatalf("unexpected sold item: %+v", sold)
		}
		if n := len(all(t, st.ShopItems())); n != 0 {
			t.Fatalf("shop item should be deleted, %d left", n)
		}
		if n := len(all(t, st.SoldItems())); n != 1 {
			t.Fatalf("sold items=%d, want 1", n)
		}
	})

	t.Run("more in stock", func(t *testing.T) {
		svc, st, _ := newService(t)
		id, _ := svc.AddShopItem(ctx, core.ShopItem{Name: "xc", Count: 3, PurchasePrice: dec("100")})
		it, _ := svc.ShopItem(ctx, id)

		sold, err := svc.SellItem(ctx, it, dec("150"))
		if err != nil {
			t.Fatalf("sell: %v", err)
		}
		if !sold.Profit.Equal(dec("50")) {
			t.Fatalf("profit=%s, want 50", sold.Profit)
		}
		items := all(t, st.ShopItems())
		if len(items) != 1 || items[0].Count != 2 {
			t.Fatalf("shop item should have count 2: %+v", items)
		}
	})

	t.Run("below cost", func(t *testing.T) {
		svc, _, _ := newService(t)
		id, _ := svc.AddShopItem(ctx, core.ShopItem{Name: "nin", Count: 1, PurchasePrice: dec("120")})
		it, _ := svc.ShopItem(ctx, id)
		sold, err := svc.SellItem(ctx, it, dec("100"))
		if err != nil {
			t.Fatalf("sell: %v", err)
		}
		if !sold.Profit.Equal(dec("-20")) {
			t.Fatalf("profit=%s, want -20", sold.Profit)
		}
	})

	t.Run("negative price", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.SellItem(ctx, core.ShopItem{ID: 1, Name: "x", Count: 1}, dec("-1"))
		if !errors.Is(err, core.ErrInvalidSellPrice) {
			t.Fatalf("err=%v, want ErrInvalidSellPrice", err)
		}
	})
}

func TestSellItemStockFailureIsSurfaced(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.AddShopItem(ctx, core.ShopItem{Name: "xsx", Count: 2, PurchasePrice: dec("210")})
	it, _ := svc.ShopItem(ctx, id)

	st.shop.failUpdate = true
	sold, err := svc.SellItem(ctx, it, dec("250"))
	if !errors.Is(err, errBoom) {
		t.Fatalf("err=%v, want storage failure", err)
	}
	if sold.ID == 0 {
		t.Fatalf("the recorded sale should be returned")
	}
	if n := len(all(t, st.SoldItems())); n != 1 {
		t.Fatalf("sale should stay recorded, sold items=%d", n)
	}
	items := all(t, st.ShopItems())
	if items[0].Count != 2 {
		t.Fatalf("count=%d, stock must be untouched", items[0].Count)
	}
}

func TestSellItemKeepsCommittedSale(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.AddShopItem(ctx, core.ShopItem{Name: "xsx", Count: 2, PurchasePrice: dec("210")})
	it, _ := svc.ShopItem(ctx, id)

	st.sold.failRefresh = true
	sold, err := svc.SellItem(ctx, it, dec("250"))
	if !errors.Is(err, errBoom) {
		t.Fatalf("err=%v, want storage failure", err)
	}
	if sold.ID == 0 || !sold.Profit.Equal(dec("40")) {
		t.Fatalf("the committed sale should be returned: %+v", sold)
	}
	if n := len(all(t, st.SoldItems())); n != 1 {
		t.Fatalf("sold items=%d, want 1", n)
	}
	if items := all(t, st.ShopItems()); items[0].Count != 2 {
		t.Fatalf("count=%d, stock must be untouched", items[0].Count)
	}
}

func TestUpdateShopItemDefaultsCategory(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.AddShopItem(ctx, core.ShopItem{Name: "ps5", Count: 1, Category: "Playstation"})

	if err := svc.UpdateShopItem(ctx, core.ShopItem{ID: id, Name: "ps5", Count: 2}); err != nil {
		t.Fatalf("update: %v", err)
	}
	items := all(t, st.ShopItems())
	if len(items) != 1 || items[0].Category != core.DefaultShopCategory || items[0].Count != 2 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestOperationsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	st := newTestStore()
	logger := log.New(log.Config{Output: &buf, Format: "json", Component: "test"})
	svc := NewFinanceService(st, nil, logger, func() time.Time { return fixedNow })
	ctx := context.Background()

	id, err := svc.AddShopItem(ctx, core.ShopItem{Name: "ps5", Count: 1})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.DeleteShopItem(ctx, core.ShopItem{ID: id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	st.sold.failDelete = true
	_, _ = svc.ManualAddProfit(ctx, dec("5"), 3, 2025, "x")
	if err := svc.DeleteSoldItem(ctx, core.SoldItem{ID: 1}); err == nil {
		t.Fatalf("expected delete failure")
	}

	out := buf.String()
	for _, want := range []string{
		`"msg":"Shop item added"`,
		`"msg":"Shop item deleted"`,
		`"operation":"delete"`,
		`"collection":"shop_items"`,
		`"msg":"Profit added"`,
		`"level":"ERROR","msg":"Operation failed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestManualAddProfit(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.ManualAddProfit(ctx, dec("42.5"), 1, 2025, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	items := all(t, st.SoldItems())
	if len(items) != 1 || items[0].Name != core.ManualProfitName || !items[0].Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected sold item: %+v", items)
	}

	if _, err := svc.ManualAddProfit(ctx, dec("1"), 13, 2025, "bad"); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("err=%v, want ErrInvalidMonth", err)
	}
}

func TestResetSoldHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("empty is a no-op", func(t *testing.T) {
		svc, st, pub := newService(t)
		n, err := svc.ResetSoldHistory(ctx)
		if err != nil || n != 0 {
			t.Fatalf("n=%d err=%v", n, err)
		}
		if st.sold.deletes != 0 || pub.count() != 0 {
			t.Fatalf("no writes expected, deletes=%d published=%d", st.sold.deletes, pub.count())
		}
	})

	t.Run("twice", func(t *testing.T) {
		svc, st, _ := newService(t)
		for m := 1; m <= 3; m++ {
			_, _ = svc.ManualAddProfit(ctx, dec("10"), m, 2025, "")
		}
		if n, err := svc.ResetSoldHistory(ctx); err != nil || n != 3 {
			t.Fatalf("first reset n=%d err=%v", n, err)
		}
		if len(all(t, st.SoldItems())) != 0 {
			t.Fatalf("collection not empty after reset")
		}
		if n, err := svc.ResetSoldHistory(ctx); err != nil || n != 0 {
			t.Fatalf("second reset n=%d err=%v", n, err)
		}
		if len(all(t, st.SoldItems())) != 0 {
			t.Fatalf("collection not empty after second reset")
		}
	})

	t.Run("partial failure then retry", func(t *testing.T) {
		svc, st, _ := newService(t)
		for m := 1; m <= 4; m++ {
			_, _ = svc.ManualAddProfit(ctx, dec("10"), m, 2025, "")
		}
		st.sold.deleteLimit = 2
		n, err := svc.ResetSoldHistory(ctx)
		if !errors.Is(err, errBoom) || n != 2 {
			t.Fatalf("n=%d err=%v, want 2 and a failure", n, err)
		}
		if left := len(all(t, st.SoldItems())); left != 2 {
			t.Fatalf("left=%d, want 2", left)
		}

		st.sold.deleteLimit = 0
		if n, err := svc.ResetSoldHistory(ctx); err != nil || n != 2 {
			t.Fatalf("retry n=%d err=%v", n, err)
		}
		if left := len(all(t, st.SoldItems())); left != 0 {
			t.Fatalf("left=%d after retry", left)
		}
	})
}

func TestDeletedEntryKeepsHistory(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.AddEntry(ctx, core.FinanceEntry{Name: "Car", Type: core.Expense, Amount: dec("10")})
	old, _ := svc.Entry(ctx, id)
	updated := old
	updated.Amount = dec("20")
	_ = svc.UpdateEntry(ctx, updated, &old)

	if err := svc.DeleteEntry(ctx, updated); err != nil {
		t.Fatalf("delete: %v", err)
	}
	lines, err := svc.EntryHistory(ctx, id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(lines) != 1 || !lines[0].Orphaned || lines[0].EntryName != core.DeletedEntryLabel {
		t.Fatalf("unexpected history lines: %+v", lines)
	}
	if _, err := svc.Entry(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestCreditCards(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	id, err := svc.AddCreditCard(ctx, core.CreditCard{HolderName: "Sam", CardNumber: "4242", Balance: dec("500")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	cards, _ := svc.CreditCards(ctx)
	if len(cards) != 1 || cards[0].CardType != core.DefaultCardType {
		t.Fatalf("unexpected cards: %+v", cards)
	}
	if err := svc.DeleteCreditCard(ctx, core.CreditCard{ID: id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.AddCreditCard(ctx, core.CreditCard{HolderName: "Sam", CardNumber: "4242424242424242"}); !core.IsValidation(err) {
		t.Fatalf("full card number must be rejected, err=%v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	svc, st, pub := newService(t)
	pub.err = errors.New("broker down")
	if _, err := svc.AddShopItem(context.Background(), core.ShopItem{Name: "xss", Count: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	items := all(t, st.ShopItems())
	if len(items) != 1 || items[0].Category != core.DefaultShopCategory {
		t.Fatalf("unexpected items: %+v", items)
	}
}
