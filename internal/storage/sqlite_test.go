package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"financecalc/internal/core"
	"financecalc/internal/store"

	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEntryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	in := core.FinanceEntry{
		Name:     "Groceries",
		Amount:   decimal.RequireFromString("12.50"),
		Type:     core.Expense,
		Category: "Food",
		SubEntries: []core.SubEntry{
			{Name: "bread", Amount: decimal.RequireFromString("2.50")},
			{Name: "milk", Amount: decimal.RequireFromString("10")},
		},
		ExcludedFromTotal: true,
		OrderIndex:        3,
		Timestamp:         ts,
	}
	id, err := s.Entries().Insert(ctx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.First(ctx, s.Entries())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len=%d, want 1", len(got))
	}
	e := got[0]
	if e.ID != id || e.Name != "Groceries" || e.Type != core.Expense || e.Category != "Food" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if !e.Amount.Equal(in.Amount) || !e.ExcludedFromTotal || e.OrderIndex != 3 || !e.Timestamp.Equal(ts) {
		t.Fatalf("fields lost: %+v", e)
	}
	if len(e.SubEntries) != 2 || !e.SubEntries[1].Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("sub entries lost: %+v", e.SubEntries)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.ShopItems().Insert(ctx, core.ShopItem{Name: "ps5", Count: 2, PurchasePrice: decimal.NewFromInt(290), Category: "Playstation"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.ShopItems().Update(ctx, core.ShopItem{ID: id, Name: "ps5", Count: 1, PurchasePrice: decimal.NewFromInt(290), Category: "Playstation"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	items, _ := store.First(ctx, s.ShopItems())
	if len(items) != 1 || items[0].Count != 1 {
		t.Fatalf("update not applied: %+v", items)
	}

	err = s.ShopItems().Update(ctx, core.ShopItem{ID: id + 99, Name: "missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update missing: err=%v, want ErrNotFound", err)
	}

	if err := s.ShopItems().Delete(ctx, core.ShopItem{ID: id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.ShopItems().Delete(ctx, core.ShopItem{ID: id}); err != nil {
		t.Fatalf("delete missing should be a no-op: %v", err)
	}
	items, _ = store.First(ctx, s.ShopItems())
	if len(items) != 0 {
		t.Fatalf("len=%d, want 0", len(items))
	}
}

func TestObservePublishesAfterWrite(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.SoldItems().Observe(ctx)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if snap := <-ch; len(snap) != 0 {
		t.Fatalf("initial len=%d", len(snap))
	}

	if _, err := s.SoldItems().Insert(ctx, core.SoldItem{Name: "xsx", Profit: decimal.RequireFromString("-15.5"), Month: 3, Year: 2025}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	select {
	case snap := <-ch:
		if len(snap) != 1 || !snap[0].Profit.Equal(decimal.RequireFromString("-15.5")) {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot after insert")
	}
}

func TestRefreshIgnoresCancelledCaller(t *testing.T) {
	s := openTestStore(t)
	ch, err := s.SoldItems().Observe(context.Background())
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	<-ch

	// a committed row whose writer went away before the re-read
	if _, err := s.db.Exec("INSERT INTO sold_items (name, profit, date_timestamp, month, year) VALUES ('xsx', '5', 0, 3, 2025)"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	s.soldItems.mu.Lock()
	err = s.soldItems.refresh(cancelled)
	s.soldItems.mu.Unlock()
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	select {
	case snap := <-ch:
		if len(snap) != 1 || snap[0].Name != "xsx" {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot published")
	}
}

func TestHistorySurvivesEntryDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, _ := s.Entries().Insert(ctx, core.FinanceEntry{Name: "Car", Type: core.Expense, Amount: decimal.NewFromInt(190)})
	if _, err := s.History().Insert(ctx, core.HistoryEntry{EntryID: id, OldAmount: decimal.NewFromInt(190), NewAmount: decimal.NewFromInt(200)}); err != nil {
		t.Fatalf("insert history: %v", err)
	}
	if err := s.Entries().Delete(ctx, core.FinanceEntry{ID: id}); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	hist, _ := store.First(ctx, s.History())
	if len(hist) != 1 || hist[0].EntryID != id {
		t.Fatalf("history lost: %+v", hist)
	}
}

func TestSeedStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	st, err := s.LoadSeedState(ctx)
	if err != nil || st.Seeded {
		t.Fatalf("fresh db: %+v %v", st, err)
	}
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := s.SaveSeedState(ctx, core.SeedState{Seeded: true, Version: core.SeedVersion, SeededAt: at}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = s.Close()

	s, err = Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	st, err = s.LoadSeedState(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !st.Seeded || st.Version != core.SeedVersion || !st.SeededAt.Equal(at) {
		t.Fatalf("seed state lost: %+v", st)
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.Close()

	if _, err := s.CreditCards().Insert(ctx, core.CreditCard{HolderName: "x"}); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("err=%v, want ErrClosed", err)
	}
	if _, err := s.Entries().Observe(ctx); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("observe err=%v, want ErrClosed", err)
	}
}
