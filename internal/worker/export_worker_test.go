package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"financecalc/internal/amqp"
	"financecalc/internal/core"
	"financecalc/internal/report"
	sheetsmem "financecalc/internal/sheets/memory"
	"financecalc/internal/store"
	"financecalc/internal/store/memory"

	"github.com/shopspring/decimal"
)

type failingWriter struct{ err error }

func (f failingWriter) WriteReport(context.Context, [][]string) error { return f.err }

func TestHandleChangeMarksDirty(t *testing.T) {
	w := NewExportWorker(memory.New(), sheetsmem.New(), time.Second, nil)
	ctx := context.Background()

	_ = w.HandleChange(ctx, amqp.NewChangeMessage(store.HistoryCollection, "create", 1))
	_ = w.HandleChange(ctx, amqp.NewChangeMessage(store.SoldItemsCollection, "create", 1))
	if w.Dirty() {
		t.Fatal("collections outside the report must not mark it dirty")
	}

	_ = w.HandleChange(ctx, amqp.NewChangeMessage(store.ShopItemsCollection, "update", 3))
	if !w.Dirty() {
		t.Fatal("shop item change should mark the report dirty")
	}
}

func TestExportIfDirty(t *testing.T) {
	st := memory.New()
	out := sheetsmem.New()
	w := NewExportWorker(st, out, time.Second, nil)
	ctx := context.Background()

	exported, err := w.ExportIfDirty(ctx)
	if err != nil || exported {
		t.Fatalf("clean worker exported=%v err=%v", exported, err)
	}

	_, _ = st.Entries().Insert(ctx, core.FinanceEntry{Name: "Salary", Type: core.Income, Amount: decimal.NewFromInt(100)})
	_ = w.HandleChange(ctx, amqp.NewChangeMessage(store.EntriesCollection, "create", 1))

	exported, err = w.ExportIfDirty(ctx)
	if err != nil || !exported {
		t.Fatalf("dirty worker exported=%v err=%v", exported, err)
	}
	if w.Dirty() {
		t.Fatal("export should clear the dirty flag")
	}

	rows, _ := out.ReadReport(ctx)
	if len(rows) < 2 || rows[0][0] != report.Header[0] || rows[1][1] != "Salary" || rows[1][2] != "100.00" {
		t.Fatalf("unexpected report rows: %v", rows)
	}
}

func TestFailedExportStaysDirty(t *testing.T) {
	w := NewExportWorker(memory.New(), failingWriter{errors.New("quota exceeded")}, time.Second, nil)
	ctx := context.Background()
	_ = w.HandleChange(ctx, amqp.NewChangeMessage(store.EntriesCollection, "delete", 1))

	if _, err := w.ExportIfDirty(ctx); err == nil {
		t.Fatal("expected error")
	}
	if !w.Dirty() {
		t.Fatal("failed export must stay dirty")
	}
}

func TestRunExportsAtStartupAndOnTick(t *testing.T) {
	st := memory.New()
	out := sheetsmem.New()
	w := NewExportWorker(st, out, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitWrites := func(n int) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for out.Writes() < n {
			if time.Now().After(deadline) {
				t.Fatalf("writes=%d, want %d", out.Writes(), n)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	waitWrites(1)

	_, _ = st.ShopItems().Insert(ctx, core.ShopItem{Name: "ps5", Count: 1})
	_ = w.HandleChange(ctx, amqp.NewChangeMessage(store.ShopItemsCollection, "create", 1))
	waitWrites(2)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestPollingExportsEveryTick(t *testing.T) {
	out := sheetsmem.New()
	w := NewExportWorker(memory.New(), out, time.Second, nil)
	w.EnablePolling()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		exported, err := w.ExportIfDirty(ctx)
		if err != nil || !exported {
			t.Fatalf("poll %d exported=%v err=%v", i, exported, err)
		}
	}
	if out.Writes() != 2 {
		t.Fatalf("writes=%d", out.Writes())
	}
}
