package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"financecalc/internal/amqp"
	"financecalc/internal/log"
	"financecalc/internal/report"
	"financecalc/internal/sheets"
	"financecalc/internal/store"
)

// ExportWorker keeps the exported report in step with the database. Change
// messages only mark the report dirty; the rebuild happens on the next tick
// so a burst of writes costs one export.
type ExportWorker struct {
	store    store.Store
	writer   sheets.ReportWriter
	interval time.Duration
	logger   *log.Logger

	dirty   atomic.Bool
	polling atomic.Bool
	// serializes exports
	mu sync.Mutex
}

func NewExportWorker(st store.Store, writer sheets.ReportWriter, interval time.Duration, logger *log.Logger) *ExportWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		store:    st,
		writer:   writer,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange marks the report dirty when a reported collection changed.
func (w *ExportWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	switch msg.Collection {
	case store.EntriesCollection, store.ShopItemsCollection:
		w.dirty.Store(true)
		w.logger.DebugContext(ctx, "Report marked dirty",
			log.NewFields().WithRecord(msg.Collection, msg.RecordID).WithOperation(msg.Op).ToSlice()...)
	default:
		// sold items, history and cards are not part of the report
	}
	return nil
}

// EnablePolling makes every tick export, for deployments without change
// messages.
func (w *ExportWorker) EnablePolling() {
	w.polling.Store(true)
}

// Dirty reports whether an export is pending.
func (w *ExportWorker) Dirty() bool {
	return w.dirty.Load()
}

// ExportNow rebuilds the report from the store and writes it. A failed
// export leaves the report dirty for the next tick.
func (w *ExportWorker) ExportNow(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// clear first so changes arriving during the export are not lost
	w.dirty.Store(false)

	entries, err := store.First(ctx, w.store.Entries())
	if err != nil {
		w.dirty.Store(true)
		return fmt.Errorf("read entries: %w", err)
	}
	items, err := store.First(ctx, w.store.ShopItems())
	if err != nil {
		w.dirty.Store(true)
		return fmt.Errorf("read shop items: %w", err)
	}

	rows := report.Build(entries, items).Rows()
	if err := w.writer.WriteReport(ctx, rows); err != nil {
		w.dirty.Store(true)
		return fmt.Errorf("write report: %w", err)
	}

	w.logger.InfoContext(ctx, "Report exported",
		log.FieldOperation, log.OpExport,
		"entries", len(entries),
		"shop_items", len(items))
	return nil
}

// ExportIfDirty exports only when a change was seen since the last export,
// or always when polling.
func (w *ExportWorker) ExportIfDirty(ctx context.Context) (bool, error) {
	if !w.dirty.Load() && !w.polling.Load() {
		return false, nil
	}
	return true, w.ExportNow(ctx)
}

// Run exports once, then on every tick while dirty, until ctx is done.
func (w *ExportWorker) Run(ctx context.Context) error {
	if err := w.ExportNow(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup export failed", log.FieldError, err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.ExportIfDirty(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
			}
		}
	}
}
