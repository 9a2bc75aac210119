package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/store"

	"github.com/shopspring/decimal"
)

// ChangePublisher announces committed writes to other processes.
type ChangePublisher interface {
	PublishChange(ctx context.Context, collection, op string, id int64) error
}

// FinanceService runs every write against the store. Aggregates are not
// touched here: the engine recomputes them from the snapshots the store
// emits after each write.
type FinanceService struct {
	store     store.Store
	publisher ChangePublisher
	logger    *log.Logger
	now       func() time.Time
}

// NewFinanceService creates the service. publisher may be nil; a nil now
// uses time.Now.
func NewFinanceService(st store.Store, publisher ChangePublisher, logger *log.Logger, now func() time.Time) *FinanceService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &FinanceService{
		store:     st,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentFinance),
		now:       now,
	}
}

// AddEntry stores a new entry. Split bookings are stored with their sum.
func (s *FinanceService) AddEntry(ctx context.Context, e core.FinanceEntry) (int64, error) {
	e = e.Normalized()
	if err := e.Validate(); err != nil {
		return 0, s.failed(ctx, store.EntriesCollection, log.OpCreate, 0, err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}

	id, err := s.store.Entries().Insert(ctx, e)
	if err != nil {
		return 0, s.failed(ctx, store.EntriesCollection, log.OpCreate, id, fmt.Errorf("add entry: %w", err))
	}
	s.logger.InfoContext(ctx, "Entry added",
		log.NewFields().WithRecord(store.EntriesCollection, id).WithOperation(log.OpCreate).WithEntry(e.Name, string(e.Type), e.Amount).ToSlice()...)
	s.publish(ctx, store.EntriesCollection, log.OpCreate, id)
	return id, nil
}

// UpdateEntry stores entry. When old is given and the amount changed, the
// change is appended to the history before the entry itself is written.
func (s *FinanceService) UpdateEntry(ctx context.Context, entry core.FinanceEntry, old *core.FinanceEntry) error {
	entry = entry.Normalized()
	if err := entry.Validate(); err != nil {
		return s.failed(ctx, store.EntriesCollection, log.OpUpdate, entry.ID, err)
	}

	if old != nil && !old.EffectiveAmount().Equal(entry.Amount) {
		h := core.HistoryEntry{
			EntryID:   entry.ID,
			OldAmount: old.EffectiveAmount(),
			NewAmount: entry.Amount,
			Timestamp: s.now(),
		}
		hid, err := s.store.History().Insert(ctx, h)
		if err != nil {
			return s.failed(ctx, store.HistoryCollection, log.OpCreate, entry.ID,
				fmt.Errorf("record history of entry %d: %w", entry.ID, err))
		}
		s.publish(ctx, store.HistoryCollection, log.OpCreate, hid)
	}

	if err := s.store.Entries().Update(ctx, entry); err != nil {
		return s.failed(ctx, store.EntriesCollection, log.OpUpdate, entry.ID, fmt.Errorf("update entry %d: %w", entry.ID, err))
	}
	s.logger.InfoContext(ctx, "Entry updated",
		log.NewFields().WithRecord(store.EntriesCollection, entry.ID).WithOperation(log.OpUpdate).WithEntry(entry.Name, string(entry.Type), entry.Amount).ToSlice()...)
	s.publish(ctx, store.EntriesCollection, log.OpUpdate, entry.ID)
	return nil
}

// DeleteEntry removes the entry. Its history stays and later resolves to
// core.DeletedEntryLabel.
func (s *FinanceService) DeleteEntry(ctx context.Context, e core.FinanceEntry) error {
	if err := s.store.Entries().Delete(ctx, e); err != nil {
		return s.failed(ctx, store.EntriesCollection, log.OpDelete, e.ID, fmt.Errorf("delete entry %d: %w", e.ID, err))
	}
	s.logger.InfoContext(ctx, "Entry deleted",
		log.NewFields().WithRecord(store.EntriesCollection, e.ID).WithOperation(log.OpDelete).ToSlice()...)
	s.publish(ctx, store.EntriesCollection, log.OpDelete, e.ID)
	return nil
}

// Entry looks up one entry by id.
func (s *FinanceService) Entry(ctx context.Context, id int64) (core.FinanceEntry, error) {
	return find(ctx, s.store.Entries(), store.EntriesCollection, id)
}

func (s *FinanceService) AddShopItem(ctx context.Context, it core.ShopItem) (int64, error) {
	if strings.TrimSpace(it.Category) == "" {
		it.Category = core.DefaultShopCategory
	}
	if err := it.Validate(); err != nil {
		return 0, s.failed(ctx, store.ShopItemsCollection, log.OpCreate, 0, err)
	}
	id, err := s.store.ShopItems().Insert(ctx, it)
	if err != nil {
		return 0, s.failed(ctx, store.ShopItemsCollection, log.OpCreate, id, fmt.Errorf("add shop item: %w", err))
	}
	s.logger.InfoContext(ctx, "Shop item added",
		log.NewFields().WithRecord(store.ShopItemsCollection, id).WithOperation(log.OpCreate).ToSlice()...)
	s.publish(ctx, store.ShopItemsCollection, log.OpCreate, id)
	return id, nil
}

func (s *FinanceService) UpdateShopItem(ctx context.Context, it core.ShopItem) error {
	if strings.TrimSpace(it.Category) == "" {
		it.Category = core.DefaultShopCategory
	}
	if err := it.Validate(); err != nil {
		return s.failed(ctx, store.ShopItemsCollection, log.OpUpdate, it.ID, err)
	}
	if err := s.store.ShopItems().Update(ctx, it); err != nil {
		return s.failed(ctx, store.ShopItemsCollection, log.OpUpdate, it.ID, fmt.Errorf("update shop item %d: %w", it.ID, err))
	}
	s.logger.InfoContext(ctx, "Shop item updated",
		log.NewFields().WithRecord(store.ShopItemsCollection, it.ID).WithOperation(log.OpUpdate).ToSlice()...)
	s.publish(ctx, store.ShopItemsCollection, log.OpUpdate, it.ID)
	return nil
}

func (s *FinanceService) DeleteShopItem(ctx context.Context, it core.ShopItem) error {
	if err := s.store.ShopItems().Delete(ctx, it); err != nil {
		return s.failed(ctx, store.ShopItemsCollection, log.OpDelete, it.ID, fmt.Errorf("delete shop item %d: %w", it.ID, err))
	}
	s.logger.InfoContext(ctx, "Shop item deleted",
		log.NewFields().WithRecord(store.ShopItemsCollection, it.ID).WithOperation(log.OpDelete).ToSlice()...)
	s.publish(ctx, store.ShopItemsCollection, log.OpDelete, it.ID)
	return nil
}

func (s *FinanceService) ShopItem(ctx context.Context, id int64) (core.ShopItem, error) {
	return find(ctx, s.store.ShopItems(), store.ShopItemsCollection, id)
}

// SellItem books the sale of one unit of it at sellPrice and takes that unit
// out of stock. The two writes are not atomic: if adjusting the stock fails
// the sale stays booked and the error is returned so the caller can retry
// the stock change.
func (s *FinanceService) SellItem(ctx context.Context, it core.ShopItem, sellPrice decimal.Decimal) (core.SoldItem, error) {
	if sellPrice.IsNegative() {
		return core.SoldItem{}, s.failed(ctx, store.ShopItemsCollection, log.OpSell, it.ID,
			&core.ValidationError{Field: "sellPrice", Err: core.ErrInvalidSellPrice})
	}

	now := s.now()
	sold := core.SoldItem{
		Name:      it.Name,
		Profit:    sellPrice.Sub(it.PurchasePrice),
		Timestamp: now,
		Month:     int(now.Month()),
		Year:      now.Year(),
	}
	id, err := s.store.SoldItems().Insert(ctx, sold)
	if err != nil {
		if id == 0 {
			return core.SoldItem{}, s.failed(ctx, store.SoldItemsCollection, log.OpSell, it.ID,
				fmt.Errorf("record sale of %q: %w", it.Name, err))
		}
		// the row is committed; report the booked sale and leave the stock alone
		sold.ID = id
		s.publish(ctx, store.SoldItemsCollection, log.OpCreate, id)
		return sold, s.failed(ctx, store.SoldItemsCollection, log.OpSell, id,
			fmt.Errorf("sale %d recorded but stock of shop item %d not adjusted: %w", id, it.ID, err))
	}
	sold.ID = id
	s.publish(ctx, store.SoldItemsCollection, log.OpCreate, id)

	op := log.OpDelete
	if it.Count > 1 {
		it.Count--
		op = log.OpUpdate
		err = s.store.ShopItems().Update(ctx, it)
	} else {
		err = s.store.ShopItems().Delete(ctx, it)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Sale recorded but stock not adjusted",
			log.NewFields().WithRecord(store.ShopItemsCollection, it.ID).WithOperation(log.OpSell).WithError(err).ToSlice()...)
		return sold, fmt.Errorf("sale %d recorded but stock of shop item %d not adjusted: %w", id, it.ID, err)
	}
	s.publish(ctx, store.ShopItemsCollection, op, it.ID)

	fields := log.NewFields().WithRecord(store.SoldItemsCollection, id).WithOperation(log.OpSell).ToSlice()
	s.logger.InfoContext(ctx, "Item sold",
		append(fields, log.FieldName, it.Name, log.FieldAmount, sold.Profit.StringFixed(2))...)
	return sold, nil
}

// ManualAddProfit books a profit that is not linked to any shop item.
func (s *FinanceService) ManualAddProfit(ctx context.Context, profit decimal.Decimal, month, year int, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		name = core.ManualProfitName
	}
	sold := core.SoldItem{
		Name:      name,
		Profit:    profit,
		Timestamp: s.now(),
		Month:     month,
		Year:      year,
	}
	if err := sold.Validate(); err != nil {
		return 0, s.failed(ctx, store.SoldItemsCollection, log.OpCreate, 0, err)
	}
	id, err := s.store.SoldItems().Insert(ctx, sold)
	if err != nil {
		return 0, s.failed(ctx, store.SoldItemsCollection, log.OpCreate, id, fmt.Errorf("add profit: %w", err))
	}
	s.logger.InfoContext(ctx, "Profit added",
		log.NewFields().WithRecord(store.SoldItemsCollection, id).WithOperation(log.OpCreate).ToSlice()...)
	s.publish(ctx, store.SoldItemsCollection, log.OpCreate, id)
	return id, nil
}

// ResetSoldHistory deletes every sold item, one write per record. A failure
// stops the loop and leaves the rest in place; calling it again deletes what
// remains. It returns how many records were deleted.
func (s *FinanceService) ResetSoldHistory(ctx context.Context) (int, error) {
	items, err := store.First(ctx, s.store.SoldItems())
	if err != nil {
		return 0, s.failed(ctx, store.SoldItemsCollection, log.OpReset, 0, fmt.Errorf("read sold items: %w", err))
	}

	deleted := 0
	for _, it := range items {
		if err := s.store.SoldItems().Delete(ctx, it); err != nil {
			return deleted, s.failed(ctx, store.SoldItemsCollection, log.OpReset, it.ID,
				fmt.Errorf("reset sold history after %d of %d: %w", deleted, len(items), err))
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "Sold history reset",
			log.FieldCollection, store.SoldItemsCollection, log.FieldOperation, log.OpReset, log.FieldCount, deleted)
		s.publish(ctx, store.SoldItemsCollection, log.OpReset, 0)
	}
	return deleted, nil
}

func (s *FinanceService) UpdateSoldItem(ctx context.Context, it core.SoldItem) error {
	if err := it.Validate(); err != nil {
		return s.failed(ctx, store.SoldItemsCollection, log.OpUpdate, it.ID, err)
	}
	if err := s.store.SoldItems().Update(ctx, it); err != nil {
		return s.failed(ctx, store.SoldItemsCollection, log.OpUpdate, it.ID, fmt.Errorf("update sold item %d: %w", it.ID, err))
	}
	s.logger.InfoContext(ctx, "Sold item updated",
		log.NewFields().WithRecord(store.SoldItemsCollection, it.ID).WithOperation(log.OpUpdate).ToSlice()...)
	s.publish(ctx, store.SoldItemsCollection, log.OpUpdate, it.ID)
	return nil
}

func (s *FinanceService) DeleteSoldItem(ctx context.Context, it core.SoldItem) error {
	if err := s.store.SoldItems().Delete(ctx, it); err != nil {
		return s.failed(ctx, store.SoldItemsCollection, log.OpDelete, it.ID, fmt.Errorf("delete sold item %d: %w", it.ID, err))
	}
	s.logger.InfoContext(ctx, "Sold item deleted",
		log.NewFields().WithRecord(store.SoldItemsCollection, it.ID).WithOperation(log.OpDelete).ToSlice()...)
	s.publish(ctx, store.SoldItemsCollection, log.OpDelete, it.ID)
	return nil
}

func (s *FinanceService) SoldItem(ctx context.Context, id int64) (core.SoldItem, error) {
	return find(ctx, s.store.SoldItems(), store.SoldItemsCollection, id)
}

// AddCreditCard stores a card. Its balance never enters the aggregates.
func (s *FinanceService) AddCreditCard(ctx context.Context, c core.CreditCard) (int64, error) {
	if strings.TrimSpace(c.CardType) == "" {
		c.CardType = core.DefaultCardType
	}
	if err := c.Validate(); err != nil {
		return 0, s.failed(ctx, store.CreditCardsCollection, log.OpCreate, 0, err)
	}
	id, err := s.store.CreditCards().Insert(ctx, c)
	if err != nil {
		return 0, s.failed(ctx, store.CreditCardsCollection, log.OpCreate, id, fmt.Errorf("add credit card: %w", err))
	}
	s.logger.InfoContext(ctx, "Credit card added",
		log.NewFields().WithRecord(store.CreditCardsCollection, id).WithOperation(log.OpCreate).ToSlice()...)
	s.publish(ctx, store.CreditCardsCollection, log.OpCreate, id)
	return id, nil
}

func (s *FinanceService) DeleteCreditCard(ctx context.Context, c core.CreditCard) error {
	if err := s.store.CreditCards().Delete(ctx, c); err != nil {
		return s.failed(ctx, store.CreditCardsCollection, log.OpDelete, c.ID, fmt.Errorf("delete credit card %d: %w", c.ID, err))
	}
	s.logger.InfoContext(ctx, "Credit card deleted",
		log.NewFields().WithRecord(store.CreditCardsCollection, c.ID).WithOperation(log.OpDelete).ToSlice()...)
	s.publish(ctx, store.CreditCardsCollection, log.OpDelete, c.ID)
	return nil
}

func (s *FinanceService) CreditCards(ctx context.Context) ([]core.CreditCard, error) {
	cards, err := store.First(ctx, s.store.CreditCards())
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	return cards, nil
}

// HistoryFor returns the amount changes of one entry, newest first.
func (s *FinanceService) HistoryFor(ctx context.Context, entryID int64) ([]core.HistoryEntry, error) {
	all, err := store.First(ctx, s.store.History())
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return core.HistoryFor(all, entryID), nil
}

// EntryHistory is HistoryFor with the entry name resolved.
func (s *FinanceService) EntryHistory(ctx context.Context, entryID int64) ([]core.HistoryLine, error) {
	history, err := s.HistoryFor(ctx, entryID)
	if err != nil {
		return nil, err
	}
	entries, err := store.First(ctx, s.store.Entries())
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return core.DescribeHistory(history, entries), nil
}

// failed logs err for the operation and returns it. Rejected input logs at
// warn; everything else at error.
func (s *FinanceService) failed(ctx context.Context, collection, op string, id int64, err error) error {
	fields := log.NewFields().WithRecord(collection, id).WithOperation(op).WithError(err).ToSlice()
	if core.IsValidation(err) {
		s.logger.WarnContext(ctx, "Operation rejected", fields...)
	} else {
		s.logger.ErrorContext(ctx, "Operation failed", fields...)
	}
	return err
}

func (s *FinanceService) publish(ctx context.Context, collection, op string, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, collection, op, id); err != nil {
		// the write is committed; a lost notice only delays the export
		s.logger.WarnContext(ctx, "Failed to publish change",
			log.NewFields().WithRecord(collection, id).WithOperation(op).WithError(err).ToSlice()...)
	}
}

func find[T core.Record[T]](ctx context.Context, c store.Collection[T], name string, id int64) (T, error) {
	var zero T
	all, err := store.First(ctx, c)
	if err != nil {
		return zero, err
	}
	for _, v := range all {
		if v.Key() == id {
			return v, nil
		}
	}
	return zero, &store.StorageError{Op: "find", Collection: name, Err: store.ErrNotFound}
}
