package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"financecalc/internal/core"
	"financecalc/internal/store"
)

// Store keeps every collection in process memory.
type Store struct {
	closed atomic.Bool

	entries     *Collection[core.FinanceEntry]
	shopItems   *Collection[core.ShopItem]
	soldItems   *Collection[core.SoldItem]
	history     *Collection[core.HistoryEntry]
	creditCards *Collection[core.CreditCard]

	seedMu sync.Mutex
	seed   core.SeedState
}

// Ensure interface conformance
var (
	_ store.Store          = (*Store)(nil)
	_ store.SeedStateStore = (*Store)(nil)
)

func New() *Store {
	s := &Store{}
	s.entries = newCollection[core.FinanceEntry](store.EntriesCollection, &s.closed)
	s.shopItems = newCollection[core.ShopItem](store.ShopItemsCollection, &s.closed)
	s.soldItems = newCollection[core.SoldItem](store.SoldItemsCollection, &s.closed)
	s.history = newCollection[core.HistoryEntry](store.HistoryCollection, &s.closed)
	s.creditCards = newCollection[core.CreditCard](store.CreditCardsCollection, &s.closed)
	return s
}

func (s *Store) Entries() store.Collection[core.FinanceEntry]   { return s.entries }
func (s *Store) ShopItems() store.Collection[core.ShopItem]     { return s.shopItems }
func (s *Store) SoldItems() store.Collection[core.SoldItem]     { return s.soldItems }
func (s *Store) History() store.Collection[core.HistoryEntry]   { return s.history }
func (s *Store) CreditCards() store.Collection[core.CreditCard] { return s.creditCards }

func (s *Store) LoadSeedState(_ context.Context) (core.SeedState, error) {
	if s.closed.Load() {
		return core.SeedState{}, &store.StorageError{Op: "load", Collection: "seed_state", Err: store.ErrClosed}
	}
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	return s.seed, nil
}

func (s *Store) SaveSeedState(_ context.Context, st core.SeedState) error {
	if s.closed.Load() {
		return &store.StorageError{Op: "save", Collection: "seed_state", Err: store.ErrClosed}
	}
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	s.seed = st
	return nil
}

// Close ends every subscription; later operations fail with store.ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.entries.hub.Close()
	s.shopItems.hub.Close()
	s.soldItems.hub.Close()
	s.history.hub.Close()
	s.creditCards.hub.Close()
	return nil
}

// Collection is an in-memory store.Collection. Records keep insertion order.
type Collection[T core.Record[T]] struct {
	name   string
	closed *atomic.Bool

	mu     sync.Mutex
	nextID int64
	items  []T
	hub    *store.Hub[T]
}

func newCollection[T core.Record[T]](name string, closed *atomic.Bool) *Collection[T] {
	return &Collection[T]{name: name, closed: closed, hub: store.NewHub[T]()}
}

func (c *Collection[T]) Observe(ctx context.Context) (<-chan []T, error) {
	if err := c.check("observe"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.hub.Subscribe(ctx, c.snapshot())
	if err != nil {
		return nil, store.Wrap("observe", c.name, err)
	}
	return ch, nil
}

func (c *Collection[T]) Insert(ctx context.Context, v T) (int64, error) {
	if err := c.check("insert"); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, store.Wrap("insert", c.name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.items = append(c.items, v.WithKey(c.nextID))
	c.hub.Publish(c.snapshot())
	return c.nextID, nil
}

func (c *Collection[T]) Update(ctx context.Context, v T) error {
	if err := c.check("update"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return store.Wrap("update", c.name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(v.Key())
	if i < 0 {
		return &store.StorageError{Op: "update", Collection: c.name, Err: store.ErrNotFound}
	}
	c.items[i] = v.WithKey(v.Key())
	c.hub.Publish(c.snapshot())
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, v T) error {
	if err := c.check("delete"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return store.Wrap("delete", c.name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(v.Key())
	if i < 0 {
		return nil
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.hub.Publish(c.snapshot())
	return nil
}

// Len returns the number of stored records.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Observers returns the number of live subscriptions.
func (c *Collection[T]) Observers() int {
	return c.hub.Observers()
}

func (c *Collection[T]) check(op string) error {
	if c.closed.Load() {
		return &store.StorageError{Op: op, Collection: c.name, Err: store.ErrClosed}
	}
	return nil
}

func (c *Collection[T]) indexOf(id int64) int {
	for i, it := range c.items {
		if it.Key() == id {
			return i
		}
	}
	return -1
}

// snapshot copies the records so observers cannot alter stored state.
func (c *Collection[T]) snapshot() []T {
	out := make([]T, len(c.items))
	for i, it := range c.items {
		out[i] = it.WithKey(it.Key())
	}
	return out
}
