package services

import (
	"context"
	"errors"
	"sync"

	"financecalc/internal/core"
	"financecalc/internal/store"
	"financecalc/internal/store/memory"
)

var errBoom = errors.New("disk on fire")

// failingCollection wraps a collection and fails selected operations.
type failingCollection[T any] struct {
	store.Collection[T]

	mu          sync.Mutex
	failInsert  bool
	failRefresh bool // insert commits, then reports a failure
	failUpdate  bool
	failDelete  bool
	deleteLimit int // fail deletes once this many succeeded; 0 disables
	inserts     int
	deletes     int
}

func (c *failingCollection[T]) Insert(ctx context.Context, v T) (int64, error) {
	c.mu.Lock()
	fail := c.failInsert
	c.mu.Unlock()
	if fail {
		return 0, &store.StorageError{Op: "insert", Err: errBoom}
	}
	id, err := c.Collection.Insert(ctx, v)
	if err == nil {
		c.mu.Lock()
		c.inserts++
		refresh := c.failRefresh
		c.mu.Unlock()
		if refresh {
			return id, &store.StorageError{Op: "refresh", Err: errBoom}
		}
	}
	return id, err
}

func (c *failingCollection[T]) Update(ctx context.Context, v T) error {
	c.mu.Lock()
	fail := c.failUpdate
	c.mu.Unlock()
	if fail {
		return &store.StorageError{Op: "update", Err: errBoom}
	}
	return c.Collection.Update(ctx, v)
}

func (c *failingCollection[T]) Delete(ctx context.Context, v T) error {
	c.mu.Lock()
	fail := c.failDelete || (c.deleteLimit > 0 && c.deletes >= c.deleteLimit)
	c.mu.Unlock()
	if fail {
		return &store.StorageError{Op: "delete", Err: errBoom}
	}
	err := c.Collection.Delete(ctx, v)
	if err == nil {
		c.mu.Lock()
		c.deletes++
		c.mu.Unlock()
	}
	return err
}

// testStore is the memory store with every collection wrapped.
type testStore struct {
	*memory.Store
	entries *failingCollection[core.FinanceEntry]
	shop    *failingCollection[core.ShopItem]
	sold    *failingCollection[core.SoldItem]
	history *failingCollection[core.HistoryEntry]
}

func newTestStore() *testStore {
	m := memory.New()
	return &testStore{
		Store:   m,
		entries: &failingCollection[core.FinanceEntry]{Collection: m.Entries()},
		shop:    &failingCollection[core.ShopItem]{Collection: m.ShopItems()},
		sold:    &failingCollection[core.SoldItem]{Collection: m.SoldItems()},
		history: &failingCollection[core.HistoryEntry]{Collection: m.History()},
	}
}

func (s *testStore) Entries() store.Collection[core.FinanceEntry] { return s.entries }
func (s *testStore) ShopItems() store.Collection[core.ShopItem]   { return s.shop }
func (s *testStore) SoldItems() store.Collection[core.SoldItem]   { return s.sold }
func (s *testStore) History() store.Collection[core.HistoryEntry] { return s.history }

type change struct {
	collection string
	op         string
	id         int64
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []change
	err     error
}

func (p *recordingPublisher) PublishChange(_ context.Context, collection, op string, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change{collection, op, id})
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.changes)
}
