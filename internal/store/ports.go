// Package store defines the persistence contract the finance core depends on.
package store

import (
	"context"
	"errors"
	"fmt"

	"financecalc/internal/core"
)

// Collection names, used in errors and log fields.
const (
	EntriesCollection     = "entries"
	ShopItemsCollection   = "shop_items"
	SoldItemsCollection   = "sold_items"
	HistoryCollection     = "entry_history"
	CreditCardsCollection = "credit_cards"
)

// Ports for persistence adapters.
type (
	// Collection is the record store for one entity type. Implementations
	// make no ordering promise for snapshots.
	Collection[T any] interface {
		// Observe pushes the full collection right away and again after every
		// change. The channel is closed once ctx is done or the store closes.
		// A slow reader only ever sees the latest snapshot.
		Observe(ctx context.Context) (<-chan []T, error)
		Insert(ctx context.Context, v T) (id int64, err error)
		Update(ctx context.Context, v T) error
		// Delete removes the record with v's id. Deleting a missing record
		// is a no-op.
		Delete(ctx context.Context, v T) error
	}

	Store interface {
		Entries() Collection[core.FinanceEntry]
		ShopItems() Collection[core.ShopItem]
		SoldItems() Collection[core.SoldItem]
		History() Collection[core.HistoryEntry]
		CreditCards() Collection[core.CreditCard]
	}

	// SeedStateStore persists the bootstrap flag outside the entity collections.
	SeedStateStore interface {
		LoadSeedState(ctx context.Context) (core.SeedState, error)
		SaveSeedState(ctx context.Context, s core.SeedState) error
	}
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrClosed is returned once the store was torn down, e.g. after logout.
	ErrClosed = errors.New("store closed")
)

// StorageError is the failure surfaced by every store operation.
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap turns err into a StorageError unless it already is one.
func Wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Collection: collection, Err: err}
}

// IsStorage reports whether err carries a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// First reads one snapshot of c and releases the subscription.
func First[T any](ctx context.Context, c Collection[T]) ([]T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := c.Observe(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case snap, ok := <-ch:
		if !ok {
			return nil, &StorageError{Op: "observe", Err: ErrClosed}
		}
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
