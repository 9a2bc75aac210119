package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/store"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// codec maps one entity type onto its table. columns excludes id.
type codec[T any] struct {
	table   string
	columns []string
	args    func(T) ([]any, error)
	scan    func(rowScanner) (T, error)
}

// Collection is a store.Collection backed by one SQLite table. Writes and
// the reads that feed observers are serialized by mu, so every observer
// sees snapshots in commit order.
type Collection[T core.Record[T]] struct {
	db     *sql.DB
	codec  codec[T]
	closed *atomic.Bool
	logger *log.Logger

	mu  sync.Mutex
	hub *store.Hub[T]

	selectSQL string
	insertSQL string
	updateSQL string
	deleteSQL string
}

func newCollection[T core.Record[T]](db *sql.DB, c codec[T], closed *atomic.Bool, logger *log.Logger) *Collection[T] {
	cols := strings.Join(c.columns, ", ")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(c.columns)), ", ")
	sets := make([]string, len(c.columns))
	for i, col := range c.columns {
		sets[i] = col + " = ?"
	}

	return &Collection[T]{
		db:        db,
		codec:     c,
		closed:    closed,
		logger:    logger,
		hub:       store.NewHub[T](),
		selectSQL: fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id", cols, c.table),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", c.table, cols, placeholders),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", c.table, strings.Join(sets, ", ")),
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.table),
	}
}

func (c *Collection[T]) Observe(ctx context.Context) (<-chan []T, error) {
	if err := c.check("observe"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.list(ctx)
	if err != nil {
		return nil, store.Wrap("observe", c.codec.table, err)
	}
	ch, err := c.hub.Subscribe(ctx, snap)
	if err != nil {
		return nil, store.Wrap("observe", c.codec.table, err)
	}
	return ch, nil
}

func (c *Collection[T]) Insert(ctx context.Context, v T) (int64, error) {
	if err := c.check("insert"); err != nil {
		return 0, err
	}
	args, err := c.codec.args(v)
	if err != nil {
		return 0, store.Wrap("insert", c.codec.table, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, c.insertSQL, args...)
	if err != nil {
		return 0, store.Wrap("insert", c.codec.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, store.Wrap("insert", c.codec.table, err)
	}
	c.logger.DebugContext(ctx, "Record inserted", log.NewFields().WithRecord(c.codec.table, id).ToSlice()...)
	return id, c.refresh(ctx)
}

func (c *Collection[T]) Update(ctx context.Context, v T) error {
	if err := c.check("update"); err != nil {
		return err
	}
	args, err := c.codec.args(v)
	if err != nil {
		return store.Wrap("update", c.codec.table, err)
	}
	args = append(args, v.Key())

	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, c.updateSQL, args...)
	if err != nil {
		return store.Wrap("update", c.codec.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("update", c.codec.table, err)
	}
	if n == 0 {
		return &store.StorageError{Op: "update", Collection: c.codec.table, Err: store.ErrNotFound}
	}
	c.logger.DebugContext(ctx, "Record updated", log.NewFields().WithRecord(c.codec.table, v.Key()).ToSlice()...)
	return c.refresh(ctx)
}

func (c *Collection[T]) Delete(ctx context.Context, v T) error {
	if err := c.check("delete"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, c.deleteSQL, v.Key())
	if err != nil {
		return store.Wrap("delete", c.codec.table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}
	c.logger.DebugContext(ctx, "Record deleted", log.NewFields().WithRecord(c.codec.table, v.Key()).ToSlice()...)
	return c.refresh(ctx)
}

// refresh reloads the table and publishes it. Callers hold mu. The write
// before it is committed, so a cancelled caller must not stop the snapshot.
func (c *Collection[T]) refresh(ctx context.Context) error {
	snap, err := c.list(context.WithoutCancel(ctx))
	if err != nil {
		return store.Wrap("refresh", c.codec.table, err)
	}
	c.hub.Publish(snap)
	return nil
}

func (c *Collection[T]) list(ctx context.Context) ([]T, error) {
	rows, err := c.db.QueryContext(ctx, c.selectSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := c.codec.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (c *Collection[T]) check(op string) error {
	if c.closed.Load() {
		return &store.StorageError{Op: op, Collection: c.codec.table, Err: store.ErrClosed}
	}
	return nil
}
