// Package engine keeps the finance summary current. It observes the entry,
// shop item and sold item collections, and recomputes the whole summary
// from the latest snapshot of all three whenever any of them changes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/reactive"
	"financecalc/internal/store"
)

var ErrNotRunning = errors.New("engine is not running")

type Engine struct {
	store  store.Store
	now    func() time.Time
	logger *log.Logger

	latest atomic.Pointer[core.Summary]

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	ready    chan struct{}
	watchers map[int]chan core.Summary
	nextID   int
}

// New creates an engine over st. A nil now uses time.Now.
func New(st store.Store, logger *log.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		store:    st,
		now:      now,
		logger:   logger.WithComponent(log.ComponentEngine),
		ready:    make(chan struct{}),
		watchers: make(map[int]chan core.Summary),
	}
}

// Start subscribes to the store. Subscriptions live until Close is called
// or ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("engine is already running")
	}
	if e.doneCh != nil {
		select {
		case <-e.doneCh:
		default:
			return fmt.Errorf("engine is still stopping")
		}
	}

	subCtx, cancel := context.WithCancel(ctx)
	entries, err := e.store.Entries().Observe(subCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("observe entries: %w", err)
	}
	shop, err := e.store.ShopItems().Observe(subCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("observe shop items: %w", err)
	}
	sold, err := e.store.SoldItems().Observe(subCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("observe sold items: %w", err)
	}

	e.running = true
	e.cancel = cancel
	e.doneCh = make(chan struct{})

	go e.run(subCtx, e.doneCh, reactive.CombineLatest3(subCtx, entries, shop, sold))

	e.logger.InfoContext(ctx, "Engine started")
	return nil
}

func (e *Engine) run(ctx context.Context, done chan struct{}, snapshots <-chan reactive.Latest3[[]core.FinanceEntry, []core.ShopItem, []core.SoldItem]) {
	defer close(done)
	defer e.stopped()

	for snap := range snapshots {
		s := core.Summarize(core.Snapshot{
			Entries:   snap.A,
			ShopItems: snap.B,
			SoldItems: snap.C,
		}, e.now())
		e.publish(s)

		e.logger.DebugContext(ctx, "Summary recomputed",
			log.FieldBalance, s.Balance.StringFixed(2),
			log.FieldCount, len(snap.A))
	}
	e.logger.InfoContext(ctx, "Engine stopped")
}

func (e *Engine) publish(s core.Summary) {
	e.latest.Store(&s)

	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ready:
	default:
		close(e.ready)
	}
	for _, ch := range e.watchers {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// stopped runs when the recompute loop exits, either through Close or
// because the store went away. The last summary is dropped so nobody serves
// aggregates that no longer follow the store.
func (e *Engine) stopped() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.cancel()
	e.latest.Store(nil)
	select {
	case <-e.ready:
		e.ready = make(chan struct{})
	default:
	}
	for id, ch := range e.watchers {
		delete(e.watchers, id)
		close(ch)
	}
}

// Latest returns the most recent summary. ok is false until the first
// recompute finished and again once the engine stopped.
func (e *Engine) Latest() (s core.Summary, ok bool) {
	p := e.latest.Load()
	if p == nil {
		return core.Summary{}, false
	}
	return *p, true
}

// WaitReady blocks until the first summary is available.
func (e *Engine) WaitReady(ctx context.Context) error {
	e.mu.Lock()
	ready := e.ready
	e.mu.Unlock()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch streams summaries, starting with the current one if any. A slow
// reader only sees the newest summary. The channel closes when ctx is done
// or the engine stops.
func (e *Engine) Watch(ctx context.Context) (<-chan core.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil, ErrNotRunning
	}
	select {
	case <-e.doneCh:
		return nil, ErrNotRunning
	default:
	}

	ch := make(chan core.Summary, 1)
	if p := e.latest.Load(); p != nil {
		ch <- *p
	}
	id := e.nextID
	e.nextID++
	e.watchers[id] = ch
	done := e.doneCh

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.watchers[id]; ok {
			delete(e.watchers, id)
			close(c)
		}
	}()
	return ch, nil
}

// Close releases every store subscription and waits for the recompute
// loop to exit.
func (e *Engine) Close() error {
	e.mu.Lock()
	if !e.running {
		done := e.doneCh
		e.mu.Unlock()
		if done != nil {
			<-done
		}
		return nil
	}
	e.running = false
	cancel, done := e.cancel, e.doneCh
	e.mu.Unlock()

	cancel()
	<-done
	return nil
}
