package store

import (
	"context"
	"sync"
)

// Hub fans snapshots out to observers. Each observer has a one slot buffer
// that always holds the newest snapshot, so Publish never blocks.
//
// Callers serialize Publish with the reads that feed Subscribe so an
// observer never starts from a snapshot older than one already published.
type Hub[T any] struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan []T
	closed bool
	done   chan struct{}
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]chan []T), done: make(chan struct{})}
}

// Subscribe registers an observer primed with initial. The channel closes
// when ctx is done or the hub closes.
func (h *Hub[T]) Subscribe(ctx context.Context, initial []T) (<-chan []T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	ch := make(chan []T, 1)
	ch <- initial
	id := h.next
	h.next++
	h.subs[id] = ch

	go func() {
		select {
		case <-ctx.Done():
			h.unsubscribe(id)
		case <-h.done:
		}
	}()
	return ch, nil
}

func (h *Hub[T]) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish hands snapshot to every observer, replacing any snapshot they
// have not read yet.
func (h *Hub[T]) Publish(snapshot []T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// drop the stale snapshot; only Publish sends, so the slot is free afterwards
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

// Observers returns the number of live subscriptions.
func (h *Hub[T]) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later calls to Subscribe fail with ErrClosed.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
