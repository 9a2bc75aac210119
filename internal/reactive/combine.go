// Package reactive holds the stream combinators the aggregation engine is
// built on.
package reactive

import "context"

// Latest3 is one combined value of three streams.
type Latest3[A, B, C any] struct {
	A A
	B B
	C C
}

// CombineLatest3 emits the latest value of every input once each input has
// produced at least one. Values that arrive together are folded into a
// single emission, and a slow reader only ever sees the newest combination.
//
// The output closes when ctx is done or any input closes.
func CombineLatest3[A, B, C any](ctx context.Context, a <-chan A, b <-chan B, c <-chan C) <-chan Latest3[A, B, C] {
	out := make(chan Latest3[A, B, C], 1)

	go func() {
		defer close(out)

		var (
			cur              Latest3[A, B, C]
			hasA, hasB, hasC bool
		)

		// take applies one value; it returns false once an input is closed
		take := func(block bool) (got, open bool) {
			if block {
				select {
				case v, ok := <-a:
					cur.A, hasA = v, hasA || ok
					return ok, ok
				case v, ok := <-b:
					cur.B, hasB = v, hasB || ok
					return ok, ok
				case v, ok := <-c:
					cur.C, hasC = v, hasC || ok
					return ok, ok
				case <-ctx.Done():
					return false, false
				}
			}
			select {
			case v, ok := <-a:
				cur.A, hasA = v, hasA || ok
				return ok, ok
			case v, ok := <-b:
				cur.B, hasB = v, hasB || ok
				return ok, ok
			case v, ok := <-c:
				cur.C, hasC = v, hasC || ok
				return ok, ok
			case <-ctx.Done():
				return false, false
			default:
				return false, true
			}
		}

		for {
			if _, open := take(true); !open {
				return
			}
			for {
				got, open := take(false)
				if !open {
					return
				}
				if !got {
					break
				}
			}
			if !(hasA && hasB && hasC) {
				continue
			}

			select {
			case out <- cur:
				continue
			default:
			}
			// only this goroutine sends, so the slot is free after the drain
			select {
			case <-out:
			default:
			}
			out <- cur
		}
	}()

	return out
}
