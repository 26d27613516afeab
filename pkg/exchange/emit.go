package exchange

import (
	"context"

	"github.com/gammazero/deque"
)

// Emit drains the pending queue into out in FIFO order. Adapters decode
// one wire message at a time into pending, then flush it fully before
// the next receive, so at most one wire message is ever in flight.
func Emit(ctx context.Context, pending *deque.Deque[Event], out chan<- Event) error {
	for pending.Len() > 0 {
		ev := pending.PopFront()
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
