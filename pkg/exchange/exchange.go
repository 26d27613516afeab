package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExchangeID identifies one venue.
type ExchangeID string

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Event is one normalized order-book row from a venue. A zero Quantity
// means the venue no longer has resting size at Price on that side.
type Event struct {
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Adapter drives one venue's subscribe/snapshot/update protocol and
// produces normalized events.
//
// Stream emits events in arrival order and blocks only while waiting for
// the next transport message or for the consumer. It returns exactly one
// terminal error (transport failure, protocol violation or decode
// failure), or ctx.Err() on cancellation. It never closes the events
// channel; the caller owns it.
//
// Close releases the underlying transport channel, which also unblocks a
// Stream waiting on a receive.
type Adapter interface {
	Name() ExchangeID
	Stream(ctx context.Context, events chan<- Event) error
	Close() error
}
