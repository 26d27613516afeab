package arbitrage

import (
	"fmt"

	"github.com/openhedge/arbitrage/pkg/exchange"
)

// NeedlessRemovalError signals a zero-quantity event for a (price, venue)
// pair the ledger never held. The ledger is not corrupted, but a prior
// update from that venue may have been lost. Never fatal.
type NeedlessRemovalError struct {
	Venue exchange.ExchangeID
}

func (e *NeedlessRemovalError) Error() string {
	return fmt.Sprintf("%s needlessly reported an empty price level", e.Venue)
}
