// Package arbitrage keeps a consolidated, per-venue order ledger and
// detects price crossings between venues.
package arbitrage

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/openhedge/arbitrage/pkg/exchange"
)

const btreeDegree = 16

// Crossing is one opposite-side entry whose price is crossed by an
// incoming order. The slice returned by Buy/Sell is owned by the caller;
// the ledger can be mutated freely afterwards.
type Crossing struct {
	Venue    exchange.ExchangeID
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// level holds every venue's resting quantity at one price. A level
// exists iff at least one venue has non-zero quantity there.
type level struct {
	price  decimal.Decimal
	venues map[exchange.ExchangeID]decimal.Decimal
}

func levelLess(a, b *level) bool {
	return a.price.LessThan(b.price)
}

// Ledger tracks bids and asks across venues. It has no internal locking:
// it is owned and mutated by a single loop, and the crossing scans run
// inside the mutating call.
type Ledger struct {
	bids *btree.BTreeG[*level]
	asks *btree.BTreeG[*level]
}

func NewLedger() *Ledger {
	return &Ledger{
		bids: btree.NewG(btreeDegree, levelLess),
		asks: btree.NewG(btreeDegree, levelLess),
	}
}

// Buy records that venue bids quantity at price and returns every ask
// strictly below price from other venues, cheapest first. A zero
// quantity removes the venue's bid at that price instead; removing an
// entry that was never recorded returns a NeedlessRemovalError, which
// leaves the ledger intact.
func (l *Ledger) Buy(venue exchange.ExchangeID, price, quantity decimal.Decimal) ([]Crossing, error) {
	if quantity.IsZero() {
		return nil, remove(l.bids, price, venue)
	}
	upsert(l.bids, price, venue, quantity)

	var crossings []Crossing
	l.asks.AscendLessThan(&level{price: price}, func(lv *level) bool {
		crossings = appendLevel(crossings, lv, venue)
		return true
	})
	return crossings, nil
}

// Sell records that venue asks quantity at price and returns every bid
// strictly above price from other venues, most generous first. Zero
// quantity removes the venue's ask at that price.
func (l *Ledger) Sell(venue exchange.ExchangeID, price, quantity decimal.Decimal) ([]Crossing, error) {
	if quantity.IsZero() {
		return nil, remove(l.asks, price, venue)
	}
	upsert(l.asks, price, venue, quantity)

	var crossings []Crossing
	l.bids.DescendGreaterThan(&level{price: price}, func(lv *level) bool {
		crossings = appendLevel(crossings, lv, venue)
		return true
	})
	return crossings, nil
}

// Levels reports the number of distinct bid and ask price levels.
func (l *Ledger) Levels() (bids, asks int) {
	return l.bids.Len(), l.asks.Len()
}

// appendLevel collects a level's entries, excluding the incoming venue:
// crossing your own order is not an opportunity.
func appendLevel(crossings []Crossing, lv *level, exclude exchange.ExchangeID) []Crossing {
	for venue, quantity := range lv.venues {
		if venue == exclude {
			continue
		}
		crossings = append(crossings, Crossing{Venue: venue, Price: lv.price, Quantity: quantity})
	}
	return crossings
}

// upsert is last-write-wins per (price, venue); repeated rows at the
// same price within one snapshot overwrite rather than sum.
func upsert(side *btree.BTreeG[*level], price decimal.Decimal, venue exchange.ExchangeID, quantity decimal.Decimal) {
	lv, ok := side.Get(&level{price: price})
	if !ok {
		lv = &level{price: price, venues: make(map[exchange.ExchangeID]decimal.Decimal, 2)}
		side.ReplaceOrInsert(lv)
	}
	lv.venues[venue] = quantity
}

func remove(side *btree.BTreeG[*level], price decimal.Decimal, venue exchange.ExchangeID) error {
	lv, ok := side.Get(&level{price: price})
	if !ok {
		return &NeedlessRemovalError{Venue: venue}
	}
	if _, ok := lv.venues[venue]; !ok {
		return &NeedlessRemovalError{Venue: venue}
	}
	delete(lv.venues, venue)
	if len(lv.venues) == 0 {
		side.Delete(lv)
	}
	return nil
}
