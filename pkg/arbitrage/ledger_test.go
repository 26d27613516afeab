package arbitrage

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openhedge/arbitrage/pkg/exchange"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCrossingScanStopsAtBoundary(t *testing.T) {
	l := NewLedger()

	if _, err := l.Sell("venue1", d("90"), d("5")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := l.Sell("venue1", d("100"), d("5")); err != nil {
		t.Fatalf("sell: %v", err)
	}

	crossings, err := l.Buy("venue2", d("95"), d("3"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(crossings) != 1 {
		t.Fatalf("expected 1 crossing, got %d: %+v", len(crossings), crossings)
	}
	c := crossings[0]
	if c.Venue != "venue1" || !c.Price.Equal(d("90")) || !c.Quantity.Equal(d("5")) {
		t.Errorf("unexpected crossing: %+v", c)
	}
}

func TestBuyCrossingsCheapestFirst(t *testing.T) {
	l := NewLedger()

	for _, price := range []string{"80", "70", "90"} {
		if _, err := l.Sell("venue1", d(price), d("1")); err != nil {
			t.Fatalf("sell %s: %v", price, err)
		}
	}

	crossings, err := l.Buy("venue2", d("95"), d("1"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(crossings) != 3 {
		t.Fatalf("expected 3 crossings, got %d", len(crossings))
	}
	for i, want := range []string{"70", "80", "90"} {
		if !crossings[i].Price.Equal(d(want)) {
			t.Errorf("crossing %d: expected price %s, got %s", i, want, crossings[i].Price)
		}
	}
}

func TestSellCrossingsMostGenerousFirst(t *testing.T) {
	l := NewLedger()

	for _, price := range []string{"110", "130", "120"} {
		if _, err := l.Buy("venue1", d(price), d("1")); err != nil {
			t.Fatalf("buy %s: %v", price, err)
		}
	}

	crossings, err := l.Sell("venue2", d("100"), d("1"))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if len(crossings) != 3 {
		t.Fatalf("expected 3 crossings, got %d", len(crossings))
	}
	for i, want := range []string{"130", "120", "110"} {
		if !crossings[i].Price.Equal(d(want)) {
			t.Errorf("crossing %d: expected price %s, got %s", i, want, crossings[i].Price)
		}
	}
}

func TestEqualPriceDoesNotCross(t *testing.T) {
	l := NewLedger()

	if _, err := l.Sell("venue1", d("100"), d("5")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	crossings, err := l.Buy("venue2", d("100"), d("5"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(crossings) != 0 {
		t.Errorf("equal prices must not cross, got %+v", crossings)
	}
}

func TestSelfExchangeExcluded(t *testing.T) {
	l := NewLedger()

	if _, err := l.Sell("venue1", d("90"), d("5")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	crossings, err := l.Buy("venue1", d("95"), d("3"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(crossings) != 0 {
		t.Errorf("crossing against own order reported: %+v", crossings)
	}

	// another venue at the same ask still crosses
	if _, err := l.Sell("venue2", d("90"), d("2")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	crossings, err = l.Buy("venue1", d("95"), d("3"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(crossings) != 1 || crossings[0].Venue != "venue2" {
		t.Errorf("expected single crossing against venue2, got %+v", crossings)
	}
}

func TestZeroQuantityRemoves(t *testing.T) {
	l := NewLedger()

	if _, err := l.Buy("venue1", d("100"), d("2")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := l.Buy("venue1", d("100"), decimal.Zero); err != nil {
		t.Fatalf("first removal should succeed: %v", err)
	}

	_, err := l.Buy("venue1", d("100"), decimal.Zero)
	var needless *NeedlessRemovalError
	if !errors.As(err, &needless) {
		t.Fatalf("second removal should be needless, got %v", err)
	}
	if needless.Venue != "venue1" {
		t.Errorf("expected venue1 in error, got %s", needless.Venue)
	}
}

func TestNeedlessRemovalLeavesLedgerIntact(t *testing.T) {
	l := NewLedger()

	if _, err := l.Buy("venue1", d("100"), d("2")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// venue2 never bid at 100
	if _, err := l.Buy("venue2", d("100"), decimal.Zero); err == nil {
		t.Fatal("expected needless removal error")
	}

	bids, _ := l.Levels()
	if bids != 1 {
		t.Errorf("venue1's bid should survive, got %d levels", bids)
	}
}

func TestLastVenueRemovalDeletesLevel(t *testing.T) {
	l := NewLedger()

	if _, err := l.Buy("venue1", d("100"), d("2")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := l.Buy("venue2", d("100"), d("3")); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if _, err := l.Buy("venue1", d("100"), decimal.Zero); err != nil {
		t.Fatalf("remove venue1: %v", err)
	}
	if bids, _ := l.Levels(); bids != 1 {
		t.Fatalf("level should survive while venue2 remains, got %d", bids)
	}

	if _, err := l.Buy("venue2", d("100"), decimal.Zero); err != nil {
		t.Fatalf("remove venue2: %v", err)
	}
	if bids, _ := l.Levels(); bids != 0 {
		t.Errorf("removing the last venue should delete the level, got %d", bids)
	}
}

func TestSellZeroRemovesFromAsks(t *testing.T) {
	l := NewLedger()

	if _, err := l.Sell("venue1", d("60"), d("1")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := l.Sell("venue1", d("60"), decimal.Zero); err != nil {
		t.Fatalf("zero sell must remove the ask: %v", err)
	}
	if _, asks := l.Levels(); asks != 0 {
		t.Errorf("ask at 60 should be gone, got %d ask levels", asks)
	}
}

func TestSamePriceOverwritesNotSums(t *testing.T) {
	l := NewLedger()

	if _, err := l.Buy("venue1", d("100"), d("5")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := l.Buy("venue1", d("100"), d("7")); err != nil {
		t.Fatalf("buy: %v", err)
	}

	lv, ok := l.bids.Get(&level{price: d("100")})
	if !ok {
		t.Fatal("level at 100 missing")
	}
	if q := lv.venues["venue1"]; !q.Equal(d("7")) {
		t.Errorf("repeated rows must overwrite, expected 7, got %s", q)
	}
}

func TestEveryLevelHasNonZeroVenue(t *testing.T) {
	l := NewLedger()

	calls := []struct {
		side  exchange.Side
		venue exchange.ExchangeID
		price string
		qty   string
	}{
		{exchange.Buy, "venue1", "100", "2"},
		{exchange.Sell, "venue1", "110", "1"},
		{exchange.Buy, "venue2", "100", "3"},
		{exchange.Sell, "venue2", "105", "4"},
		{exchange.Buy, "venue2", "99", "1"},
	}
	for _, c := range calls {
		var err error
		if c.side == exchange.Buy {
			_, err = l.Buy(c.venue, d(c.price), d(c.qty))
		} else {
			_, err = l.Sell(c.venue, d(c.price), d(c.qty))
		}
		if err != nil {
			t.Fatalf("%s %s: %v", c.side, c.price, err)
		}
	}

	check := func(name string, lvs []*level) {
		for _, lv := range lvs {
			if len(lv.venues) == 0 {
				t.Errorf("%s level %s has no venues", name, lv.price)
			}
			for venue, q := range lv.venues {
				if q.IsZero() {
					t.Errorf("%s level %s holds zero quantity for %s", name, lv.price, venue)
				}
			}
		}
	}
	var bids, asks []*level
	l.bids.Ascend(func(lv *level) bool { bids = append(bids, lv); return true })
	l.asks.Ascend(func(lv *level) bool { asks = append(asks, lv); return true })
	check("bid", bids)
	check("ask", asks)
}

func TestCrossingsAreOwned(t *testing.T) {
	l := NewLedger()

	if _, err := l.Sell("venue1", d("90"), d("5")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	crossings, err := l.Buy("venue2", d("95"), d("3"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	// mutating the ledger after the scan must not disturb the result
	if _, err := l.Sell("venue1", d("90"), decimal.Zero); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(crossings) != 1 || !crossings[0].Price.Equal(d("90")) {
		t.Errorf("crossing slice changed under mutation: %+v", crossings)
	}
}
