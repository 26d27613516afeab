// Package orchestrator merges venue event streams into the arbitrage
// ledger and reports crossings.
package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openhedge/arbitrage/pkg/arbitrage"
	"github.com/openhedge/arbitrage/pkg/exchange"
	"github.com/openhedge/arbitrage/pkg/logging"
	"github.com/openhedge/arbitrage/pkg/metrics"
)

// Policy decides what happens when one venue's stream terminates.
type Policy string

const (
	// FailFast stops everything on the first terminal error.
	FailFast Policy = "fail_fast"
	// Continue keeps consuming surviving streams until all end.
	Continue Policy = "continue"
)

// ErrAllSourcesEnded is returned when every venue stream has terminated.
var ErrAllSourcesEnded = errors.New("orchestrator: all sources ended")

// Opportunity is one reported crossing. Only the best-priced counter
// order is consulted; deeper levels behind it are not walked to fill a
// larger incoming quantity.
type Opportunity struct {
	TakerVenue exchange.ExchangeID
	MakerVenue exchange.ExchangeID
	Spread     decimal.Decimal
	Matched    decimal.Decimal
	Balance    decimal.Decimal
}

type Option func(*Orchestrator)

// WithOpportunityHook registers a callback invoked for every reported
// opportunity, after logging and accounting.
func WithOpportunityHook(fn func(Opportunity)) Option {
	return func(o *Orchestrator) { o.onOpportunity = fn }
}

// Orchestrator owns the ledger exclusively; all mutation happens on its
// single Run loop.
type Orchestrator struct {
	log           *logging.Logger
	policy        Policy
	ledger        *arbitrage.Ledger
	balance       decimal.Decimal
	onOpportunity func(Opportunity)
}

func New(log *logging.Logger, policy Policy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:    log,
		policy: policy,
		ledger: arbitrage.NewLedger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Balance reports the accumulated spread x matched quantity.
func (o *Orchestrator) Balance() decimal.Decimal { return o.balance }

type tagged struct {
	venue exchange.ExchangeID
	ev    exchange.Event
}

type termination struct {
	venue exchange.ExchangeID
	err   error
}

// Run drives all adapters until the context is cancelled, every stream
// ends, or (under FailFast) the first stream fails. Whichever source has
// an event ready wins the merge; there is no source priority and no
// polling. Adapters are closed before Run returns.
func (o *Orchestrator) Run(ctx context.Context, adapters ...exchange.Adapter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closeOnce sync.Once
	closeAll := func() {
		closeOnce.Do(func() {
			for _, a := range adapters {
				_ = a.Close()
			}
		})
	}
	defer closeAll()

	events := make(chan tagged)
	ends := make(chan termination, len(adapters))
	var wg sync.WaitGroup
	for _, a := range adapters {
		wg.Add(1)
		go func(a exchange.Adapter) {
			defer wg.Done()
			local := make(chan exchange.Event)
			done := make(chan error, 1)
			go func() {
				done <- a.Stream(ctx, local)
				close(local)
			}()
			for ev := range local {
				select {
				case events <- tagged{venue: a.Name(), ev: ev}:
				case <-ctx.Done():
					// discard; the stream is being torn down
				}
			}
			ends <- termination{venue: a.Name(), err: <-done}
		}(a)
	}

	var firstErr error
	stopped := false
	ctxDone := ctx.Done()
	for live := len(adapters); live > 0; {
		select {
		case t := <-events:
			if !stopped {
				o.handle(t.venue, t.ev)
			}
		case end := <-ends:
			live--
			switch {
			case end.err == nil || errors.Is(end.err, context.Canceled):
				o.log.Info("source ended", zap.String("exchange", string(end.venue)))
			case stopped:
				o.log.Debug("source ended during teardown", zap.String("exchange", string(end.venue)), zap.Error(end.err))
			default:
				metrics.StreamErrorsTotal.WithLabelValues(string(end.venue)).Inc()
				o.log.Error("source terminated", zap.String("exchange", string(end.venue)), zap.Error(end.err))
				if firstErr == nil {
					firstErr = end.err
				}
				if o.policy == FailFast {
					stopped = true
					cancel()
					closeAll()
				}
			}
		case <-ctxDone:
			ctxDone = nil
			stopped = true
			closeAll()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrAllSourcesEnded
}

// handle feeds one event to the ledger and reports the best crossing, if
// any. NeedlessRemoval is logged and counted, never fatal.
func (o *Orchestrator) handle(venue exchange.ExchangeID, ev exchange.Event) {
	metrics.EventsTotal.WithLabelValues(string(venue)).Inc()

	var crossings []arbitrage.Crossing
	var err error
	switch ev.Side {
	case exchange.Buy:
		crossings, err = o.ledger.Buy(venue, ev.Price, ev.Quantity)
	case exchange.Sell:
		crossings, err = o.ledger.Sell(venue, ev.Price, ev.Quantity)
	}

	bids, asks := o.ledger.Levels()
	metrics.BidLevels.Set(float64(bids))
	metrics.AskLevels.Set(float64(asks))

	var needless *arbitrage.NeedlessRemovalError
	if errors.As(err, &needless) {
		metrics.NeedlessRemovalsTotal.WithLabelValues(string(needless.Venue)).Inc()
		o.log.Warn("needless removal",
			zap.String("exchange", string(venue)),
			zap.String("side", string(ev.Side)),
			zap.String("price", ev.Price.String()),
		)
		return
	}
	if len(crossings) == 0 {
		return
	}

	best := crossings[0]
	spread := ev.Price.Sub(best.Price).Abs()
	matched := decimal.Min(ev.Quantity, best.Quantity)
	o.balance = o.balance.Add(spread.Mul(matched))

	opp := Opportunity{
		TakerVenue: venue,
		MakerVenue: best.Venue,
		Spread:     spread,
		Matched:    matched,
		Balance:    o.balance,
	}
	metrics.OpportunitiesTotal.Inc()
	metrics.RunningBalance.Set(balanceGauge(o.balance))
	o.log.Info("arbitrage opportunity",
		zap.String("taker", string(opp.TakerVenue)),
		zap.String("maker", string(opp.MakerVenue)),
		zap.String("spread", opp.Spread.String()),
		zap.String("matched", opp.Matched.String()),
		zap.String("balance", opp.Balance.String()),
	)
	if o.onOpportunity != nil {
		o.onOpportunity(opp)
	}
}

// balanceGauge is for observability only; the authoritative balance stays
// decimal.
func balanceGauge(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
