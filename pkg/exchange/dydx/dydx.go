// Package dydx speaks the dYdX v4 indexer orderbook channel.
//
// The indexer sends an explicit {"type":"connected"} ack before accepting
// subscriptions. Note the public API docs are wrong in places, e.g.
// channel data carries no clobPairId field in reality.
package dydx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gammazero/deque"

	"github.com/openhedge/arbitrage/pkg/exchange"
	"github.com/openhedge/arbitrage/pkg/transport"
)

const (
	// Venue is the ledger identity of this adapter.
	Venue exchange.ExchangeID = "dydx"

	// DefaultURL is the production indexer websocket endpoint.
	DefaultURL = "wss://indexer.dydx.trade/v4/ws"

	orderbookChannel = "v4_orderbook"

	typeConnected   = "connected"
	typeSubscribed  = "subscribed"
	typeChannelData = "channel_data"
)

type message struct {
	Type     string          `json:"type"`
	Contents json.RawMessage `json:"contents,omitempty"`
}

type subscribeRequest struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	ID      string `json:"id"`
}

// snapshot rows are individual resting orders, not aggregated per price.
type snapshotContents struct {
	Bids []namedRow `json:"bids,omitempty"`
	Asks []namedRow `json:"asks,omitempty"`
}

type namedRow struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// delta rows are ["price","quantity"] pairs; a side is omitted entirely
// when it has no changes.
type deltaContents struct {
	Bids [][2]string `json:"bids,omitempty"`
	Asks [][2]string `json:"asks,omitempty"`
}

// Client streams the orderbook for one instrument, e.g. "BTC-USD".
type Client struct {
	ch         transport.Channel
	instrument string
}

func New(ch transport.Channel, instrument string) *Client {
	return &Client{ch: ch, instrument: instrument}
}

func (c *Client) Name() exchange.ExchangeID { return Venue }

func (c *Client) Close() error { return c.ch.Close() }

// Stream runs the connect-ack / subscribe / snapshot / delta sequence and
// emits normalized events until the transport fails or a message arrives
// out of sequence.
func (c *Client) Stream(ctx context.Context, events chan<- exchange.Event) error {
	// AwaitConnected
	raw, err := c.ch.Receive(ctx)
	if err != nil {
		return fmt.Errorf("dydx: awaiting connect ack: %w", err)
	}
	var msg message
	if err := exchange.DecodeJSON(raw, "dydx.message", &msg); err != nil {
		return err
	}
	if msg.Type != typeConnected {
		return &exchange.ProtocolError{Venue: Venue, Expected: typeConnected, Got: msg.Type}
	}

	// Subscribe
	req, err := json.Marshal(subscribeRequest{
		Type:    "subscribe",
		Channel: orderbookChannel,
		ID:      c.instrument,
	})
	if err != nil {
		return fmt.Errorf("dydx: encode subscribe: %w", err)
	}
	if err := c.ch.Send(ctx, req); err != nil {
		return fmt.Errorf("dydx: subscribe: %w", err)
	}

	// AwaitSnapshot
	raw, err = c.ch.Receive(ctx)
	if err != nil {
		return fmt.Errorf("dydx: awaiting snapshot: %w", err)
	}
	if err := exchange.DecodeJSON(raw, "dydx.message", &msg); err != nil {
		return err
	}
	if msg.Type != typeSubscribed {
		return &exchange.ProtocolError{Venue: Venue, Expected: typeSubscribed, Got: msg.Type}
	}
	var pending deque.Deque[exchange.Event]
	if err := queueSnapshot(&pending, msg.Contents, raw); err != nil {
		return err
	}
	if err := exchange.Emit(ctx, &pending, events); err != nil {
		return err
	}

	// StreamDeltas
	for {
		raw, err = c.ch.Receive(ctx)
		if err != nil {
			return fmt.Errorf("dydx: awaiting channel data: %w", err)
		}
		msg = message{} // don't let a stale contents field leak between messages
		if err := exchange.DecodeJSON(raw, "dydx.message", &msg); err != nil {
			return err
		}
		if msg.Type != typeChannelData {
			return &exchange.ProtocolError{Venue: Venue, Expected: typeChannelData, Got: msg.Type}
		}
		if err := queueDelta(&pending, msg.Contents, raw); err != nil {
			return err
		}
		if err := exchange.Emit(ctx, &pending, events); err != nil {
			return err
		}
	}
}

// queueSnapshot normalizes snapshot rows, bids then asks.
func queueSnapshot(pending *deque.Deque[exchange.Event], contents json.RawMessage, raw []byte) error {
	var snap snapshotContents
	if err := exchange.DecodeJSON(contents, "dydx.snapshot", &snap); err != nil {
		return err
	}
	if err := queueNamedRows(pending, snap.Bids, exchange.Buy, "contents.bids", raw); err != nil {
		return err
	}
	return queueNamedRows(pending, snap.Asks, exchange.Sell, "contents.asks", raw)
}

func queueNamedRows(pending *deque.Deque[exchange.Event], rows []namedRow, side exchange.Side, path string, raw []byte) error {
	for i, row := range rows {
		price, err := exchange.ParseDecimal(row.Price, fmt.Sprintf("%s[%d].price", path, i), raw, "dydx.snapshot")
		if err != nil {
			return err
		}
		size, err := exchange.ParseDecimal(row.Size, fmt.Sprintf("%s[%d].size", path, i), raw, "dydx.snapshot")
		if err != nil {
			return err
		}
		pending.PushBack(exchange.Event{Side: side, Price: price, Quantity: size})
	}
	return nil
}

func queueDelta(pending *deque.Deque[exchange.Event], contents json.RawMessage, raw []byte) error {
	var delta deltaContents
	if err := exchange.DecodeJSON(contents, "dydx.delta", &delta); err != nil {
		return err
	}
	if err := queuePairRows(pending, delta.Bids, exchange.Buy, "contents.bids", raw); err != nil {
		return err
	}
	return queuePairRows(pending, delta.Asks, exchange.Sell, "contents.asks", raw)
}

func queuePairRows(pending *deque.Deque[exchange.Event], rows [][2]string, side exchange.Side, path string, raw []byte) error {
	for i, row := range rows {
		price, err := exchange.ParseDecimal(row[0], fmt.Sprintf("%s[%d][0]", path, i), raw, "dydx.delta")
		if err != nil {
			return err
		}
		quantity, err := exchange.ParseDecimal(row[1], fmt.Sprintf("%s[%d][1]", path, i), raw, "dydx.delta")
		if err != nil {
			return err
		}
		pending.PushBack(exchange.Event{Side: side, Price: price, Quantity: quantity})
	}
	return nil
}
