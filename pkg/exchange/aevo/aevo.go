// Package aevo speaks the Aevo orderbook channel.
//
// Aevo has no connect ack: the client subscribes straight away. The venue
// replies with a pre-aggregated snapshot, then one spurious subscription
// acknowledgement that must be read and discarded, then updates. It may
// also re-send a snapshot mid-stream, which is ignored.
package aevo

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
	Venue exchange.ExchangeID = "aevo"

	// DefaultURL is the production websocket endpoint.
	DefaultURL = "wss://ws.aevo.xyz"

	typeSnapshot = "snapshot"
	typeUpdate   = "update"
)

type subscribeRequest struct {
	Op   string   `json:"op"`
	Data []string `json:"data"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type book struct {
	Type string      `json:"type"`
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

// the ack after the snapshot carries the subscribed channel names
type acknowledgement struct {
	Data []string `json:"data"`
}

// Client streams the orderbook for one instrument, e.g. "BTC-PERP".
type Client struct {
	ch         transport.Channel
	instrument string
}

func New(ch transport.Channel, instrument string) *Client {
	return &Client{ch: ch, instrument: instrument}
}

func (c *Client) Name() exchange.ExchangeID { return Venue }

func (c *Client) Close() error { return c.ch.Close() }

// Stream runs the subscribe / snapshot / ack / update sequence and emits
// normalized events until the transport fails or a message arrives out of
// sequence.
func (c *Client) Stream(ctx context.Context, events chan<- exchange.Event) error {
	// Subscribe
	req, err := json.Marshal(subscribeRequest{
		Op:   "subscribe",
		Data: []string{fmt.Sprintf("orderbook:%s", c.instrument)},
	})
	if err != nil {
		return fmt.Errorf("aevo: encode subscribe: %w", err)
	}
	if err := c.ch.Send(ctx, req); err != nil {
		return fmt.Errorf("aevo: subscribe: %w", err)
	}

	// AwaitSnapshot
	snap, raw, err := c.receiveBook(ctx)
	if err != nil {
		return err
	}
	if snap.Type != typeSnapshot {
		return &exchange.ProtocolError{Venue: Venue, Expected: typeSnapshot, Got: snap.Type}
	}

	// discard the documented spurious acknowledgement
	ackRaw, err := c.ch.Receive(ctx)
	if err != nil {
		return fmt.Errorf("aevo: awaiting subscription ack: %w", err)
	}
	var ack acknowledgement
	if err := json.Unmarshal(ackRaw, &ack); err != nil || ack.Data == nil {
		return &exchange.ProtocolError{Venue: Venue, Expected: "subscription ack", Got: truncate(ackRaw)}
	}

	var pending deque.Deque[exchange.Event]
	if err := queueBook(&pending, snap, raw); err != nil {
		return err
	}
	if err := exchange.Emit(ctx, &pending, events); err != nil {
		return err
	}

	// StreamUpdates
	for {
		b, raw, err := c.receiveBook(ctx)
		if err != nil {
			return err
		}
		switch b.Type {
		case typeUpdate:
			if err := queueBook(&pending, b, raw); err != nil {
				return err
			}
			if err := exchange.Emit(ctx, &pending, events); err != nil {
				return err
			}
		case typeSnapshot:
			// the venue re-snapshots transparently; not an error
		default:
			return &exchange.ProtocolError{Venue: Venue, Expected: typeUpdate, Got: b.Type}
		}
	}
}

func truncate(raw []byte) string {
	if len(raw) > 60 {
		return string(raw[:60]) + "..."
	}
	return string(raw)
}

func (c *Client) receiveBook(ctx context.Context) (*book, []byte, error) {
	raw, err := c.ch.Receive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("aevo: receive: %w", err)
	}
	var env envelope
	if err := exchange.DecodeJSON(raw, "aevo.envelope", &env); err != nil {
		return nil, nil, err
	}
	var b book
	if err := exchange.DecodeJSON(env.Data, "aevo.book", &b); err != nil {
		return nil, nil, err
	}
	return &b, raw, nil
}

// queueBook normalizes book rows, bids then asks. Aevo aggregates per
// price before sending, so rows map one-to-one onto events.
func queueBook(pending *deque.Deque[exchange.Event], b *book, raw []byte) error {
	if err := queuePairRows(pending, b.Bids, exchange.Buy, "data.bids", raw); err != nil {
		return err
	}
	return queuePairRows(pending, b.Asks, exchange.Sell, "data.asks", raw)
}

func queuePairRows(pending *deque.Deque[exchange.Event], rows [][2]string, side exchange.Side, path string, raw []byte) error {
	for i, row := range rows {
		price, err := exchange.ParseDecimal(row[0], fmt.Sprintf("%s[%d][0]", path, i), raw, "aevo.book")
		if err != nil {
			return err
		}
		quantity, err := exchange.ParseDecimal(row[1], fmt.Sprintf("%s[%d][1]", path, i), raw, "aevo.book")
		if err != nil {
			return err
		}
		pending.PushBack(exchange.Event{Side: side, Price: price, Quantity: quantity})
	}
	return nil
}
