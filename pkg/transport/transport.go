package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClosed is returned by Receive once the peer has closed the
// connection or the channel itself has been shut down.
var ErrClosed = errors.New("transport: channel closed")

// Channel is a duplex, persistent, message-oriented connection. One
// message in, one message out; ping/pong control frames never surface.
// A Channel is owned by a single producer/consumer pair and is not safe
// for concurrent Receive calls.
type Channel interface {
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

type WSConfig struct {
	URL                     string `yaml:"url"`
	HandshakeTimeoutSeconds int    `yaml:"handshake_timeout_seconds"`
	DialMaxElapsedSeconds   int    `yaml:"dial_max_elapsed_seconds"`
}

// WSChannel implements Channel over a gorilla websocket connection.
// Gorilla's default ping handler answers pings during ReadMessage, so
// control frames stay invisible to callers.
type WSChannel struct {
	conn *websocket.Conn
}

// Dial connects to a websocket endpoint, retrying with exponential
// backoff until it succeeds or the elapsed budget runs out.
func Dial(ctx context.Context, cfg *WSConfig) (*WSChannel, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: time.Duration(cfg.HandshakeTimeoutSeconds) * time.Second,
	}

	var conn *websocket.Conn
	boff := backoff.NewExponentialBackOff()
	boff.MaxElapsedTime = time.Duration(cfg.DialMaxElapsedSeconds) * time.Second
	err := backoff.Retry(func() error {
		var err error
		conn, _, err = dialer.DialContext(ctx, cfg.URL, nil)
		if err != nil {
			zap.S().Warnf("dial %s: %v", cfg.URL, err)
		}
		return err
	}, backoff.WithContext(boff, ctx))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", cfg.URL, err)
	}

	return &WSChannel{conn: conn}, nil
}

func (c *WSChannel) Send(ctx context.Context, payload []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Receive blocks until the next text or binary message arrives. It
// returns ErrClosed when the peer closes cleanly; Close from another
// goroutine also unblocks it.
func (c *WSChannel) Receive(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	}
	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrClosed
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("transport: receive: %w", err)
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			return payload, nil
		}
		// anything else is a control frame gorilla let through; skip it
	}
}

func (c *WSChannel) Close() error {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}
