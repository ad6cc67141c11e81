package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lmvdz/zo-mm/internal/domain"
)

// StreamHandler holds the exchange-specific pieces of one top-of-book
// stream: where to connect, how to subscribe and how to decode messages.
//
// Parse returns (nil, nil) for frames that carry no quote (acks,
// heartbeats, other channels) and (nil, err) for malformed frames; a
// malformed frame is logged and skipped, it never tears the stream down.
type StreamHandler interface {
	Exchange() string
	URL() string
	Subscribe(conn *websocket.Conn) error
	Parse(msg []byte) (*domain.ExchangeQuote, error)
}

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
)

type update struct {
	exchange string
	quote    domain.ExchangeQuote
}

// runStream owns one connection for its whole life: dial, subscribe, then
// read until the connection dies. Any exit is a hard failure of the stream;
// the caller decides whether that kills the worker.
func runStream(ctx context.Context, h StreamHandler, updates chan<- update, log *slog.Logger) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, h.URL(), nil)
	if err != nil {
		return fmt.Errorf("%s dial: %w", h.Exchange(), err)
	}
	defer conn.Close()

	// Unblocks the pending read when the worker is torn down.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := h.Subscribe(conn); err != nil {
		return fmt.Errorf("%s subscribe: %w", h.Exchange(), err)
	}

	go pingLoop(ctx, conn)

	log.Info("stream connected", slog.String("exchange", h.Exchange()))

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s read: %w", h.Exchange(), err)
		}

		q, err := h.Parse(msg)
		if err != nil {
			log.Warn("bad frame skipped",
				slog.String("exchange", h.Exchange()), slog.Any("error", err))
			continue
		}
		if q == nil {
			continue
		}

		select {
		case updates <- update{exchange: h.Exchange(), quote: *q}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(handshakeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
