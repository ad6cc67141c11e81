package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

const binanceFuturesWSURL = "wss://fstream.binance.com/ws/%s@bookTicker"

// Binance streams the USDT-margined futures book ticker. The subscription
// is baked into the URL, so Subscribe is a no-op.
type Binance struct {
	Asset string
	WSURL string // test override
}

func (b Binance) Exchange() string { return "binance-futures" }

func (b Binance) URL() string {
	if b.WSURL != "" {
		return b.WSURL
	}
	return fmt.Sprintf(binanceFuturesWSURL, strings.ToLower(b.Asset)+"usdt")
}

func (b Binance) Subscribe(conn *websocket.Conn) error { return nil }

type binanceBookTicker struct {
	Event   string `json:"e"`
	Symbol  string `json:"s"`
	BestBid string `json:"b"`
	// Quantity fields must be declared: encoding/json matches keys
	// case-insensitively, so without them "B"/"A" clobber "b"/"a".
	BestBidQty string `json:"B"`
	BestAsk    string `json:"a"`
	BestAskQty string `json:"A"`
}

func (b Binance) Parse(msg []byte) (*domain.ExchangeQuote, error) {
	var t binanceBookTicker
	if err := json.Unmarshal(msg, &t); err != nil {
		return nil, err
	}
	if t.Event != "bookTicker" {
		return nil, nil
	}
	bid := quant.ToPriceMicrosStr(t.BestBid)
	ask := quant.ToPriceMicrosStr(t.BestAsk)
	if bid <= 0 || ask <= bid {
		return nil, fmt.Errorf("crossed or empty book: bid=%s ask=%s", t.BestBid, t.BestAsk)
	}
	return &domain.ExchangeQuote{
		BestBidMicros: bid,
		BestAskMicros: ask,
		SpreadMicros:  ask - bid,
	}, nil
}
