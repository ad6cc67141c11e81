package feed

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

const bitmexWSURL = "wss://www.bitmex.com/realtime"

// Bitmex streams the quote table for one perpetual contract.
type Bitmex struct {
	Asset string
	WSURL string // test override
}

func (b Bitmex) Exchange() string { return "bitmex" }

func (b Bitmex) URL() string {
	if b.WSURL != "" {
		return b.WSURL
	}
	return bitmexWSURL
}

// bitmexInstrument maps a base asset to its contract symbol. BitMEX still
// calls bitcoin XBT.
func bitmexInstrument(asset string) string {
	if asset == "BTC" {
		return "XBTUSD"
	}
	return asset + "USD"
}

func (b Bitmex) Subscribe(conn *websocket.Conn) error {
	req := struct {
		Op   string   `json:"op"`
		Args []string `json:"args"`
	}{Op: "subscribe", Args: []string{"quote:" + bitmexInstrument(b.Asset)}}
	return conn.WriteJSON(req)
}

type bitmexQuoteMsg struct {
	Table string `json:"table"`
	Data  []struct {
		Symbol   string  `json:"symbol"`
		BidPrice float64 `json:"bidPrice"`
		AskPrice float64 `json:"askPrice"`
	} `json:"data"`
}

func (b Bitmex) Parse(msg []byte) (*domain.ExchangeQuote, error) {
	var m bitmexQuoteMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	if m.Table != "quote" || len(m.Data) == 0 {
		return nil, nil
	}

	// The partial/insert batch is ordered oldest first; the last row is
	// the freshest quote.
	row := m.Data[len(m.Data)-1]
	bid := quant.ToPriceMicros(row.BidPrice)
	ask := quant.ToPriceMicros(row.AskPrice)
	if bid <= 0 || ask <= bid {
		return nil, fmt.Errorf("crossed or empty book: bid=%f ask=%f", row.BidPrice, row.AskPrice)
	}
	return &domain.ExchangeQuote{
		BestBidMicros: bid,
		BestAskMicros: ask,
		SpreadMicros:  ask - bid,
	}, nil
}
