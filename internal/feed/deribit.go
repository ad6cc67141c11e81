package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

const deribitWSURL = "wss://www.deribit.com/ws/api/v2"

// Deribit streams the quote channel of one perpetual over JSON-RPC.
type Deribit struct {
	Asset string
	WSURL string // test override
}

func (d Deribit) Exchange() string { return "deribit" }

func (d Deribit) URL() string {
	if d.WSURL != "" {
		return d.WSURL
	}
	return deribitWSURL
}

func deribitInstrument(asset string) string {
	return asset + "-PERPETUAL"
}

func (d Deribit) Subscribe(conn *websocket.Conn) error {
	req := struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Method  string `json:"method"`
		Params  struct {
			Channels []string `json:"channels"`
		} `json:"params"`
	}{JSONRPC: "2.0", ID: 1, Method: "public/subscribe"}
	req.Params.Channels = []string{"quote." + deribitInstrument(d.Asset)}
	return conn.WriteJSON(req)
}

type deribitNotification struct {
	Method string `json:"method"`
	Params struct {
		Channel string `json:"channel"`
		Data    struct {
			BestBidPrice float64 `json:"best_bid_price"`
			BestAskPrice float64 `json:"best_ask_price"`
		} `json:"data"`
	} `json:"params"`
}

func (d Deribit) Parse(msg []byte) (*domain.ExchangeQuote, error) {
	var n deribitNotification
	if err := json.Unmarshal(msg, &n); err != nil {
		return nil, err
	}
	if n.Method != "subscription" || !strings.HasPrefix(n.Params.Channel, "quote.") {
		return nil, nil
	}
	bid := quant.ToPriceMicros(n.Params.Data.BestBidPrice)
	ask := quant.ToPriceMicros(n.Params.Data.BestAskPrice)
	if bid <= 0 || ask <= bid {
		return nil, fmt.Errorf("crossed or empty book: bid=%f ask=%f",
			n.Params.Data.BestBidPrice, n.Params.Data.BestAskPrice)
	}
	return &domain.ExchangeQuote{
		BestBidMicros: bid,
		BestAskMicros: ask,
		SpreadMicros:  ask - bid,
	}, nil
}
