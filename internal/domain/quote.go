package domain

import "github.com/lmvdz/zo-mm/pkg/quant"

// ExchangeQuote is the normalized top-of-book state of one source exchange,
// timestamped implicitly by arrival. Carried inside feed spreads envelopes.
type ExchangeQuote struct {
	SpreadMicros  quant.PriceMicros `json:"spread"`
	BestBidMicros quant.PriceMicros `json:"bestBid"`
	BestAskMicros quant.PriceMicros `json:"bestAsk"`
}

// LocalMidMicros is the single-exchange mid: bestBid + spread/2.
func (q ExchangeQuote) LocalMidMicros() quant.PriceMicros {
	return q.BestBidMicros + q.SpreadMicros/2
}
