package domain

import (
	"strings"

	"github.com/lmvdz/zo-mm/pkg/quant"
)

// Market holds perp market metadata loaded from the gateway. The engine
// reloads it every cycle so MarkPriceMicros stays current, falling back to
// its cached copy on transient load failures.
type Market struct {
	Symbol     string // e.g. "BTC-PERP"
	BaseAsset  string // e.g. "BTC"
	QuoteAsset string // e.g. "USDC"

	TickMicros quant.PriceMicros // price lot granularity
	LotSats    quant.QtySats     // size lot granularity

	MarkPriceMicros        quant.PriceMicros
	MaxQuoteNotionalMicros int64 // 0 = unconstrained
}

// RoundPrice rounds a price down to the market tick.
func (m *Market) RoundPrice(p quant.PriceMicros) quant.PriceMicros {
	if m.TickMicros <= 0 {
		return p
	}
	return p - p%m.TickMicros
}

// RoundLots rounds a size down to the market lot.
func (m *Market) RoundLots(q quant.QtySats) quant.QtySats {
	if m.LotSats <= 0 {
		return q
	}
	return q - q%m.LotSats
}

// BaseAssetOf strips the contract suffix from a market symbol:
// "BTC-PERP" -> "BTC". Symbols without a separator are returned as-is.
func BaseAssetOf(symbol string) string {
	if i := strings.IndexByte(symbol, '-'); i > 0 {
		return symbol[:i]
	}
	return symbol
}
