package domain

import (
	"testing"

	"github.com/lmvdz/zo-mm/pkg/quant"
)

func TestMarket_Rounding(t *testing.T) {
	m := &Market{
		Symbol:     "BTC-PERP",
		TickMicros: 100_000,   // 0.1
		LotSats:    1_000_000, // 0.01
	}

	tests := []struct {
		name  string
		price quant.PriceMicros
		want  quant.PriceMicros
	}{
		{"exact tick", 950 * quant.PriceScale, 950 * quant.PriceScale},
		{"rounds down", 950*quant.PriceScale + 70_000, 950 * quant.PriceScale},
		{"sub tick", 99_999, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.RoundPrice(tt.price); got != tt.want {
				t.Errorf("RoundPrice(%d) = %d, want %d", tt.price, got, tt.want)
			}
		})
	}

	if got := m.RoundLots(123_456_789); got != 123_000_000 {
		t.Errorf("RoundLots = %d, want 123000000", got)
	}

	// Zero granularity passes values through untouched.
	free := &Market{Symbol: "X-PERP"}
	if got := free.RoundPrice(12345); got != 12345 {
		t.Errorf("RoundPrice without tick = %d", got)
	}
}

func TestBaseAssetOf(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"BTC-PERP", "BTC"},
		{"SOL-PERP", "SOL"},
		{"BTC-PERPETUAL", "BTC"},
		{"BTC", "BTC"},
		{"-PERP", "-PERP"},
	}
	for _, tt := range tests {
		if got := BaseAssetOf(tt.symbol); got != tt.want {
			t.Errorf("BaseAssetOf(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestExchangeQuote_LocalMid(t *testing.T) {
	// bestBid=100, spread=2 -> localMid=101 (values in micros)
	q := ExchangeQuote{
		BestBidMicros: 100 * quant.PriceScale,
		BestAskMicros: 102 * quant.PriceScale,
		SpreadMicros:  2 * quant.PriceScale,
	}
	if got := q.LocalMidMicros(); got != 101*quant.PriceScale {
		t.Errorf("LocalMidMicros = %d, want %d", got, 101*quant.PriceScale)
	}
}
