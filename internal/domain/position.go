package domain

import "github.com/lmvdz/zo-mm/pkg/quant"

// Side is the direction of a position or order.
type Side int8

const (
	Long Side = iota + 1
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the closing side for a held side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// Position represents a held perp position, read fresh from the gateway
// every rebalance cycle. Never cached across cycles: a stale position makes
// the risk check act on sizes that no longer exist.
type Position struct {
	MarketKey  string
	Side       Side
	CoinsSats  quant.QtySats // quantity held
	PCoinsSats quant.QtySats // cost-basis quantity
}

// IsFlat reports whether the position has no meaningful entry price to
// evaluate (either leg exactly zero).
func (p *Position) IsFlat() bool {
	return p.CoinsSats == 0 || p.PCoinsSats == 0
}
