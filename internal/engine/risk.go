package engine

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/internal/gateway"
)

// RiskConfig holds the PnL band fractions.
type RiskConfig struct {
	MaxGain decimal.Decimal // e.g. 0.25
	MaxLoss decimal.Decimal // e.g. 0.25
}

// NewRiskConfig converts the boundary floats from configuration.
func NewRiskConfig(maxGain, maxLoss float64) RiskConfig {
	return RiskConfig{
		MaxGain: decimal.NewFromFloat(maxGain),
		MaxLoss: decimal.NewFromFloat(maxLoss),
	}
}

// RiskEvaluator force-closes positions whose unrealized PnL breaches the
// configured band.
type RiskEvaluator struct {
	cfg RiskConfig
	gw  gateway.Gateway
	log *slog.Logger
}

func NewRiskEvaluator(cfg RiskConfig, gw gateway.Gateway, log *slog.Logger) *RiskEvaluator {
	return &RiskEvaluator{cfg: cfg, gw: gw, log: log}
}

// Evaluate checks one position against the band and, on a breach, submits
// an opposing-side limit order at the current mark price for the full held
// size. Returns whether a close was attempted. Close failures are logged
// and swallowed so they can never abort the rebalance cycle of other
// markets.
func (r *RiskEvaluator) Evaluate(ctx context.Context, market *domain.Market, pos domain.Position) bool {
	// No meaningful entry price to compare against; not an error.
	if pos.IsFlat() {
		return false
	}

	entry := decimal.NewFromInt(int64(pos.CoinsSats)).
		Div(decimal.NewFromInt(int64(pos.PCoinsSats)))
	pnl := r.gw.PositionPnL(pos, market.MarkPriceMicros)

	one := decimal.NewFromInt(1)
	gainBound := entry.Mul(one.Add(r.cfg.MaxGain))
	lossBound := entry.Mul(one.Sub(r.cfg.MaxLoss))

	if pnl.LessThan(gainBound) && pnl.GreaterThan(lossBound.Neg()) {
		return false
	}

	r.log.Info("pnl band breached, closing position",
		slog.String("market", market.Symbol),
		slog.String("side", pos.Side.String()),
		slog.String("pnl", pnl.String()),
		slog.String("entry", entry.String()))

	_, err := r.gw.PlaceOrder(ctx, market, pos.Side.Opposite(),
		market.MarkPriceMicros, pos.CoinsSats, gateway.Limit)
	if err != nil {
		r.log.Error("position close failed",
			slog.String("market", market.Symbol),
			slog.Any("error", err))
	}
	return true
}
