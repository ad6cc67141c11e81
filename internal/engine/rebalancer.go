package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/internal/gateway"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

// RebalanceConfig is the timing and quoting knobs of the main loop.
type RebalanceConfig struct {
	Markets        []string
	Interval       time.Duration // full cycle period
	Stagger        time.Duration // delay between per-market sub-cycles
	CancelInterval time.Duration // delay between individual cancels
	SpreadPct      float64       // e.g. 0.1 quotes 5% either side of mid
	ControlKey     string
}

// Journal is the optional order/cancel sink. A nil implementation is fine;
// recording is observability only and never gates trading.
type Journal interface {
	RecordOrder(symbol, side string, priceMicros, sizeSats int64)
	RecordCancel(symbol, orderID string)
}

// Rebalancer runs the quoting loop: on every tick it refreshes account
// state, then per market cancels resting quotes, applies the PnL band and
// re-quotes around the blended mid.
type Rebalancer struct {
	cfg  RebalanceConfig
	gw   gateway.Gateway
	agg  *Aggregator
	risk *RiskEvaluator
	jnl  Journal
	log  *slog.Logger

	spreadPctMicros int64

	mu      sync.Mutex
	markets map[string]*domain.Market
}

func NewRebalancer(cfg RebalanceConfig, gw gateway.Gateway, agg *Aggregator,
	risk *RiskEvaluator, jnl Journal, log *slog.Logger) *Rebalancer {
	return &Rebalancer{
		cfg:             cfg,
		gw:              gw,
		agg:             agg,
		risk:            risk,
		jnl:             jnl,
		log:             log,
		spreadPctMicros: int64(cfg.SpreadPct * quant.PriceScale),
		markets:         make(map[string]*domain.Market),
	}
}

// Run blocks until ctx is done. The first cycle starts immediately.
func (r *Rebalancer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		r.Cycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs one full rebalance pass across all configured markets.
// Markets are staggered: market i starts its sub-cycle i*Stagger after the
// tick so order traffic is spread across the period instead of bursting.
func (r *Rebalancer) Cycle(ctx context.Context) {
	state, err := r.refresh(ctx)
	if err != nil {
		r.log.Error("state refresh failed, skipping cycle", slog.Any("error", err))
		return
	}

	var wg sync.WaitGroup
	for i, symbol := range r.cfg.Markets {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			if !sleepCtx(ctx, time.Duration(i)*r.cfg.Stagger) {
				return
			}
			r.rebalanceMarket(ctx, symbol, state)
		}(i, symbol)
	}
	wg.Wait()
}

// cycleState is the account snapshot shared by all sub-cycles of one tick.
type cycleState struct {
	positions map[string]domain.Position
	balances  *domain.BalanceBook
}

// refresh runs the four state loads concurrently: positions, balances, the
// account-wide order list and market metadata. Positions and balances must
// succeed before any risk or quote decision; quoting against stale margin
// or unseen positions is worse than sitting out a cycle. The other two are
// best effort: orders feed a log line, metadata warms the per-market cache.
func (r *Rebalancer) refresh(ctx context.Context) (*cycleState, error) {
	var (
		wg    sync.WaitGroup
		state cycleState
		pErr  error
		bErr  error
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		state.positions, pErr = r.gw.LoadPositions(ctx)
	}()
	go func() {
		defer wg.Done()
		state.balances, bErr = r.gw.LoadBalances(ctx)
	}()
	go func() {
		defer wg.Done()
		orders, err := r.gw.LoadOrders(ctx)
		if err != nil {
			r.log.Warn("order refresh failed", slog.Any("error", err))
			return
		}
		r.log.Debug("order refresh", slog.Int("count", len(orders)))
	}()
	go func() {
		defer wg.Done()
		for _, symbol := range r.cfg.Markets {
			if _, err := r.market(ctx, symbol); err != nil {
				r.log.Warn("market refresh failed",
					slog.String("market", symbol), slog.Any("error", err))
			}
		}
	}()
	wg.Wait()

	if pErr != nil {
		return nil, pErr
	}
	if bErr != nil {
		return nil, bErr
	}
	return &state, nil
}

func (r *Rebalancer) rebalanceMarket(ctx context.Context, symbol string, state *cycleState) {
	market, err := r.market(ctx, symbol)
	if err != nil {
		r.log.Error("market load failed", slog.String("market", symbol), slog.Any("error", err))
		return
	}

	if fi, err := r.gw.GetFundingInfo(ctx, symbol); err == nil {
		r.log.Debug("funding",
			slog.String("market", symbol),
			slog.Int64("hourly_rate_micros", fi.HourlyRateMicros))
	}

	r.cancelAll(ctx, market)

	if pos, ok := state.positions[symbol]; ok {
		r.risk.Evaluate(ctx, market, pos)
	}

	r.quote(ctx, market, state)
}

// cancelAll cancels every resting order owned by our control key, one by
// one with CancelInterval between submissions, and returns only once every
// cancel has settled. Each order gets exactly one attempt; a failure is
// logged and must not stop the remaining cancels.
func (r *Rebalancer) cancelAll(ctx context.Context, market *domain.Market) {
	open, err := r.gw.LoadOpenOrders(ctx, market, r.cfg.ControlKey)
	if err != nil {
		r.log.Error("open order load failed",
			slog.String("market", market.Symbol), slog.Any("error", err))
		return
	}
	if len(open) == 0 {
		return
	}

	var wg sync.WaitGroup
	for j, o := range open {
		wg.Add(1)
		go func(j int, o domain.Order) {
			defer wg.Done()
			if !sleepCtx(ctx, time.Duration(j)*r.cfg.CancelInterval) {
				return
			}
			if err := r.gw.CancelOrder(ctx, market, o.ID, o.Side); err != nil {
				r.log.Warn("cancel failed",
					slog.String("market", market.Symbol),
					slog.String("order", o.ID),
					slog.Any("error", err))
				return
			}
			if r.jnl != nil {
				r.jnl.RecordCancel(market.Symbol, o.ID)
			}
		}(j, o)
	}
	wg.Wait()
}

// quote places the paired bid/ask around the blended mid. Without a mid
// for the base asset (no spreads message yet) the market sits out.
func (r *Rebalancer) quote(ctx context.Context, market *domain.Market, state *cycleState) {
	mid, ok := r.agg.Mid(market.BaseAsset)
	if !ok {
		r.log.Warn("no mid yet, not quoting", slog.String("market", market.Symbol))
		return
	}

	halfSpread := quant.PriceMicros(quant.MulDiv(int64(mid), r.spreadPctMicros, 2*quant.PriceScale))
	bid := market.RoundPrice(mid - halfSpread)
	ask := market.RoundPrice(mid + halfSpread)
	if bid <= 0 || ask <= bid {
		r.log.Warn("degenerate quote, not quoting",
			slog.String("market", market.Symbol),
			slog.Int64("mid", int64(mid)))
		return
	}

	size := r.quoteSize(market, state, mid)
	if size <= 0 {
		r.log.Warn("no quotable size", slog.String("market", market.Symbol))
		return
	}

	// The two sides go out together; each failure is caught on its own.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.place(ctx, market, domain.Long, bid, size)
	}()
	go func() {
		defer wg.Done()
		r.place(ctx, market, domain.Short, ask, size)
	}()
	wg.Wait()
}

// quoteSize splits available quote margin evenly across markets, then
// halves it so each side of the pair can be backed independently.
func (r *Rebalancer) quoteSize(market *domain.Market, state *cycleState, mid quant.PriceMicros) quant.QtySats {
	avail := state.balances.AvailableMicros(market.QuoteAsset)
	if avail <= 0 {
		return 0
	}
	notional := avail / int64(len(r.cfg.Markets)) / 2
	if market.MaxQuoteNotionalMicros > 0 && notional > market.MaxQuoteNotionalMicros {
		notional = market.MaxQuoteNotionalMicros
	}
	size := quant.QtySats(quant.MulDiv(notional, quant.QtyScale, int64(mid)))
	return market.RoundLots(size)
}

func (r *Rebalancer) place(ctx context.Context, market *domain.Market,
	side domain.Side, price quant.PriceMicros, size quant.QtySats) {
	if _, err := r.gw.PlaceOrder(ctx, market, side, price, size, gateway.PostOnly); err != nil {
		r.log.Warn("quote placement failed",
			slog.String("market", market.Symbol),
			slog.String("side", side.String()),
			slog.Any("error", err))
		return
	}
	r.log.Info("quoted",
		slog.String("market", market.Symbol),
		slog.String("side", side.String()),
		slog.String("price", price.String()),
		slog.String("size", size.String()))
	if r.jnl != nil {
		r.jnl.RecordOrder(market.Symbol, side.String(), int64(price), int64(size))
	}
}

// market reloads metadata every sub-cycle so the mark price feeding the
// PnL band is current. On a transient load failure the last good copy is
// served instead of sitting the market out.
func (r *Rebalancer) market(ctx context.Context, symbol string) (*domain.Market, error) {
	m, err := r.gw.LoadMarket(ctx, symbol)
	if err != nil {
		r.mu.Lock()
		cached, ok := r.markets[symbol]
		r.mu.Unlock()
		if ok {
			r.log.Warn("market reload failed, using cached metadata",
				slog.String("market", symbol), slog.Any("error", err))
			return cached, nil
		}
		return nil, err
	}
	r.mu.Lock()
	r.markets[symbol] = m
	r.mu.Unlock()
	return m, nil
}

// sleepCtx sleeps for d and reports false if ctx was canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
