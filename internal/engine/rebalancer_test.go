package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/internal/gateway"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

func newTestRig(t *testing.T, markets ...string) (*Rebalancer, *gateway.Paper, *Aggregator) {
	t.Helper()
	gw := gateway.NewPaper("control-1")
	for _, sym := range markets {
		gw.SeedMarket(&domain.Market{
			Symbol:          sym,
			BaseAsset:       domain.BaseAssetOf(sym),
			QuoteAsset:      "USDC",
			TickMicros:      100_000,
			LotSats:         1_000,
			MarkPriceMicros: 1000 * quant.PriceScale,
		})
	}
	if _, err := gw.Deposit(context.Background(), "USDC", 100_000*quant.PriceScale); err != nil {
		t.Fatal(err)
	}

	agg := NewAggregator(MidPairwise)
	log := discardLogger()
	risk := NewRiskEvaluator(NewRiskConfig(0.25, 0.25), gw, log)
	reb := NewRebalancer(RebalanceConfig{
		Markets:    markets,
		Interval:   time.Hour,
		SpreadPct:  0.1,
		ControlKey: "control-1",
	}, gw, agg, risk, nil, log)
	return reb, gw, agg
}

// bestBid 999 with spread 2 puts the local mid, and hence the blended
// mid, at exactly 1000.
func midThousand(agg *Aggregator, asset string) {
	agg.Apply(asset, map[string]domain.ExchangeQuote{
		"bitmex": {
			BestBidMicros: 999 * quant.PriceScale,
			BestAskMicros: 1001 * quant.PriceScale,
			SpreadMicros:  2 * quant.PriceScale,
		},
	})
}

func TestRebalancer_QuotesAroundMid(t *testing.T) {
	ctx := context.Background()
	reb, gw, agg := newTestRig(t, "BTC-PERP")
	midThousand(agg, "BTC")

	reb.Cycle(ctx)

	m, _ := gw.LoadMarket(ctx, "BTC-PERP")
	open, err := gw.LoadOpenOrders(ctx, m, "control-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 2 {
		t.Fatalf("open orders = %d, want paired quotes", len(open))
	}

	// 10% spread around mid 1000: bid 950, ask 1050.
	var bid, ask *domain.Order
	for i := range open {
		switch open[i].Side {
		case domain.Long:
			bid = &open[i]
		case domain.Short:
			ask = &open[i]
		}
	}
	if bid == nil || ask == nil {
		t.Fatalf("want one bid and one ask, got %+v", open)
	}
	if bid.PriceMicros != 950*quant.PriceScale {
		t.Errorf("bid = %s, want 950", bid.PriceMicros)
	}
	if ask.PriceMicros != 1050*quant.PriceScale {
		t.Errorf("ask = %s, want 1050", ask.PriceMicros)
	}

	// 100k available, one market: 50k notional per side at mid 1000 is
	// 50 base units on each quote.
	if want := quant.QtySats(50 * quant.QtyScale); bid.SizeSats != want || ask.SizeSats != want {
		t.Errorf("sizes = %s/%s, want %s", bid.SizeSats, ask.SizeSats, want)
	}
}

func TestRebalancer_NoQuotingBeforeFirstSpreads(t *testing.T) {
	ctx := context.Background()
	reb, gw, _ := newTestRig(t, "BTC-PERP")

	reb.Cycle(ctx)

	m, _ := gw.LoadMarket(ctx, "BTC-PERP")
	open, _ := gw.LoadOpenOrders(ctx, m, "control-1")
	if len(open) != 0 {
		t.Errorf("quoted %d orders with no mid available", len(open))
	}
}

func TestRebalancer_CancelsStaleQuotesFirst(t *testing.T) {
	ctx := context.Background()
	reb, gw, agg := newTestRig(t, "BTC-PERP")
	midThousand(agg, "BTC")

	m, _ := gw.LoadMarket(ctx, "BTC-PERP")
	stale1, err := gw.PlaceOrder(ctx, m, domain.Long, 900*quant.PriceScale, quant.QtyScale, gateway.PostOnly)
	if err != nil {
		t.Fatal(err)
	}
	stale2, err := gw.PlaceOrder(ctx, m, domain.Short, 1100*quant.PriceScale, quant.QtyScale, gateway.PostOnly)
	if err != nil {
		t.Fatal(err)
	}

	reb.Cycle(ctx)

	open, _ := gw.LoadOpenOrders(ctx, m, "control-1")
	if len(open) != 2 {
		t.Fatalf("open orders = %d, want only the fresh pair", len(open))
	}
	for _, o := range open {
		if o.ID == stale1.OrderID || o.ID == stale2.OrderID {
			t.Errorf("stale order %s survived the cycle", o.ID)
		}
	}
}

// flakyCancelGateway rejects the cancel of one chosen order id.
type flakyCancelGateway struct {
	*gateway.Paper
	failID string
}

func (g *flakyCancelGateway) CancelOrder(ctx context.Context, market *domain.Market, orderID string, side domain.Side) error {
	if orderID == g.failID {
		return errors.New("cancel rejected")
	}
	return g.Paper.CancelOrder(ctx, market, orderID, side)
}

func TestRebalancer_CancelFailureDoesNotBlockSiblings(t *testing.T) {
	ctx := context.Background()
	reb, paper, agg := newTestRig(t, "BTC-PERP")
	midThousand(agg, "BTC")

	m, _ := paper.LoadMarket(ctx, "BTC-PERP")
	doomed, err := paper.PlaceOrder(ctx, m, domain.Short, 1100*quant.PriceScale, quant.QtyScale, gateway.PostOnly)
	if err != nil {
		t.Fatal(err)
	}
	other, err := paper.PlaceOrder(ctx, m, domain.Short, 1200*quant.PriceScale, quant.QtyScale, gateway.PostOnly)
	if err != nil {
		t.Fatal(err)
	}

	gw := &flakyCancelGateway{Paper: paper, failID: doomed.OrderID}
	log := discardLogger()
	reb = NewRebalancer(RebalanceConfig{
		Markets:    []string{"BTC-PERP"},
		Interval:   time.Hour,
		SpreadPct:  0.1,
		ControlKey: "control-1",
	}, gw, agg, NewRiskEvaluator(NewRiskConfig(0.25, 0.25), gw, log), nil, log)

	reb.Cycle(ctx)

	open, _ := paper.LoadOpenOrders(ctx, m, "control-1")
	// The doomed order survives its failed cancel; its sibling must still
	// have been canceled and the fresh pair still placed.
	if len(open) != 3 {
		t.Fatalf("open orders = %d, want doomed + fresh pair", len(open))
	}
	for _, o := range open {
		if o.ID == other.OrderID {
			t.Error("sibling cancel was skipped after a cancel failure")
		}
	}
}

func TestRebalancer_RiskCloseRunsInCycle(t *testing.T) {
	ctx := context.Background()
	reb, gw, agg := newTestRig(t, "BTC-PERP")
	midThousand(agg, "BTC")

	// Entry 100 with mark 1000 is far beyond the 25% gain bound, so the
	// cycle must emit a closing short alongside the fresh pair.
	gw.SeedPosition("BTC-PERP", domain.Position{
		MarketKey:  "BTC-PERP",
		Side:       domain.Long,
		CoinsSats:  quant.QtyScale,
		PCoinsSats: quant.QtyScale / 100,
	})

	reb.Cycle(ctx)

	m, _ := gw.LoadMarket(ctx, "BTC-PERP")
	open, _ := gw.LoadOpenOrders(ctx, m, "control-1")
	if len(open) != 3 {
		t.Fatalf("open orders = %d, want close + paired quotes", len(open))
	}
	var closes int
	for _, o := range open {
		if o.Side == domain.Short && o.PriceMicros == m.MarkPriceMicros {
			closes++
		}
	}
	if closes != 1 {
		t.Errorf("close orders at mark = %d, want 1", closes)
	}
}

func TestRebalancer_NotionalCap(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewPaper("control-1")
	gw.SeedMarket(&domain.Market{
		Symbol:                 "BTC-PERP",
		BaseAsset:              "BTC",
		QuoteAsset:             "USDC",
		TickMicros:             100_000,
		LotSats:                1_000,
		MarkPriceMicros:        1000 * quant.PriceScale,
		MaxQuoteNotionalMicros: 10_000 * quant.PriceScale,
	})
	if _, err := gw.Deposit(ctx, "USDC", 100_000*quant.PriceScale); err != nil {
		t.Fatal(err)
	}
	agg := NewAggregator(MidPairwise)
	midThousand(agg, "BTC")
	log := discardLogger()
	reb := NewRebalancer(RebalanceConfig{
		Markets:    []string{"BTC-PERP"},
		Interval:   time.Hour,
		SpreadPct:  0.1,
		ControlKey: "control-1",
	}, gw, agg, NewRiskEvaluator(NewRiskConfig(0.25, 0.25), gw, log), nil, log)

	reb.Cycle(ctx)

	m, _ := gw.LoadMarket(ctx, "BTC-PERP")
	open, _ := gw.LoadOpenOrders(ctx, m, "control-1")
	if len(open) != 2 {
		t.Fatalf("open orders = %d, want 2", len(open))
	}
	// Capped at 10k notional: 10 base units per side instead of 50.
	for _, o := range open {
		if want := quant.QtySats(10 * quant.QtyScale); o.SizeSats != want {
			t.Errorf("%s size = %s, want %s", o.Side, o.SizeSats, want)
		}
	}
}

func TestRebalancer_StaggerOrdersSubCycles(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewPaper("control-1")
	for _, sym := range []string{"BTC-PERP", "SOL-PERP"} {
		gw.SeedMarket(&domain.Market{
			Symbol:          sym,
			BaseAsset:       domain.BaseAssetOf(sym),
			QuoteAsset:      "USDC",
			TickMicros:      100_000,
			LotSats:         1_000,
			MarkPriceMicros: 1000 * quant.PriceScale,
		})
	}
	if _, err := gw.Deposit(ctx, "USDC", 100_000*quant.PriceScale); err != nil {
		t.Fatal(err)
	}
	agg := NewAggregator(MidPairwise)
	midThousand(agg, "BTC")
	midThousand(agg, "SOL")

	log := discardLogger()
	reb := NewRebalancer(RebalanceConfig{
		Markets:    []string{"BTC-PERP", "SOL-PERP"},
		Interval:   time.Hour,
		Stagger:    80 * time.Millisecond,
		SpreadPct:  0.1,
		ControlKey: "control-1",
	}, gw, agg, NewRiskEvaluator(NewRiskConfig(0.25, 0.25), gw, log), nil, log)

	reb.Cycle(ctx)

	orders, err := gw.LoadOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var firstBTC, firstSOL int64
	for _, o := range orders {
		switch o.Symbol {
		case "BTC-PERP":
			if firstBTC == 0 || o.CreatedUnixM < firstBTC {
				firstBTC = o.CreatedUnixM
			}
		case "SOL-PERP":
			if firstSOL == 0 || o.CreatedUnixM < firstSOL {
				firstSOL = o.CreatedUnixM
			}
		}
	}
	if firstBTC == 0 || firstSOL == 0 {
		t.Fatal("both markets should have quoted")
	}
	if gap := time.Duration(firstSOL-firstBTC) * time.Microsecond; gap < 50*time.Millisecond {
		t.Errorf("second market started %v after first, want the stagger delay", gap)
	}
}

func TestRebalancer_RunStopsOnCancel(t *testing.T) {
	reb, _, agg := newTestRig(t, "BTC-PERP")
	midThousand(agg, "BTC")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reb.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
