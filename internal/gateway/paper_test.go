package gateway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

func testMarket() *domain.Market {
	return &domain.Market{
		Symbol:          "BTC-PERP",
		BaseAsset:       "BTC",
		QuoteAsset:      "USDC",
		TickMicros:      100_000,
		LotSats:         1_000,
		MarkPriceMicros: 1000 * quant.PriceScale,
	}
}

func seededPaper(t *testing.T) (*Paper, *domain.Market) {
	t.Helper()
	p := NewPaper("control-1")
	m := testMarket()
	p.SeedMarket(m)
	if _, err := p.Deposit(context.Background(), "USDC", 100_000*quant.PriceScale); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return p, m
}

func TestPaper_PlaceAndLoadOpenOrders(t *testing.T) {
	ctx := context.Background()
	p, m := seededPaper(t)

	r1, err := p.PlaceOrder(ctx, m, domain.Long, 950*quant.PriceScale, quant.QtyScale, Limit)
	if err != nil {
		t.Fatalf("place long: %v", err)
	}
	if _, err := p.PlaceOrder(ctx, m, domain.Short, 1050*quant.PriceScale, quant.QtyScale, Limit); err != nil {
		t.Fatalf("place short: %v", err)
	}

	open, err := p.LoadOpenOrders(ctx, m, "control-1")
	if err != nil {
		t.Fatalf("load open orders: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("open orders = %d, want 2", len(open))
	}

	// Orders owned by another control key are invisible.
	other, err := p.LoadOpenOrders(ctx, m, "someone-else")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("foreign control sees %d orders", len(other))
	}

	// Long margin is reserved for the notional (950 USDC).
	bb, _ := p.LoadBalances(ctx)
	if got := bb.Get("USDC").ReservedMicros; got != 950*quant.PriceScale {
		t.Errorf("reserved = %d, want %d", got, 950*quant.PriceScale)
	}

	if err := p.CancelOrder(ctx, m, r1.OrderID, domain.Long); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	open, _ = p.LoadOpenOrders(ctx, m, "control-1")
	if len(open) != 1 {
		t.Errorf("open orders after cancel = %d, want 1", len(open))
	}
	bb, _ = p.LoadBalances(ctx)
	if got := bb.Get("USDC").ReservedMicros; got != 0 {
		t.Errorf("reserved after cancel = %d, want 0", got)
	}
}

func TestPaper_PlaceOrderRejections(t *testing.T) {
	ctx := context.Background()
	p, m := seededPaper(t)

	if _, err := p.PlaceOrder(ctx, m, domain.Long, 950*quant.PriceScale, 0, Limit); err == nil {
		t.Error("expected rejection for zero size")
	}
	if _, err := p.PlaceOrder(ctx, m, domain.Long, 0, quant.QtyScale, Limit); err == nil {
		t.Error("expected rejection for zero price")
	}

	// Margin check: 100k balance cannot back a 200k notional bid.
	if _, err := p.PlaceOrder(ctx, m, domain.Long, 2000*quant.PriceScale, 100*quant.QtyScale, Limit); err == nil {
		t.Error("expected insufficient margin rejection")
	}

	m.MaxQuoteNotionalMicros = 100 * quant.PriceScale
	if _, err := p.PlaceOrder(ctx, m, domain.Short, 1050*quant.PriceScale, quant.QtyScale, Limit); err == nil {
		t.Error("expected notional cap rejection")
	}
}

func TestPaper_CancelUnknownOrder(t *testing.T) {
	p, m := seededPaper(t)
	if err := p.CancelOrder(context.Background(), m, "nope", domain.Long); err == nil {
		t.Error("expected error for unknown order id")
	}
}

func TestPaper_DepositWithdraw(t *testing.T) {
	ctx := context.Background()
	p := NewPaper("control-1")

	if _, err := p.Deposit(ctx, "USDC", 500); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Withdraw(ctx, "USDC", 200); err != nil {
		t.Fatal(err)
	}
	bb, _ := p.LoadBalances(ctx)
	if got := bb.AvailableMicros("USDC"); got != 300 {
		t.Errorf("available = %d, want 300", got)
	}
	if _, err := p.Withdraw(ctx, "USDC", 1000); err == nil {
		t.Error("expected overdraw rejection")
	}
}

func TestPaper_PositionPnL(t *testing.T) {
	p := NewPaper("control-1")

	// coins=1.0, pCoins=0.01 -> entry=100; mark=150 -> long pnl = 1*(150-100) = 50
	pos := domain.Position{
		MarketKey:  "BTC-PERP",
		Side:       domain.Long,
		CoinsSats:  quant.QtyScale,
		PCoinsSats: quant.QtyScale / 100,
	}
	pnl := p.PositionPnL(pos, 150*quant.PriceScale)
	if !pnl.Equal(decimal.NewFromInt(50)) {
		t.Errorf("long pnl = %s, want 50", pnl)
	}

	pos.Side = domain.Short
	pnl = p.PositionPnL(pos, 150*quant.PriceScale)
	if !pnl.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("short pnl = %s, want -50", pnl)
	}

	pos.CoinsSats = 0
	if !p.PositionPnL(pos, 150*quant.PriceScale).IsZero() {
		t.Error("flat position pnl should be zero")
	}
}

func TestPaper_LoadMarketUnknown(t *testing.T) {
	p := NewPaper("control-1")
	if _, err := p.LoadMarket(context.Background(), "DOGE-PERP"); err == nil {
		t.Error("expected invalid market symbol error")
	}
}

func TestPaper_SettleFunds(t *testing.T) {
	p := NewPaper("control-1")
	r, err := p.SettleFunds(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.TxID == "" {
		t.Error("settle receipt missing tx id")
	}
}

func TestPaper_GetFundingInfo(t *testing.T) {
	p, m := seededPaper(t)
	fi, err := p.GetFundingInfo(context.Background(), m.Symbol)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Symbol != m.Symbol {
		t.Errorf("funding symbol = %q", fi.Symbol)
	}
	if _, err := p.GetFundingInfo(context.Background(), "DOGE-PERP"); err == nil {
		t.Error("expected error for unknown symbol")
	}
}
