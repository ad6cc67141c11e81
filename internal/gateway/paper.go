package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/internal/infra"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

// Paper is an in-memory gateway. Orders rest forever (no matching engine);
// positions and mark prices are seeded by tests or by the paper bootstrap.
// A token bucket caps call bursts the same way the real RPC layer would.
type Paper struct {
	mu         sync.Mutex
	controlKey string
	markets    map[string]*domain.Market
	orders     map[string]domain.Order // by order id
	positions  map[string]domain.Position
	balances   *domain.BalanceBook
	funding    map[string]FundingInfo
	limiter    *infra.RateLimiter
}

// NewPaper creates a paper gateway for one control account.
func NewPaper(controlKey string) *Paper {
	return &Paper{
		controlKey: controlKey,
		markets:    make(map[string]*domain.Market),
		orders:     make(map[string]domain.Order),
		positions:  make(map[string]domain.Position),
		balances:   domain.NewBalanceBook(),
		funding:    make(map[string]FundingInfo),
		limiter:    infra.NewRateLimiter(20, 200),
	}
}

// SeedMarket registers market metadata, overwriting any previous entry.
func (p *Paper) SeedMarket(m *domain.Market) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markets[m.Symbol] = m
}

// SeedPosition installs a position for a market symbol.
func (p *Paper) SeedPosition(symbol string, pos domain.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[symbol] = pos
}

// SetMarkPrice updates the mark price of a seeded market.
func (p *Paper) SetMarkPrice(symbol string, mark quant.PriceMicros) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.markets[symbol]; ok {
		m.MarkPriceMicros = mark
	}
}

// MarketSymbols lists every seeded market symbol.
func (p *Paper) MarketSymbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.markets))
	for s := range p.markets {
		out = append(out, s)
	}
	return out
}

func (p *Paper) LoadMarket(ctx context.Context, symbol string) (*domain.Market, error) {
	p.limiter.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.markets[symbol]
	if !ok {
		return nil, fmt.Errorf("invalid market symbol: %s", symbol)
	}
	cp := *m
	return &cp, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, market *domain.Market, side domain.Side,
	price quant.PriceMicros, size quant.QtySats, typ OrderType) (Receipt, error) {
	p.limiter.Wait()
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if size <= 0 {
		return Receipt{}, fmt.Errorf("order size must be positive, got %s", size)
	}
	if price <= 0 {
		return Receipt{}, fmt.Errorf("order price must be positive, got %s", price)
	}
	notional := quant.MulDiv(int64(price), int64(size), quant.QtyScale)
	if market.MaxQuoteNotionalMicros > 0 && notional > market.MaxQuoteNotionalMicros {
		return Receipt{}, fmt.Errorf("order notional %d exceeds market cap %d",
			notional, market.MaxQuoteNotionalMicros)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Long orders lock quote margin for their notional.
	if side == domain.Long {
		bal := p.balances.Get(market.QuoteAsset)
		if bal.AvailableMicros() < notional {
			return Receipt{}, fmt.Errorf("insufficient %s margin: need %d, have %d",
				market.QuoteAsset, notional, bal.AvailableMicros())
		}
		bal.Reserve(notional)
	}

	id := uuid.NewString()
	p.orders[id] = domain.Order{
		ID:           id,
		Symbol:       market.Symbol,
		Side:         side,
		PriceMicros:  price,
		SizeSats:     size,
		ControlKey:   p.controlKey,
		Status:       "NEW",
		CreatedUnixM: time.Now().UnixMicro(),
	}
	return Receipt{TxID: uuid.NewString(), OrderID: id}, nil
}

func (p *Paper) CancelOrder(ctx context.Context, market *domain.Market, orderID string, side domain.Side) error {
	p.limiter.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	if !o.IsOpen() {
		return fmt.Errorf("cannot cancel %s order: %s", o.Status, orderID)
	}
	if o.Side == domain.Long {
		notional := quant.MulDiv(int64(o.PriceMicros), int64(o.SizeSats), quant.QtyScale)
		p.balances.Get(market.QuoteAsset).Release(notional)
	}
	o.Status = "CANCELED"
	p.orders[orderID] = o
	return nil
}

func (p *Paper) LoadOpenOrders(ctx context.Context, market *domain.Market, controlKey string) ([]domain.Order, error) {
	p.limiter.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []domain.Order
	for _, o := range p.orders {
		if o.Symbol == market.Symbol && o.ControlKey == controlKey && o.IsOpen() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (p *Paper) LoadPositions(ctx context.Context) (map[string]domain.Position, error) {
	p.limiter.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]domain.Position, len(p.positions))
	for k, v := range p.positions {
		out[k] = v
	}
	return out, nil
}

func (p *Paper) LoadBalances(ctx context.Context) (*domain.BalanceBook, error) {
	p.limiter.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()

	// Hand out a copy: the engine works on a per-cycle snapshot.
	out := domain.NewBalanceBook()
	for asset, b := range p.balances.Snapshot() {
		nb := out.Get(asset)
		nb.Credit(b.AmountMicros)
		nb.Reserve(b.ReservedMicros)
	}
	return out, nil
}

func (p *Paper) LoadOrders(ctx context.Context) ([]domain.Order, error) {
	p.limiter.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.Order, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, o)
	}
	return out, nil
}

// PositionPnL computes coins * (mark - entry) for longs, negated for
// shorts, with entry = coins/pCoins.
func (p *Paper) PositionPnL(pos domain.Position, mark quant.PriceMicros) decimal.Decimal {
	if pos.IsFlat() {
		return decimal.Zero
	}
	coins := decimal.New(int64(pos.CoinsSats), -8)
	entry := decimal.NewFromInt(int64(pos.CoinsSats)).
		Div(decimal.NewFromInt(int64(pos.PCoinsSats)))
	markD := decimal.New(int64(mark), -6)

	pnl := coins.Mul(markD.Sub(entry))
	if pos.Side == domain.Short {
		pnl = pnl.Neg()
	}
	return pnl
}

func (p *Paper) GetFundingInfo(ctx context.Context, symbol string) (FundingInfo, error) {
	p.limiter.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.markets[symbol]; !ok {
		return FundingInfo{}, fmt.Errorf("invalid market symbol: %s", symbol)
	}
	fi, ok := p.funding[symbol]
	if !ok {
		fi = FundingInfo{Symbol: symbol, LastUpdatedUnixM: time.Now().UnixMicro()}
	}
	return fi, nil
}

// SettleFunds is a no-op for the paper account; there is no on-chain open
// orders account to sweep.
func (p *Paper) SettleFunds(ctx context.Context) (Receipt, error) {
	p.limiter.Wait()
	return Receipt{TxID: uuid.NewString()}, nil
}

func (p *Paper) Deposit(ctx context.Context, mint string, sizeMicros int64) (Receipt, error) {
	p.limiter.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.balances.Get(mint).Credit(sizeMicros)
	return Receipt{TxID: uuid.NewString()}, nil
}

func (p *Paper) Withdraw(ctx context.Context, mint string, sizeMicros int64) (Receipt, error) {
	p.limiter.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()

	bal := p.balances.Get(mint)
	if bal.AvailableMicros() < sizeMicros {
		return Receipt{}, fmt.Errorf("insufficient %s balance: need %d, have %d",
			mint, sizeMicros, bal.AvailableMicros())
	}
	bal.Debit(sizeMicros)
	return Receipt{TxID: uuid.NewString()}, nil
}
