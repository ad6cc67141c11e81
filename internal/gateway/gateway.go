// Package gateway defines the trading gateway consumed by the engine. The
// real implementation wraps the on-chain program client and lives outside
// this repository; the paper implementation below is a faithful in-memory
// stand-in used for paper mode and tests.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

// OrderType selects how an order rests or crosses.
type OrderType int8

const (
	Limit OrderType = iota
	PostOnly
	ImmediateOrCancel
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case PostOnly:
		return "POST_ONLY"
	case ImmediateOrCancel:
		return "IOC"
	default:
		return "UNKNOWN"
	}
}

// Receipt acknowledges a submitted gateway operation.
type Receipt struct {
	TxID    string
	OrderID string
}

// FundingInfo is the current funding state of a perp market.
type FundingInfo struct {
	Symbol           string
	HourlyRateMicros int64
	LastUpdatedUnixM int64
}

// Gateway is the exchange trading surface the engine depends on. Every
// blocking operation takes a context; errors are returned, never panicked.
type Gateway interface {
	// LoadMarket resolves market metadata for a symbol.
	LoadMarket(ctx context.Context, symbol string) (*domain.Market, error)

	// PlaceOrder submits a new order and returns its receipt.
	PlaceOrder(ctx context.Context, market *domain.Market, side domain.Side,
		price quant.PriceMicros, size quant.QtySats, typ OrderType) (Receipt, error)

	// CancelOrder cancels a resting order by id.
	CancelOrder(ctx context.Context, market *domain.Market, orderID string, side domain.Side) error

	// LoadOpenOrders returns the resting orders owned by a control key on
	// one market.
	LoadOpenOrders(ctx context.Context, market *domain.Market, controlKey string) ([]domain.Order, error)

	// LoadPositions returns held positions keyed by market symbol.
	LoadPositions(ctx context.Context) (map[string]domain.Position, error)

	// LoadBalances returns the margin account balances.
	LoadBalances(ctx context.Context) (*domain.BalanceBook, error)

	// LoadOrders returns every order across markets for this account.
	LoadOrders(ctx context.Context) ([]domain.Order, error)

	// PositionPnL computes the mark-price-relative unrealized PnL of a
	// position. The formula is owned by the gateway.
	PositionPnL(pos domain.Position, mark quant.PriceMicros) decimal.Decimal

	// GetFundingInfo returns the funding state for a market symbol.
	GetFundingInfo(ctx context.Context, symbol string) (FundingInfo, error)

	// Deposit moves collateral into the margin account.
	Deposit(ctx context.Context, mint string, sizeMicros int64) (Receipt, error)

	// Withdraw moves collateral out of the margin account.
	Withdraw(ctx context.Context, mint string, sizeMicros int64) (Receipt, error)
}
