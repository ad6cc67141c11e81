package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/internal/engine"
	"github.com/lmvdz/zo-mm/internal/gateway"
	"github.com/lmvdz/zo-mm/internal/infra"
	"github.com/lmvdz/zo-mm/internal/storage"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

// Paper account defaults. The paper gateway has no on-chain state to load,
// so the bootstrap seeds a bankroll and market metadata itself.
const (
	paperQuoteAsset    = "USDC"
	paperDepositMicros = 100_000 * quant.PriceScale
)

// Bootstrap wires configuration, logging, the journal and the trading
// gateway. Fields are populated by Initialize.
type Bootstrap struct {
	Config     *infra.Config
	Log        *slog.Logger
	Journal    *storage.Journal
	Gateway    gateway.Gateway
	ControlKey string

	paper *gateway.Paper // non-nil in paper mode
}

func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads .env and config, installs the default logger, opens the
// journal when enabled and builds the gateway for the configured mode.
func (b *Bootstrap) Initialize(configPath string) error {
	// Missing .env is fine; env vars may come from the environment proper.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	b.Log = infra.NewLogger(cfg.Logging.Level)
	slog.SetDefault(b.Log)

	if cfg.Journal.Enabled {
		jnl, err := storage.OpenJournal(cfg.Journal.Path, b.Log)
		if err != nil {
			return err
		}
		b.Journal = jnl
		b.Log.Info("journal open", slog.String("path", cfg.Journal.Path))
	}

	if err := b.buildGateway(); err != nil {
		return err
	}

	b.Log.Info("bootstrap complete",
		slog.String("mode", cfg.Trading.Mode),
		slog.Any("markets", cfg.Trading.Markets))
	return nil
}

func (b *Bootstrap) buildGateway() error {
	switch strings.ToLower(b.Config.Trading.Mode) {
	case "", "paper":
		b.ControlKey = "paper-control"
		paper := gateway.NewPaper(b.ControlKey)
		for _, sym := range b.Config.Trading.Markets {
			paper.SeedMarket(&domain.Market{
				Symbol:     sym,
				BaseAsset:  domain.BaseAssetOf(sym),
				QuoteAsset: paperQuoteAsset,
				TickMicros: 100,
				LotSats:    1_000,
			})
		}
		if _, err := paper.Deposit(context.Background(), paperQuoteAsset, paperDepositMicros); err != nil {
			return err
		}
		b.paper = paper
		b.Gateway = paper
		b.Log.Debug("paper markets seeded", slog.Any("symbols", paper.MarketSymbols()))
		return nil
	case "real":
		// BOT_KEY presence is already validated by the config layer; the
		// on-chain gateway itself is not part of this build.
		return fmt.Errorf("real trading gateway is not available in this build")
	default:
		return fmt.Errorf("unknown trading mode: %q", b.Config.Trading.Mode)
	}
}

// SyncPaperMarks keeps the paper gateway's mark prices pinned to the
// blended feed mid so the PnL band sees live prices. No-op in real mode,
// where marks come from the venue.
func (b *Bootstrap) SyncPaperMarks(ctx context.Context, agg *engine.Aggregator) {
	if b.paper == nil {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sym := range b.Config.Trading.Markets {
				if mid, ok := agg.Mid(domain.BaseAssetOf(sym)); ok {
					b.paper.SetMarkPrice(sym, mid)
				}
			}
		}
	}
}

// Close releases bootstrap-owned resources.
func (b *Bootstrap) Close() {
	if err := b.Journal.Close(); err != nil {
		b.Log.Warn("journal close failed", slog.Any("error", err))
	}
}
