package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmvdz/zo-mm/internal/app"
	"github.com/lmvdz/zo-mm/internal/engine"
	"github.com/lmvdz/zo-mm/internal/feed"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional, env overrides apply)")
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config
	agg := engine.NewAggregator(engine.ParseMidMode(cfg.Trading.MidMode))

	assets := feed.AssetsFromSymbols(cfg.Trading.Markets)
	supervisor := feed.NewSupervisor(assets, feed.DefaultHandlers, agg, bootstrap.Journal, bootstrap.Log)
	go supervisor.Run(ctx)
	slog.Info("feed supervisor started", slog.Any("assets", assets))

	go bootstrap.SyncPaperMarks(ctx, agg)

	risk := engine.NewRiskEvaluator(
		engine.NewRiskConfig(cfg.Trading.MaxGain, cfg.Trading.MaxLoss),
		bootstrap.Gateway, bootstrap.Log)
	rebalancer := engine.NewRebalancer(engine.RebalanceConfig{
		Markets:        cfg.Trading.Markets,
		Interval:       cfg.RebalanceInterval(),
		Stagger:        cfg.RebalanceStagger(),
		CancelInterval: cfg.CancelInterval(),
		SpreadPct:      cfg.Trading.SpreadPercentage,
		ControlKey:     bootstrap.ControlKey,
	}, bootstrap.Gateway, agg, risk, bootstrap.Journal, bootstrap.Log)

	slog.Info("rebalance loop started",
		slog.Duration("interval", cfg.RebalanceInterval()),
		slog.Duration("stagger", cfg.RebalanceStagger()))
	if err := rebalancer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("rebalancer exited", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
